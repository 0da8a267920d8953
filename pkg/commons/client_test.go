package commons

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"anitgo/pkg/request"
	"anitgo/pkg/tracker"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCommons(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	req := request.New(tracker.New(), 5*time.Second, 1, time.Millisecond, time.Millisecond)
	return New(req, srv.URL, 2, testLogger())
}

func TestListCategoryImagesFollowsContinuation(t *testing.T) {
	c := newTestCommons(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("cmtitle"); got != "Category:Hagia Sophia" {
			t.Errorf("cmtitle = %q", got)
		}
		if r.URL.Query().Get("cmcontinue") == "" {
			fmt.Fprint(w, `{"continue":{"cmcontinue":"page2"},"query":{"categorymembers":[{"title":"File:A.jpg"},{"title":"File:B.jpg"}]}}`)
			return
		}
		fmt.Fprint(w, `{"query":{"categorymembers":[{"title":"File:C.jpg"}]}}`)
	})

	// The bare category name gets the Category: prefix added.
	titles, err := c.ListCategoryImages(context.Background(), "Hagia Sophia")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(titles) != 3 || titles[2] != "File:C.jpg" {
		t.Errorf("titles = %v", titles)
	}
}

func TestGetImageInfo(t *testing.T) {
	c := newTestCommons(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"query":{"pages":{
			"1":{"title":"File:A.jpg","imageinfo":[{
				"url":"https://upload.wikimedia.org/A.jpg",
				"thumburl":"https://upload.wikimedia.org/thumb/A.jpg",
				"extmetadata":{
					"Artist":{"value":"<a href=\"https://example.org\">Bir Fotoğrafçı</a>"},
					"LicenseShortName":{"value":"CC BY-SA 4.0"}
				}
			}]},
			"2":{"title":"File:NoInfo.jpg"}
		}}}`)
	})

	infos, err := c.GetImageInfo(context.Background(), []string{"File:A.jpg", "File:NoInfo.jpg"})
	if err != nil {
		t.Fatalf("imageinfo: %v", err)
	}

	a, ok := infos["File:A.jpg"]
	if !ok {
		t.Fatal("File:A.jpg missing from result")
	}
	if a.URL != "https://upload.wikimedia.org/A.jpg" || a.ThumbURL == "" {
		t.Errorf("urls = %+v", a)
	}
	if a.Photographer != "Bir Fotoğrafçı" {
		t.Errorf("photographer = %q, HTML must be stripped", a.Photographer)
	}
	if a.License != "CC BY-SA 4.0" {
		t.Errorf("license = %q", a.License)
	}

	if _, ok := infos["File:NoInfo.jpg"]; ok {
		t.Error("page without imageinfo included")
	}
}

func TestGetImageInfoBatches(t *testing.T) {
	var calls int
	c := newTestCommons(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `{"query":{"pages":{}}}`)
	})

	titles := make([]string, imageInfoBatch+1)
	for i := range titles {
		titles[i] = fmt.Sprintf("File:%d.jpg", i)
	}
	if _, err := c.GetImageInfo(context.Background(), titles); err != nil {
		t.Fatalf("imageinfo: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2 batches", calls)
	}
}

func TestStripTags(t *testing.T) {
	cases := map[string]string{
		`<a href="x">Name</a>`:      "Name",
		"plain":                     "plain",
		"<span>  padded  </span>":   "padded",
		`<div><b>Nested</b></div>`:  "Nested",
	}
	for in, want := range cases {
		if got := stripTags(in); got != want {
			t.Errorf("stripTags(%q) = %q, want %q", in, got, want)
		}
	}
}
