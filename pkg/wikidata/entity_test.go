package wikidata

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"anitgo/pkg/cache"
	"anitgo/pkg/request"
	"anitgo/pkg/tracker"
)

const entityQ406 = `{"entities":{"Q406":{
	"id":"Q406",
	"labels":{"tr":{"language":"tr","value":"Ayasofya"},"en":{"language":"en","value":"Hagia Sophia"}},
	"descriptions":{"tr":{"language":"tr","value":"İstanbul'da cami"}},
	"aliases":{"tr":[{"language":"tr","value":"Aya Sofya"},{"language":"tr","value":"Sancta Sophia"}]},
	"sitelinks":{"trwiki":{"site":"trwiki","title":"Ayasofya"},"enwiki":{"site":"enwiki","title":"Hagia Sophia"}},
	"claims":{
		"P373":[{"mainsnak":{"datavalue":{"type":"string","value":"Hagia Sophia"}}}],
		"P18":[{"mainsnak":{"datavalue":{"type":"string","value":"Hagia Sophia Mars 2013.jpg"}}}],
		"P11729":[{"mainsnak":{"datavalue":{"type":"string","value":"34-001"}}}],
		"P31":[{"mainsnak":{"datavalue":{"type":"wikibase-entityid","value":{"id":"Q32815"}}}}],
		"P625":[{"mainsnak":{"datavalue":{"type":"globecoordinate","value":{"latitude":41.0086,"longitude":28.98}}}}]
	}
}}}`

func newTestFetcher(t *testing.T, handler http.HandlerFunc) *EntityFetcher {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	req := request.New(tracker.New(), 5*time.Second, 1, time.Millisecond, time.Millisecond)
	labels := cache.NewTTLCache(16, time.Minute)
	return NewEntityFetcher(req, tracker.New(), labels, srv.URL, testLogger())
}

func TestGetEntity(t *testing.T) {
	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("ids"); got != "Q406" {
			t.Errorf("ids = %q", got)
		}
		fmt.Fprint(w, entityQ406)
	})

	e, err := f.GetEntity(context.Background(), "Q406")
	if err != nil {
		t.Fatalf("GetEntity: %v", err)
	}
	if e.Label("tr") != "Ayasofya" || e.Label("en") != "Hagia Sophia" {
		t.Error("labels not decoded")
	}
	if got := e.FirstString(propCommonsCategory); got == nil || *got != "Hagia Sophia" {
		t.Error("P373 not decoded")
	}
	if e.FirstItem(propInstanceOf) != "Q32815" {
		t.Error("P31 entity value not decoded")
	}
	lat, lng := e.Coordinate()
	if lat == nil || *lat != 41.0086 || *lng != 28.98 {
		t.Error("P625 coordinate not decoded")
	}
}

func TestGetEntityRejectsInvalidID(t *testing.T) {
	var calls atomic.Int64
	f := newTestFetcher(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
	})

	if _, err := f.GetEntity(context.Background(), "DROP TABLE"); err == nil {
		t.Error("invalid ID accepted")
	}
	if calls.Load() != 0 {
		t.Error("invalid ID reached the network")
	}
}

func TestGetEntityAPIError(t *testing.T) {
	f := newTestFetcher(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"error":{"code":"no-such-entity","info":"missing"}}`)
	})

	if _, err := f.GetEntity(context.Background(), "Q999999999"); err == nil {
		t.Error("API error not surfaced")
	}
}

func TestEntityPatch(t *testing.T) {
	f := newTestFetcher(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, entityQ406)
	})

	e, err := f.GetEntity(context.Background(), "Q406")
	if err != nil {
		t.Fatalf("GetEntity: %v", err)
	}
	p := e.Patch()

	if p.WikidataID != "Q406" {
		t.Errorf("WikidataID = %q", p.WikidataID)
	}
	if p.NameTR == nil || *p.NameTR != "Ayasofya" {
		t.Error("NameTR not mapped")
	}
	if p.Aka == nil || *p.Aka != "Aya Sofya, Sancta Sophia" {
		t.Errorf("Aka = %v", p.Aka)
	}
	if p.KulturEnvanteriID == nil || *p.KulturEnvanteriID != "34-001" {
		t.Error("catalog ID not mapped")
	}
	if p.Latitude == nil || *p.Latitude != 41.0086 {
		t.Error("coordinate not mapped")
	}
	if p.CommonsURL == nil || *p.CommonsURL != "https://commons.wikimedia.org/wiki/Category:Hagia_Sophia" {
		t.Errorf("CommonsURL = %v", p.CommonsURL)
	}
	if p.WikipediaURL == nil || *p.WikipediaURL != "https://tr.wikipedia.org/wiki/Ayasofya" {
		t.Errorf("WikipediaURL = %v, want Turkish sitelink", p.WikipediaURL)
	}
	if p.Properties["image"] != "File:Hagia Sophia Mars 2013.jpg" {
		t.Errorf("image = %q", p.Properties["image"])
	}
	if p.Properties["instance_of"] != "Q32815" {
		t.Error("instance_of property missing")
	}
}

func TestLabelCaching(t *testing.T) {
	var calls atomic.Int64
	f := newTestFetcher(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, entityQ406)
	})

	for i := 0; i < 3; i++ {
		label, err := f.Label(context.Background(), "Q406", "tr")
		if err != nil {
			t.Fatalf("Label: %v", err)
		}
		if label != "Ayasofya" {
			t.Errorf("label = %q", label)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 upstream call, got %d", calls.Load())
	}
}
