package wikidata

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"anitgo/pkg/request"
	"anitgo/pkg/sparql"
	"anitgo/pkg/tracker"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sparqlResponse(rows string) string {
	return fmt.Sprintf(`{"results":{"bindings":[%s]}}`, rows)
}

func levelRow(level int, label string) string {
	return fmt.Sprintf(`{"level":{"type":"literal","value":"%d"},"placeLabel":{"type":"literal","value":"%s"}}`, level, label)
}

func newTestResolver(t *testing.T, handler http.HandlerFunc) *HierarchyResolver {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	req := request.New(tracker.New(), 5*time.Second, 1, time.Millisecond, time.Millisecond)
	return NewHierarchyResolver(sparql.NewClient(req, srv.URL, testLogger()), testLogger())
}

func TestResolveDedupsAndOrders(t *testing.T) {
	rows := levelRow(2, "Malatya") + "," + levelRow(1, "Yeşilyurt") + "," + levelRow(3, "Malatya")
	r := newTestResolver(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, sparqlResponse(rows))
	})

	chain, err := r.Resolve(context.Background(), "Q12345")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(chain) != 2 || chain[0] != "Yeşilyurt" || chain[1] != "Malatya" {
		t.Errorf("chain = %v, want [Yeşilyurt Malatya]", chain)
	}
}

func TestResolveSkipsUnresolvedLabels(t *testing.T) {
	rows := levelRow(1, "Q55") + "," + levelRow(2, "http://www.wikidata.org/entity/Q56") + "," + levelRow(3, "Ankara")
	r := newTestResolver(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, sparqlResponse(rows))
	})

	chain, err := r.Resolve(context.Background(), "Q1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(chain) != 1 || chain[0] != "Ankara" {
		t.Errorf("chain = %v, want [Ankara]", chain)
	}
}

func TestResolveInvalidQIDSkipsNetwork(t *testing.T) {
	var calls atomic.Int64
	r := newTestResolver(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, sparqlResponse(""))
	})

	for _, bad := range []string{"", "406", "Q", "Q406x", "not-a-qid"} {
		chain, err := r.Resolve(context.Background(), bad)
		if err != nil {
			t.Errorf("Resolve(%q) returned error: %v", bad, err)
		}
		if len(chain) != 0 {
			t.Errorf("Resolve(%q) = %v, want empty", bad, chain)
		}
	}
	if calls.Load() != 0 {
		t.Errorf("invalid IDs caused %d network calls", calls.Load())
	}
}

func TestResolveCaseInsensitiveQID(t *testing.T) {
	var query atomic.Value
	r := newTestResolver(t, func(w http.ResponseWriter, req *http.Request) {
		query.Store(req.FormValue("query"))
		fmt.Fprint(w, sparqlResponse(levelRow(1, "Fatih")))
	})

	chain, err := r.Resolve(context.Background(), "q406")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(chain) != 1 {
		t.Errorf("lowercase QID rejected, chain = %v", chain)
	}

	// Entity IRIs are case sensitive; the query must carry wd:Q406.
	sent, _ := query.Load().(string)
	if !strings.Contains(sent, "wd:Q406") {
		t.Errorf("query sent without normalized QID:\n%s", sent)
	}
	if strings.Contains(sent, "wd:q406") {
		t.Errorf("query sent with lowercase QID:\n%s", sent)
	}
}

func TestResolvePropagatesTransportFailure(t *testing.T) {
	r := newTestResolver(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})

	if _, err := r.Resolve(context.Background(), "Q406"); err == nil {
		t.Error("transport failure swallowed")
	}
}
