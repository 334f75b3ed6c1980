package enrich

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rubiojr/sift/pkg/fetch"
)

type mapFetcher struct {
	mu     sync.Mutex
	bodies map[string]string
	calls  map[string]int
}

func (f *mapFetcher) Get(ctx context.Context, url string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[url]++
	body, ok := f.bodies[url]
	if !ok {
		return "", errors.New("unreachable")
	}
	return body, nil
}

func TestResolve(t *testing.T) {
	f := &mapFetcher{bodies: map[string]string{
		"http://x.com/page": `<html><head><TITLE> Foo Bar </TITLE><link rel="icon" href="/fav.png"></head></html>`,
		"http://y.com/":     `<html><head></head></html>`,
	}}
	e := New(f)
	ctx := context.Background()

	r := e.Resolve(ctx, "http://x.com/page")
	if r.Title != "Foo Bar" {
		t.Errorf("Expected title 'Foo Bar', got %q", r.Title)
	}
	if r.Favicon != "http://x.com/fav.png" {
		t.Errorf("Expected favicon http://x.com/fav.png, got %q", r.Favicon)
	}
	if f.calls["http://x.com/page"] != 2 {
		t.Errorf("Expected 2 independent fetches, got %d", f.calls["http://x.com/page"])
	}

	r = e.Resolve(ctx, "http://y.com/")
	if r.Title != "http://y.com/" {
		t.Errorf("Expected url as title, got %q", r.Title)
	}
	if r.Favicon != "http://y.com/favicon.ico" {
		t.Errorf("Expected default favicon, got %q", r.Favicon)
	}

	r = e.Resolve(ctx, "http://down.example/")
	want := Result{URL: "http://down.example/", Title: "http://down.example/", Favicon: "http://down.example/favicon.ico"}
	if r != want {
		t.Errorf("Expected %+v, got %+v", want, r)
	}
}

func TestResolveNoFetcher(t *testing.T) {
	r := New(nil).Resolve(context.Background(), "nohost")
	if r.Title != "nohost" || r.Favicon != "" {
		t.Errorf("Unexpected result: %+v", r)
	}
}

func TestEnrichPreservesOrder(t *testing.T) {
	var inFlight, peak int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&inFlight, 1)
		defer atomic.AddInt32(&inFlight, -1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		fmt.Fprintf(w, "<title>page %s</title>", r.URL.Path[1:])
	}))
	defer srv.Close()

	var urls []string
	for i := 0; i < 12; i++ {
		urls = append(urls, fmt.Sprintf("%s/%d", srv.URL, i))
	}
	// Duplicates are kept and enriched independently.
	urls = append(urls, urls[0])

	e := New(fetch.New(fetch.Options{}), WithConcurrency(3))
	results := e.Enrich(context.Background(), urls)

	if len(results) != len(urls) {
		t.Fatalf("Expected %d results, got %d", len(urls), len(results))
	}
	for i, r := range results {
		if r.URL != urls[i] {
			t.Errorf("Result %d: expected url %s, got %s", i, urls[i], r.URL)
		}
	}
	if results[5].Title != "page 5" {
		t.Errorf("Expected title 'page 5', got %q", results[5].Title)
	}
	if results[12].Title != "page 0" {
		t.Errorf("Expected duplicate title 'page 0', got %q", results[12].Title)
	}
	if peak > 3 {
		t.Errorf("Expected at most 3 concurrent fetches, saw %d", peak)
	}
}

func TestEnrichEmpty(t *testing.T) {
	results := New(nil).Enrich(context.Background(), nil)
	if results == nil || len(results) != 0 {
		t.Errorf("Expected empty non-nil results, got %#v", results)
	}
}

func TestFetchTimeoutFallsBack(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	e := New(fetch.New(fetch.Options{}), WithFetchTimeout(50*time.Millisecond))
	start := time.Now()
	r := e.Resolve(context.Background(), srv.URL+"/slow")
	if time.Since(start) > 2*time.Second {
		t.Errorf("Fetch timeout not applied")
	}
	if r.Title != srv.URL+"/slow" {
		t.Errorf("Expected url as title, got %q", r.Title)
	}
	if r.Favicon != srv.URL+"/favicon.ico" {
		t.Errorf("Expected default favicon, got %q", r.Favicon)
	}
}

func TestEnrichCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<title>never</title>")
	}))
	defer srv.Close()

	e := New(fetch.New(fetch.Options{}))
	results := e.Enrich(ctx, []string{srv.URL + "/a", srv.URL + "/b"})
	for _, r := range results {
		if r.Title != r.URL {
			t.Errorf("Expected fallback title for %s, got %q", r.URL, r.Title)
		}
	}
}

type countingTransport struct {
	mu    sync.Mutex
	gets  map[string]int
	inner http.RoundTripper
}

func (c *countingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	c.mu.Lock()
	if req.Method == http.MethodGet {
		c.gets[req.URL.Path]++
	}
	c.mu.Unlock()
	return c.inner.RoundTrip(req)
}

func TestEnrichFetchesEachURLTwice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<title>%s</title><link rel="icon" href="/i.png">`, r.URL.Path)
	}))
	defer srv.Close()

	transport := &countingTransport{gets: make(map[string]int), inner: http.DefaultTransport}
	e := New(fetch.New(fetch.Options{Transport: transport}), WithConcurrency(2))

	urls := []string{srv.URL + "/a", srv.URL + "/b", srv.URL + "/a"}
	results := e.Enrich(context.Background(), urls)

	if results[1].Title != "/b" || results[1].Favicon != srv.URL+"/i.png" {
		t.Errorf("Unexpected result: %+v", results[1])
	}
	// Title and favicon are fetched separately and duplicates are not merged.
	want := map[string]int{"/a": 4, "/b": 2}
	transport.mu.Lock()
	defer transport.mu.Unlock()
	for path, n := range want {
		if transport.gets[path] != n {
			t.Errorf("Expected %d GETs for %s, got %d", n, path, transport.gets[path])
		}
	}
	if len(transport.gets) != len(want) {
		t.Errorf("Unexpected requests: %v", transport.gets)
	}
}
