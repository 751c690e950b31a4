package wiki

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
)

type fakeCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string][]byte{}}
}

func (f *fakeCache) Get(key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.entries[key]
	return v, ok
}

func (f *fakeCache) Set(key, tag string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[key] = value
	return nil
}

func newTestClient(t *testing.T, handler http.Handler, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(append([]Option{WithBaseURL(srv.URL)}, opts...)...)
}

func TestPageHTML(t *testing.T) {
	var hits atomic.Int64
	cache := newFakeCache()
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if got := r.URL.Query().Get("action"); got != "parse" {
			t.Errorf("action = %q, want parse", got)
		}
		if got := r.URL.Query().Get("page"); got != "Iron Ore" {
			t.Errorf("page = %q, want Iron Ore", got)
		}
		w.Write([]byte(`{"parse":{"title":"Iron Ore","text":{"*":"<div>ore body</div>"}}}`))
	}), WithCache(cache))

	html, err := c.PageHTML(context.Background(), "Iron Ore")
	if err != nil {
		t.Fatalf("PageHTML() error = %v", err)
	}
	if html != "<div>ore body</div>" {
		t.Errorf("PageHTML() = %q", html)
	}

	// Second fetch served from cache.
	if _, err := c.PageHTML(context.Background(), "Iron Ore"); err != nil {
		t.Fatalf("cached PageHTML() error = %v", err)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("server hits = %d, want 1", got)
	}
}

func TestPageHTMLMissing(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"code":"missingtitle","info":"The page you specified doesn't exist."}}`))
	}))

	_, err := c.PageHTML(context.Background(), "No Such Page")
	var perr *PageError
	if !errors.As(err, &perr) {
		t.Fatalf("PageHTML() error = %v, want *PageError", err)
	}
	if !perr.Missing() {
		t.Errorf("Missing() = false for code %q", perr.Code)
	}
}

func TestPageURL(t *testing.T) {
	got := PageURL("Glob of Ectoplasm")
	want := DefaultBaseURL + "/wiki/Glob_of_Ectoplasm"
	if got != want {
		t.Errorf("PageURL() = %q, want %q", got, want)
	}
}
