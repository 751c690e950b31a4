package gw2api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	tags    map[string]string
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string][]byte{}, tags: map[string]string{}}
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
	f.tags[key] = tag
	return nil
}

func newTestClient(t *testing.T, handler http.Handler, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	base := []Option{WithBaseURL(srv.URL), WithMaxRetries(2)}
	return New(append(base, opts...)...)
}

func fastRetries(c *Client) {
	c.baseWait = time.Millisecond
	c.maxWait = 5 * time.Millisecond
}

func TestItemFetchAndCache(t *testing.T) {
	var hits atomic.Int64
	cache := newFakeCache()
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/v2/items/19699" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(Item{ID: 19699, Name: "Iron Ore", Rarity: "Basic"})
	}), WithCache(cache))

	item, err := c.Item(context.Background(), 19699)
	if err != nil {
		t.Fatalf("Item() error = %v", err)
	}
	if item.Name != "Iron Ore" {
		t.Errorf("Name = %q, want Iron Ore", item.Name)
	}

	// Second fetch must be served from cache.
	if _, err := c.Item(context.Background(), 19699); err != nil {
		t.Fatalf("cached Item() error = %v", err)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("server hits = %d, want 1", got)
	}
	if tag := cache.tags["api:item:19699"]; tag != CacheTag {
		t.Errorf("cache tag = %q, want %q", tag, CacheTag)
	}
}

func TestCorruptCacheEntryIsMiss(t *testing.T) {
	cache := newFakeCache()
	cache.Set("api:item:1", CacheTag, []byte("{not json"))

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Item{ID: 1, Name: "Recovered"})
	}), WithCache(cache))

	item, err := c.Item(context.Background(), 1)
	if err != nil {
		t.Fatalf("Item() error = %v", err)
	}
	if item.Name != "Recovered" {
		t.Errorf("Name = %q, want refetched item", item.Name)
	}
}

func TestRetryOnServerError(t *testing.T) {
	var calls atomic.Int64
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "internal", http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(Item{ID: 5, Name: "Sword"})
	}))
	fastRetries(c)

	item, err := c.Item(context.Background(), 5)
	if err != nil {
		t.Fatalf("Item() error = %v", err)
	}
	if item.ID != 5 {
		t.Errorf("ID = %d, want 5", item.ID)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("server calls = %d, want 2", got)
	}
}

func TestNotFoundNotRetried(t *testing.T) {
	var calls atomic.Int64
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "no such id", http.StatusNotFound)
	}))
	fastRetries(c)

	_, err := c.Item(context.Background(), 999999)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Item() error = %v, want *APIError", err)
	}
	if !apiErr.NotFound() {
		t.Errorf("NotFound() = false for status %d", apiErr.StatusCode)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server calls = %d, want 1 (no retries)", got)
	}
}

func TestItemsBulkPagination(t *testing.T) {
	var pages atomic.Int64
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pages.Add(1)
		idList := strings.Split(r.URL.Query().Get("ids"), ",")
		if len(idList) > 200 {
			t.Errorf("page carried %d ids, cap is 200", len(idList))
		}
		items := make([]Item, 0, len(idList))
		for range idList {
			items = append(items, Item{ID: 1})
		}
		json.NewEncoder(w).Encode(items)
	}), WithConcurrency(2))

	ids := make([]int, 450)
	for i := range ids {
		ids[i] = i + 1
	}
	items, err := c.ItemsBulk(context.Background(), ids)
	if err != nil {
		t.Fatalf("ItemsBulk() error = %v", err)
	}
	if len(items) != 450 {
		t.Errorf("got %d items, want 450", len(items))
	}
	if got := pages.Load(); got != 3 {
		t.Errorf("pages fetched = %d, want 3", got)
	}
}

func TestCurrencies(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("ids") != "all" {
			t.Errorf("ids query = %q, want all", r.URL.Query().Get("ids"))
		}
		json.NewEncoder(w).Encode([]Currency{{ID: 1, Name: "Coin"}, {ID: 2, Name: "Karma"}})
	}))

	currencies, err := c.Currencies(context.Background())
	if err != nil {
		t.Fatalf("Currencies() error = %v", err)
	}
	if len(currencies) != 2 {
		t.Fatalf("got %d currencies, want 2", len(currencies))
	}
}
