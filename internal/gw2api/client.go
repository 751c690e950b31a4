package gw2api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultBaseURL is the public game API endpoint.
const DefaultBaseURL = "https://api.guildwars2.com"

// bulkPageSize is the API's hard cap on ids per bulk request.
const bulkPageSize = 200

// CacheTag marks cache entries written by this client.
const CacheTag = "api"

// Cache is the durable write-through cache the client stores successful
// single-resource responses in. Implementations must treat unreadable
// entries as misses.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key, tag string, value []byte) error
}

// Client talks to the game REST API. Construct with [New]; the zero value is
// not usable.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	cache       Cache
	logger      *slog.Logger
	maxRetries  int
	baseWait    time.Duration
	maxWait     time.Duration
	concurrency int
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides [DefaultBaseURL].
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithCache enables write-through caching of single-resource responses.
func WithCache(cache Cache) Option {
	return func(c *Client) { c.cache = cache }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMaxRetries sets how many times a retryable failure is reattempted.
func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

// WithConcurrency bounds the number of parallel bulk-page fetches.
func WithConcurrency(n int) Option {
	return func(c *Client) { c.concurrency = n }
}

// New constructs a Client.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:     DefaultBaseURL,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		logger:      slog.Default(),
		maxRetries:  3,
		baseWait:    500 * time.Millisecond,
		maxWait:     10 * time.Second,
		concurrency: 4,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Item fetches a single item by id, serving from cache when possible.
func (c *Client) Item(ctx context.Context, id int) (*Item, error) {
	key := fmt.Sprintf("api:item:%d", id)
	if c.cache != nil {
		if raw, ok := c.cache.Get(key); ok {
			var item Item
			if err := json.Unmarshal(raw, &item); err == nil {
				return &item, nil
			}
			// Unreadable entry counts as a miss.
		}
	}

	raw, err := c.get(ctx, "/v2/items/"+strconv.Itoa(id), nil)
	if err != nil {
		return nil, fmt.Errorf("gw2api: fetching item %d: %w", id, err)
	}
	var item Item
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, fmt.Errorf("gw2api: decoding item %d: %w", id, err)
	}
	if c.cache != nil {
		if err := c.cache.Set(key, CacheTag, raw); err != nil {
			c.logger.Warn("caching item response failed", "id", id, "error", err)
		}
	}
	return &item, nil
}

// AllItemIDs fetches the complete item-id listing.
func (c *Client) AllItemIDs(ctx context.Context) ([]int, error) {
	raw, err := c.get(ctx, "/v2/items", nil)
	if err != nil {
		return nil, fmt.Errorf("gw2api: listing item ids: %w", err)
	}
	var ids []int
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("gw2api: decoding item id listing: %w", err)
	}
	return ids, nil
}

// ItemsBulk fetches many items in pages of up to 200 ids, with bounded
// parallelism. Ids the API does not know are absent from the result, not an
// error; the API omits them from partial-success responses.
func (c *Client) ItemsBulk(ctx context.Context, ids []int) ([]Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	pages := make([][]int, 0, (len(ids)+bulkPageSize-1)/bulkPageSize)
	for start := 0; start < len(ids); start += bulkPageSize {
		end := min(start+bulkPageSize, len(ids))
		pages = append(pages, ids[start:end])
	}

	results := make([][]Item, len(pages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, page := range pages {
		g.Go(func() error {
			items, err := c.itemsPage(gctx, page)
			if err != nil {
				return err
			}
			results[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var items []Item
	for _, page := range results {
		items = append(items, page...)
	}
	return items, nil
}

func (c *Client) itemsPage(ctx context.Context, ids []int) ([]Item, error) {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	q := url.Values{"ids": {strings.Join(parts, ",")}}

	raw, err := c.get(ctx, "/v2/items", q)
	if err != nil {
		// A page whose ids are all unknown comes back 404.
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.NotFound() {
			return nil, nil
		}
		return nil, fmt.Errorf("gw2api: fetching item page: %w", err)
	}
	var items []Item
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("gw2api: decoding item page: %w", err)
	}
	return items, nil
}

// Currencies fetches all wallet currencies.
func (c *Client) Currencies(ctx context.Context) ([]Currency, error) {
	key := "api:currencies"
	if c.cache != nil {
		if raw, ok := c.cache.Get(key); ok {
			var currencies []Currency
			if err := json.Unmarshal(raw, &currencies); err == nil {
				return currencies, nil
			}
		}
	}

	raw, err := c.get(ctx, "/v2/currencies", url.Values{"ids": {"all"}})
	if err != nil {
		return nil, fmt.Errorf("gw2api: fetching currencies: %w", err)
	}
	var currencies []Currency
	if err := json.Unmarshal(raw, &currencies); err != nil {
		return nil, fmt.Errorf("gw2api: decoding currencies: %w", err)
	}
	if c.cache != nil {
		if err := c.cache.Set(key, CacheTag, raw); err != nil {
			c.logger.Warn("caching currencies failed", "error", err)
		}
	}
	return currencies, nil
}

// get performs a GET with retry on transient failures. Waits double per
// attempt up to maxWait, with up to 25% random jitter.
func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	wait := c.baseWait
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			jittered := wait + time.Duration(rand.Int64N(int64(wait)/4+1))
			c.logger.Debug("retrying request", "url", u, "attempt", attempt, "wait", jittered)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(jittered):
			}
			wait *= 2
			if wait > c.maxWait {
				wait = c.maxWait
			}
		}

		raw, err := c.doOnce(ctx, u)
		if err == nil {
			return raw, nil
		}
		lastErr = err

		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.Retryable() {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("giving up after %d attempts: %w", c.maxRetries+1, lastErr)
}

func (c *Client) doOnce(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}
