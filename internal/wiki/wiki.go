// Package wiki fetches rendered article HTML from the community wiki via the
// MediaWiki action API. Pages are cached durably under the "wiki" tag so
// repeat runs reparse without refetching.
package wiki

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the community wiki endpoint.
const DefaultBaseURL = "https://wiki.guildwars2.com"

// CacheTag marks cache entries written by this client.
const CacheTag = "wiki"

// Cache is the durable write-through cache for fetched pages.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key, tag string, value []byte) error
}

// PageError is a page-level failure from the wiki API, e.g. a missing
// article.
type PageError struct {
	Page string
	Code string
	Info string
}

func (e *PageError) Error() string {
	return fmt.Sprintf("wiki: page %q: %s: %s", e.Page, e.Code, e.Info)
}

// Missing reports whether the article does not exist.
func (e *PageError) Missing() bool {
	return e.Code == "missingtitle"
}

// Client fetches pages through the action=parse API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      Cache
	logger     *slog.Logger
	maxRetries int
	baseWait   time.Duration
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

// WithCache enables durable caching of fetched pages.
func WithCache(cache Cache) Option {
	return func(c *Client) { c.cache = cache }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New constructs a Client.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     slog.Default(),
		maxRetries: 3,
		baseWait:   500 * time.Millisecond,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// parseResponse is the action=parse envelope.
type parseResponse struct {
	Parse struct {
		Title string `json:"title"`
		Text  struct {
			Content string `json:"*"`
		} `json:"text"`
	} `json:"parse"`
	Error *struct {
		Code string `json:"code"`
		Info string `json:"info"`
	} `json:"error"`
}

// PageHTML returns the rendered HTML body of the named article.
func (c *Client) PageHTML(ctx context.Context, pageName string) (string, error) {
	key := "wiki:" + pageName
	if c.cache != nil {
		if raw, ok := c.cache.Get(key); ok {
			return string(raw), nil
		}
	}

	q := url.Values{
		"action": {"parse"},
		"page":   {pageName},
		"prop":   {"text"},
		"format": {"json"},
	}
	raw, err := c.get(ctx, q)
	if err != nil {
		return "", fmt.Errorf("wiki: fetching page %q: %w", pageName, err)
	}

	var parsed parseResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("wiki: decoding parse response for %q: %w", pageName, err)
	}
	if parsed.Error != nil {
		return "", &PageError{Page: pageName, Code: parsed.Error.Code, Info: parsed.Error.Info}
	}

	html := parsed.Parse.Text.Content
	if c.cache != nil {
		if err := c.cache.Set(key, CacheTag, []byte(html)); err != nil {
			c.logger.Warn("caching wiki page failed", "page", pageName, "error", err)
		}
	}
	return html, nil
}

// PageURL returns the canonical article URL for a display name.
func PageURL(name string) string {
	return DefaultBaseURL + "/wiki/" + url.PathEscape(strings.ReplaceAll(name, " ", "_"))
}

func (c *Client) get(ctx context.Context, q url.Values) ([]byte, error) {
	u := c.baseURL + "/api.php?" + q.Encode()

	wait := c.baseWait
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			jittered := wait + time.Duration(rand.Int64N(int64(wait)/4+1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(jittered):
			}
			wait *= 2
		}

		raw, status, err := c.doOnce(ctx, u)
		if err == nil && status == http.StatusOK {
			return raw, nil
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("status %d", status)
			if status != http.StatusTooManyRequests && status < 500 {
				return nil, lastErr
			}
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("giving up after %d attempts: %w", c.maxRetries+1, lastErr)
}

func (c *Client) doOnce(ctx context.Context, u string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, 0, err
	}
	return body, resp.StatusCode, nil
}
