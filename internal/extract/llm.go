package extract

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/krjackso/gw2-data-repo/internal/observe"
	"github.com/krjackso/gw2-data-repo/pkg/provider/llm"
)

// contentHashLength truncates the wiki-content hash used in cache keys.
const contentHashLength = 16

// CacheTag is the invalidation tag extraction results are stored under.
const CacheTag = "llm"

// PageFetcher supplies the rendered wiki HTML for an item. Implemented by
// internal/wiki.
type PageFetcher interface {
	PageHTML(ctx context.Context, pageName string) (string, error)
}

// ParseError reports model output that could not be decoded into raw
// entries. It is always fatal to the single item being extracted.
type ParseError struct {
	ItemID int
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("extract: item %d: model output is not valid entry JSON: %v", e.ItemID, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// LLMExtractor implements [Extractor] with a wiki fetch followed by an LLM
// structured-extraction call. Results are cached by content hash so unchanged
// wiki pages never hit the model twice.
type LLMExtractor struct {
	wiki     PageFetcher
	provider llm.Provider
	model    string
	cache    Cache
	logger   *slog.Logger
	metrics  *observe.Metrics
}

// Compile-time interface check.
var _ Extractor = (*LLMExtractor)(nil)

// Option configures an LLMExtractor.
type Option func(*LLMExtractor)

// WithCache attaches a cache for extraction results.
func WithCache(c Cache) Option {
	return func(x *LLMExtractor) { x.cache = c }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(x *LLMExtractor) { x.logger = l }
}

// WithMetrics overrides the default metrics instance.
func WithMetrics(m *observe.Metrics) Option {
	return func(x *LLMExtractor) { x.metrics = m }
}

// NewLLMExtractor builds an extractor over the given wiki fetcher and LLM
// provider. model is a label used only for cache keying and logging — the
// provider is already bound to its model.
func NewLLMExtractor(wiki PageFetcher, provider llm.Provider, model string, opts ...Option) *LLMExtractor {
	x := &LLMExtractor{
		wiki:     wiki,
		provider: provider,
		model:    model,
		logger:   slog.Default(),
		metrics:  observe.DefaultMetrics(),
	}
	for _, o := range opts {
		o(x)
	}
	return x
}

// extractionResult is the wire shape of the model's reply.
type extractionResult struct {
	Entries []RawEntry `json:"entries"`
}

// Extract implements [Extractor].
func (x *LLMExtractor) Extract(ctx context.Context, itemID int, itemName string) ([]RawEntry, error) {
	html, err := x.wiki.PageHTML(ctx, itemName)
	if err != nil {
		return nil, &SourceUnavailableError{ItemID: itemID, ItemName: itemName, Err: err}
	}

	sum := sha256.Sum256([]byte(html))
	contentHash := hex.EncodeToString(sum[:])[:contentHashLength]
	cacheKey := fmt.Sprintf("llm:%d:%s:%s:%s", itemID, itemName, contentHash, x.model)

	if x.cache != nil {
		if raw, ok := x.cache.Get(cacheKey); ok {
			var cached extractionResult
			if err := json.Unmarshal(raw, &cached); err == nil {
				x.logger.Debug("extraction cache hit", "item_id", itemID, "hash", contentHash)
				x.metrics.RecordCacheLookup(ctx, CacheTag, true)
				return cached.Entries, nil
			}
			// Unreadable cache entries are misses, never errors.
			x.logger.Warn("discarding unreadable extraction cache entry", "key", cacheKey)
		}
		x.metrics.RecordCacheLookup(ctx, CacheTag, false)
	}

	x.logger.Info("extracting acquisitions", "item_id", itemID, "item", itemName, "model", x.model)
	start := time.Now()
	resp, err := x.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		Messages: []llm.Message{{
			Role:    "user",
			Content: fmt.Sprintf("Item ID: %d\nItem name: %s\n\nWiki page HTML:\n%s", itemID, itemName, html),
		}},
	})
	x.metrics.ExtractDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		return nil, &SourceUnavailableError{ItemID: itemID, ItemName: itemName, Err: err}
	}

	result, err := parseEntries(resp.Content)
	if err != nil {
		return nil, &ParseError{ItemID: itemID, Err: err}
	}

	if x.cache != nil {
		raw, err := json.Marshal(result)
		if err == nil {
			if err := x.cache.Set(cacheKey, CacheTag, raw); err != nil {
				x.logger.Warn("failed to cache extraction result", "key", cacheKey, "err", err)
			}
		}
	}
	return result.Entries, nil
}

// parseEntries decodes the model reply, tolerating accidental markdown fences
// around the JSON body.
func parseEntries(content string) (extractionResult, error) {
	trimmed := strings.TrimSpace(content)
	if after, ok := strings.CutPrefix(trimmed, "```json"); ok {
		trimmed = after
	} else if after, ok := strings.CutPrefix(trimmed, "```"); ok {
		trimmed = after
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")

	var result extractionResult
	dec := json.NewDecoder(strings.NewReader(trimmed))
	if err := dec.Decode(&result); err != nil {
		return extractionResult{}, err
	}
	for i := range result.Entries {
		if result.Entries[i].Quantity == 0 {
			result.Entries[i].Quantity = 1
		}
	}
	return result, nil
}
