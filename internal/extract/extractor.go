package extract

import "context"

// Extractor turns an item's wiki page into raw acquisition candidates.
// Implementations fail with [*SourceUnavailableError] when the page or the
// backing model cannot be reached, and with [*ParseError] when the source was
// reachable but produced output that cannot be understood.
type Extractor interface {
	// Extract returns the raw entries for the named item. The returned
	// slice preserves source order; it may be empty for items the wiki
	// documents no acquisition for.
	Extract(ctx context.Context, itemID int, itemName string) ([]RawEntry, error)
}

// Cache is the optional persistence used to avoid re-running extraction on
// unchanged wiki content. A nil cache is a valid (if slow) configuration:
// caching is a transparent speed-up, never a correctness dependency.
type Cache interface {
	// Get returns the cached value for key, if present and readable.
	Get(key string) ([]byte, bool)

	// Set stores value under key with the given invalidation tag.
	Set(key, tag string, value []byte) error
}
