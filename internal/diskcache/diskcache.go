// Package diskcache is a durable key-value cache on the local filesystem.
// Every entry carries a tag naming the subsystem that wrote it ("api",
// "wiki", "llm"), so one subsystem's entries can be cleared without touching
// the others. Corrupt or unreadable entries are treated as misses, never as
// errors.
package diskcache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// entry is the on-disk envelope. Value round-trips through base64 inside the
// JSON encoding.
type entry struct {
	Key      string    `json:"key"`
	Tag      string    `json:"tag"`
	StoredAt time.Time `json:"storedAt"`
	Value    []byte    `json:"value"`
}

// Stats summarises one tag's share of the cache.
type Stats struct {
	Entries int
	Bytes   int64
}

// Cache stores entries under a root directory, fanned out by the first hash
// byte to keep directories small. Safe for concurrent use by distinct keys;
// same-key writers race benignly (last rename wins).
type Cache struct {
	root   string
	logger *slog.Logger
}

// New opens (creating if needed) a cache rooted at dir.
func New(dir string, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("diskcache: creating root %s: %w", dir, err)
	}
	return &Cache{root: dir, logger: logger}, nil
}

// Get returns the cached value for key. Any read or decode failure is a
// miss.
func (c *Cache) Get(key string) ([]byte, bool) {
	raw, err := os.ReadFile(c.path(key))
	if err != nil {
		return nil, false
	}
	var e entry
	if err := json.Unmarshal(raw, &e); err != nil || e.Key != key {
		c.logger.Debug("discarding unreadable cache entry", "key", key)
		return nil, false
	}
	return e.Value, true
}

// Set stores value under key with the given tag. The write is atomic: a
// temp file in the same directory renamed into place.
func (c *Cache) Set(key, tag string, value []byte) error {
	p := c.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("diskcache: creating shard dir: %w", err)
	}

	raw, err := json.Marshal(entry{
		Key:      key,
		Tag:      tag,
		StoredAt: time.Now().UTC(),
		Value:    value,
	})
	if err != nil {
		return fmt.Errorf("diskcache: encoding entry %q: %w", key, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), ".tmp-*")
	if err != nil {
		return fmt.Errorf("diskcache: creating temp file: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("diskcache: writing entry %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("diskcache: closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("diskcache: committing entry %q: %w", key, err)
	}
	return nil
}

// Delete removes key if present.
func (c *Cache) Delete(key string) error {
	err := os.Remove(c.path(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("diskcache: deleting entry %q: %w", key, err)
	}
	return nil
}

// Clear removes all entries with the given tag, or every entry when tag is
// empty. Returns how many entries were removed.
func (c *Cache) Clear(tag string) (int, error) {
	removed := 0
	err := c.walk(func(path string, e *entry) error {
		if tag != "" && e.Tag != tag {
			return nil
		}
		if err := os.Remove(path); err != nil {
			return err
		}
		removed++
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("diskcache: clearing tag %q: %w", tag, err)
	}
	return removed, nil
}

// TagStats returns per-tag entry counts and byte sizes.
func (c *Cache) TagStats() (map[string]Stats, error) {
	stats := map[string]Stats{}
	err := c.walk(func(path string, e *entry) error {
		s := stats[e.Tag]
		s.Entries++
		s.Bytes += int64(len(e.Value))
		stats[e.Tag] = s
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("diskcache: collecting stats: %w", err)
	}
	return stats, nil
}

func (c *Cache) walk(fn func(path string, e *entry) error) error {
	return filepath.WalkDir(c.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		var e entry
		if err := json.Unmarshal(raw, &e); err != nil {
			// Unreadable entries are skipped here and overwritten on
			// the next Set.
			c.logger.Debug("skipping unreadable cache file", "path", path)
			return nil
		}
		return fn(path, &e)
	})
}

func (c *Cache) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	name := hex.EncodeToString(sum[:])
	return filepath.Join(c.root, name[:2], name+".json")
}
