package dataset

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/krjackso/gw2-data-repo/internal/acquisition"
)

// YAMLStore keeps one file per item, named <id>.yaml, under a single
// directory. Files are written atomically so an interrupted run never leaves
// a half-written item behind.
type YAMLStore struct {
	dir string
}

var _ Store = (*YAMLStore)(nil)

// NewYAMLStore opens (creating if needed) a store rooted at dir.
func NewYAMLStore(dir string) (*YAMLStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("dataset: creating store dir %s: %w", dir, err)
	}
	return &YAMLStore{dir: dir}, nil
}

// Load implements [Store]. A malformed file is an error, not a miss: the
// dataset is hand-reviewable and silent data loss on a typo would be worse
// than a failed run.
func (s *YAMLStore) Load(_ context.Context, id int) (*acquisition.Item, bool, error) {
	raw, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("dataset: reading item %d: %w", id, err)
	}

	var item acquisition.Item
	if err := yaml.Unmarshal(raw, &item); err != nil {
		return nil, false, fmt.Errorf("dataset: decoding item %d: %w", id, err)
	}
	return &item, true, nil
}

// Save implements [Store].
func (s *YAMLStore) Save(_ context.Context, item *acquisition.Item) error {
	raw, err := yaml.Marshal(item)
	if err != nil {
		return fmt.Errorf("dataset: encoding item %d: %w", item.ID, err)
	}

	p := s.path(item.ID)
	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("dataset: creating temp file: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("dataset: writing item %d: %w", item.ID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("dataset: closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("dataset: committing item %d: %w", item.ID, err)
	}
	return nil
}

// IDs implements [Store].
func (s *YAMLStore) IDs(_ context.Context) ([]int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("dataset: listing store dir: %w", err)
	}

	var ids []int
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".yaml") {
			continue
		}
		id, err := strconv.Atoi(strings.TrimSuffix(name, ".yaml"))
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// Delete implements [Store].
func (s *YAMLStore) Delete(_ context.Context, id int) error {
	err := os.Remove(s.path(id))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("dataset: deleting item %d: %w", id, err)
	}
	return nil
}

func (s *YAMLStore) path(id int) string {
	return filepath.Join(s.dir, strconv.Itoa(id)+".yaml")
}
