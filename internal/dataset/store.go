// Package dataset persists curated items. The YAML store is the canonical
// human-reviewable form, one file per item; the Postgres store serves
// downstream consumers that want the dataset queryable. Both implement
// [Store].
package dataset

import (
	"context"
	"slices"
	"sync"

	"github.com/krjackso/gw2-data-repo/internal/acquisition"
)

// Store is the persistence interface the tree walker writes through.
type Store interface {
	// Load returns the stored item and whether it exists.
	Load(ctx context.Context, id int) (*acquisition.Item, bool, error)

	// Save inserts or replaces the item.
	Save(ctx context.Context, item *acquisition.Item) error

	// IDs returns all stored item ids, ascending.
	IDs(ctx context.Context) ([]int, error)

	// Delete removes the item if present.
	Delete(ctx context.Context, id int) error
}

// MemStore is an in-memory [Store]. It backs tests and dry-run walks, where
// results must not touch the real dataset.
type MemStore struct {
	mu    sync.RWMutex
	items map[int]acquisition.Item
}

var _ Store = (*MemStore)(nil)

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{items: map[int]acquisition.Item{}}
}

// Load implements [Store].
func (s *MemStore) Load(_ context.Context, id int) (*acquisition.Item, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok {
		return nil, false, nil
	}
	return &item, true, nil
}

// Save implements [Store].
func (s *MemStore) Save(_ context.Context, item *acquisition.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ID] = *item
	return nil
}

// IDs implements [Store].
func (s *MemStore) IDs(_ context.Context) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int, 0, len(s.items))
	for id := range s.items {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// Delete implements [Store].
func (s *MemStore) Delete(_ context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	return nil
}
