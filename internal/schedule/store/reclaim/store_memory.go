// Package reclaim persists scheduled license reclaim items.
//
// Error contract: Schedule upserts by item ID (callers always generate
// fresh UUIDs); Complete is idempotent, completing an absent item is a
// no-op; Due and ListPending return items ordered by due time.
package reclaim

import (
	"context"
	"sort"
	"sync"
	"time"

	"provisor/internal/schedule"
	id "provisor/pkg/domain"
)

// InMemoryStore keeps reclaim items in process memory. Dev mode and tests.
type InMemoryStore struct {
	mu    sync.RWMutex
	items map[id.ReclaimID]schedule.Item
}

// NewInMemory creates an empty in-memory reclaim store.
func NewInMemory() *InMemoryStore {
	return &InMemoryStore{items: make(map[id.ReclaimID]schedule.Item)}
}

// Schedule stages an item for later reclaim.
func (s *InMemoryStore) Schedule(_ context.Context, item schedule.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ID] = cloneItem(item)
	return nil
}

// Due returns up to limit items whose due time is at or before now.
func (s *InMemoryStore) Due(_ context.Context, now time.Time, limit int) ([]schedule.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []schedule.Item
	for _, item := range s.items {
		if !item.DueAt.After(now) {
			out = append(out, cloneItem(item))
		}
	}
	sortByDueTime(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Complete removes an item. Unknown IDs are ignored.
func (s *InMemoryStore) Complete(_ context.Context, itemID id.ReclaimID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, itemID)
	return nil
}

// ListPending returns every scheduled item ordered by due time.
func (s *InMemoryStore) ListPending(_ context.Context) ([]schedule.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]schedule.Item, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, cloneItem(item))
	}
	sortByDueTime(out)
	return out, nil
}

func cloneItem(item schedule.Item) schedule.Item {
	clone := item
	clone.LicenseIDs = append([]string(nil), item.LicenseIDs...)
	return clone
}

func sortByDueTime(items []schedule.Item) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].DueAt.Equal(items[j].DueAt) {
			return items[i].ID.String() < items[j].ID.String()
		}
		return items[i].DueAt.Before(items[j].DueAt)
	})
}
