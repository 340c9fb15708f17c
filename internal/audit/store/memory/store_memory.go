package memory

import (
	"context"
	"sync"

	"provisor/internal/audit"
	id "provisor/pkg/domain"
)

// InMemoryStore materializes audit entries directly; there is no outbox
// hop in memory mode.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries []audit.Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
}

func (s *InMemoryStore) Append(_ context.Context, entry audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *InMemoryStore) ListByRequest(_ context.Context, requestID id.RequestID) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Entry
	for _, entry := range s.entries {
		if entry.RequestID == requestID {
			out = append(out, entry)
		}
	}
	return out, nil
}

// ListRecent returns the most recent N entries. Append order doubles as
// time order here.
func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := len(s.entries) - limit
	if limit <= 0 || start < 0 {
		start = 0
	}
	out := make([]audit.Entry, len(s.entries)-start)
	for i, entry := range s.entries[start:] {
		out[len(out)-1-i] = entry
	}
	return out, nil
}
