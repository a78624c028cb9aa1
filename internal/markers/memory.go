// Package markers provides the version marker stores that are not part of
// the SQLite database: an in-memory map, a BoltDB file and a Redis hash.
package markers

import (
	"context"
	"maps"
	"sync"

	"fwbot-go/internal/fwbot"
)

// MemoryStore keeps markers in a map. State is lost on exit.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]string)}
}

func (s *MemoryStore) Get(_ context.Context, model string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[model], nil
}

func (s *MemoryStore) Set(_ context.Context, model, version string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[model] = version
	return nil
}

func (s *MemoryStore) All(context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.entries), nil
}

var (
	_ fwbot.MarkerStore  = (*MemoryStore)(nil)
	_ fwbot.MarkerLister = (*MemoryStore)(nil)
)
