package lobby

import (
	"context"
	"maps"
	"sync"
)

// Store holds per-room connection counts. Counts never go below zero.
//
// Redis and Postgres tallies outlive the process, and a crash sends no
// disconnects, so the owner of the tally calls Reset on startup.
type Store interface {
	Adjust(ctx context.Context, roomID string, delta int) error
	Counts(ctx context.Context) (map[string]int, error)
	Reset(ctx context.Context) error
}

type MemoryStore struct {
	mu sync.Mutex
	m  map[string]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		m: make(map[string]int),
	}
}

func (s *MemoryStore) Adjust(_ context.Context, roomID string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[roomID] = max(0, s.m[roomID]+delta)
	return nil
}

func (s *MemoryStore) Reset(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.m)
	return nil
}

func (s *MemoryStore) Counts(context.Context) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.m), nil
}
