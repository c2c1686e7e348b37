package paylock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type holder struct {
	id         uuid.UUID
	acquiredAt time.Time
}

// MemoryStore keeps locks in a process-local map. It does not survive
// restarts and is not shared between instances; use a Redis store for
// multi-process deployments.
type MemoryStore struct {
	mu    sync.Mutex
	locks map[string]holder
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{locks: make(map[string]holder)}
}

// TryAcquire implements Store.
func (s *MemoryStore) TryAcquire(_ context.Context, key string, id uuid.UUID, now time.Time, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h, ok := s.locks[key]; ok && now.Sub(h.acquiredAt) <= ttl {
		return false, nil
	}
	s.locks[key] = holder{id: id, acquiredAt: now}
	return true, nil
}

// Release implements Store.
func (s *MemoryStore) Release(_ context.Context, key string, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h, ok := s.locks[key]; ok && h.id == id {
		delete(s.locks, key)
	}
	return nil
}

// Sweep implements Store.
func (s *MemoryStore) Sweep(_ context.Context, now time.Time, ttl time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for key, h := range s.locks {
		if now.Sub(h.acquiredAt) > ttl {
			delete(s.locks, key)
			n++
		}
	}
	return n, nil
}

// Len returns the number of held locks, stale ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}
