package lock

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store with real TTL expiry. It backs tests and
// single-node deployments that run without redis.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// SetClock overrides the time source (used in expiry tests).
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryStore) SetNX(_ context.Context, key, _ string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if deadline, ok := s.entries[key]; ok && s.now().Before(deadline) {
		return false, nil
	}
	s.entries[key] = s.now().Add(ttl)
	return true, nil
}

func (s *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deadline, ok := s.entries[key]
	if !ok {
		return false, nil
	}
	if !s.now().Before(deadline) {
		delete(s.entries, key)
		return false, nil
	}
	return true, nil
}

func (s *MemoryStore) Del(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deadline, ok := s.entries[key]
	if !ok {
		return false, nil
	}
	delete(s.entries, key)
	// An expired entry counts as already gone.
	return s.now().Before(deadline), nil
}
