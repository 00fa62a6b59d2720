package cache

import (
	"bytes"
	"context"
	"sync"
	"time"
)

type entry struct {
	value []byte
	// zero means the entry never expires
	expiresAt time.Time
}

// MemoryStore keeps values in process memory. Only the replica that runs
// the refresh cycle sees its status, which is enough for a single instance.
type MemoryStore struct {
	mu       sync.Mutex
	entries  map[string]entry
	counters map[string]int64
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries:  map[string]entry{},
		counters: map[string]int64{},
		now:      time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		delete(s.entries, key)
		return nil, false, nil
	}
	return bytes.Clone(e.value), true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := entry{value: bytes.Clone(value)}
	s.mu.Lock()
	defer s.mu.Unlock()
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.entries[key] = e
	return nil
}

func (s *MemoryStore) Incr(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[key]++
	return s.counters[key], nil
}
