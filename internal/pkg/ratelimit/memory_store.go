package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/gatekeyhq/gatekey/internal/pkg/clock"
)

type memoryEntry struct {
	count     int64
	expiresAt time.Time
}

// MemoryStore is an in-process limiter store for tests and single-instance
// deployments. Entries expire lazily on access.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	clock   clock.Clocker
}

// NewMemoryStore builds an empty in-memory store using clk for expiry.
func NewMemoryStore(clk clock.Clocker) *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry), clock: clk}
}

func (s *MemoryStore) Incr(_ context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()

	entry, ok := s.entries[key]
	if !ok || !entry.expiresAt.After(now) {
		entry = memoryEntry{count: 0, expiresAt: now.Add(window)}
	}

	entry.count++
	s.entries[key] = entry

	return entry.count, nil
}

func (s *MemoryStore) Count(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok || !entry.expiresAt.After(s.clock.Now()) {
		return 0, nil
	}

	return entry.count, nil
}

func (s *MemoryStore) Lock(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = memoryEntry{count: 1, expiresAt: s.clock.Now().Add(ttl)}

	return nil
}

func (s *MemoryStore) LockTTL(_ context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return 0, nil
	}

	ttl := entry.expiresAt.Sub(s.clock.Now())
	if ttl <= 0 {
		delete(s.entries, key)

		return 0, nil
	}

	return ttl, nil
}

func (s *MemoryStore) Reset(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		delete(s.entries, key)
	}

	return nil
}
