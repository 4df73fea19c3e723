package idempotency

import (
	"context"
	"sync"
	"time"
)

// DefaultCleanupInterval is how often MemoryStore drops expired keys.
const DefaultCleanupInterval = time.Minute

// MemoryStore implements Store in process memory.
//
// Keys are lost on restart and not shared between processes; use RedisStore
// when several devices relay the same codes.
//
// Example:
//
//	store := idempotency.NewMemoryStore(10 * time.Minute)
//	defer store.Close()
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]time.Time // key -> expiry
	ttl     time.Duration
	closed  bool
	stopCh  chan struct{}
}

// NewMemoryStore creates a store that remembers keys for ttl. A background
// goroutine drops expired keys every DefaultCleanupInterval; call Close to
// stop it.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]time.Time),
		ttl:     ttl,
		stopCh:  make(chan struct{}),
	}
	go s.cleanup(DefaultCleanupInterval)
	return s
}

// IsDuplicate reports whether key is marked and unexpired, marking it if not.
func (s *MemoryStore) IsDuplicate(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, ErrStoreClosed
	}
	now := time.Now()
	if expiry, ok := s.entries[key]; ok && now.Before(expiry) {
		return true, nil
	}
	s.entries[key] = now.Add(s.ttl)
	return false, nil
}

// Remove forgets key.
func (s *MemoryStore) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	delete(s.entries, key)
	return nil
}

// Len returns the number of tracked keys, including expired ones not yet
// cleaned up.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	close(s.stopCh)
	return nil
}

func (s *MemoryStore) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.removeExpired(time.Now())
		}
	}
}

func (s *MemoryStore) removeExpired(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, expiry := range s.entries {
		if !now.Before(expiry) {
			delete(s.entries, key)
		}
	}
}

// Compile-time check that MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)
