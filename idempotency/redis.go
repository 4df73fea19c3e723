package idempotency

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix is the key prefix used by RedisStore.
const DefaultRedisPrefix = "qrshare:seen:"

// RedisStore implements Store with Redis SET NX, so the check and the mark
// are one atomic step across every process sharing the server. Expiry is
// left to Redis.
//
// Example:
//
//	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	store := idempotency.NewRedisStore(rdb, 10*time.Minute).WithPrefix("myapp:seen:")
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
	closed atomic.Bool
}

// NewRedisStore creates a store that remembers keys for ttl.
func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		ttl:    ttl,
		prefix: DefaultRedisPrefix,
	}
}

// WithPrefix sets the key prefix. Returns the store for method chaining.
func (s *RedisStore) WithPrefix(prefix string) *RedisStore {
	s.prefix = prefix
	return s
}

// IsDuplicate marks key with SET NX and reports whether it already existed.
func (s *RedisStore) IsDuplicate(ctx context.Context, key string) (bool, error) {
	if s.closed.Load() {
		return false, ErrStoreClosed
	}
	set, err := s.client.SetNX(ctx, s.prefix+key, "1", s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return !set, nil
}

// Remove deletes key.
func (s *RedisStore) Remove(ctx context.Context, key string) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Close marks the store closed. The Redis client is left open.
func (s *RedisStore) Close() error {
	s.closed.Store(true)
	return nil
}

// Compile-time check that RedisStore implements Store
var _ Store = (*RedisStore)(nil)
