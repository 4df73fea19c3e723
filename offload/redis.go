package offload

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix is the key prefix used by RedisStore.
const DefaultRedisPrefix = "qrshare:payload:"

// RedisStore implements Store with plain Redis keys.
//
// Each payload is written with SET and an expiry, so Redis removes it
// without any sweeping on our side.
//
// Example:
//
//	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	store := offload.NewRedisStore(rdb).WithPrefix("myapp:qr:")
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	closed atomic.Bool
}

// NewRedisStore creates a Redis-backed store. The client supports single
// node, Sentinel and Cluster setups.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: DefaultRedisPrefix,
	}
}

// WithPrefix sets the key prefix. Returns the store for method chaining.
func (s *RedisStore) WithPrefix(prefix string) *RedisStore {
	s.prefix = prefix
	return s
}

// Put stores data under a new random key.
func (s *RedisStore) Put(ctx context.Context, data []byte, ttl time.Duration) (string, error) {
	if s.closed.Load() {
		return "", ErrStoreClosed
	}
	if ttl < 0 {
		ttl = 0
	}
	key := uuid.NewString()
	if err := s.client.Set(ctx, s.prefix+key, data, ttl).Err(); err != nil {
		return "", fmt.Errorf("put payload: %w", err)
	}
	return key, nil
}

// Get returns the data under key.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get payload: %w", err)
	}
	return data, nil
}

// Delete removes key.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("delete payload: %w", err)
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
