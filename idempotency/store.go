// Package idempotency remembers which scanned payloads were already handled,
// so a code held in front of a camera, or read by several devices at once,
// is acted on only once within a time window.
//
// Keys are derived from the payload text with Key. A store's IsDuplicate is
// an atomic check-and-mark: the first caller for a key gets false and owns
// it until the TTL passes or Remove is called.
//
//	store := idempotency.NewRedisStore(rdb, 10*time.Minute)
//	dup, err := store.IsDuplicate(ctx, idempotency.Key(res.Text))
//	if err != nil || dup {
//	    return
//	}
//
// Stores:
//   - MemoryStore for a single process
//   - RedisStore for devices or relays sharing one Redis
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// ErrStoreClosed is returned when using a closed store.
var ErrStoreClosed = errors.New("idempotency: store is closed")

// Store tracks handled payload keys. Implementations are safe for
// concurrent use.
type Store interface {
	// IsDuplicate reports whether key was seen within the TTL. When it
	// returns false the key is marked, so concurrent callers for the same
	// key get true.
	IsDuplicate(ctx context.Context, key string) (bool, error)

	// Remove forgets key so the payload is handled again, e.g. after the
	// first attempt failed.
	Remove(ctx context.Context, key string) error

	// Close releases the store. Clients passed in by the caller stay open.
	Close() error
}

// Key returns the store key for a payload: the hex SHA-256 of its text.
// Keys are 64 characters whatever the payload length.
func Key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
