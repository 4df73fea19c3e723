// Package offload keeps payloads that are too large for a QR symbol in a
// shared store and puts a short reference in the symbol instead.
//
// The reference payload is a one-key JSON object:
//
//	{"qrshare_ref":"6f1c0a4e-8a57-4c1e-9d4b-0d8c1f3a2b7e"}
//
// The importing side recognizes it with IsRef and fetches the original
// payload from the same store.
//
// Stores:
//   - MemoryStore: in-process, for tests and single-instance use
//   - RedisStore: Redis keys with expiry
//   - MongoStore: MongoDB documents with a TTL index
package offload

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a key does not exist or has expired.
	ErrNotFound = errors.New("offload: payload not found")

	// ErrStoreClosed is returned when operating on a closed store.
	ErrStoreClosed = errors.New("offload: store is closed")
)

// Store keeps offloaded payloads.
type Store interface {
	// Put stores data and returns its new key. A ttl <= 0 keeps the data
	// until it is deleted.
	Put(ctx context.Context, data []byte, ttl time.Duration) (string, error)

	// Get returns the data stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases the store. Clients passed in by the caller stay open.
	Close() error
}

// RefKey is the JSON key of a reference payload.
const RefKey = "qrshare_ref"

// Ref returns the reference payload for key.
func Ref(key string) string {
	data, _ := json.Marshal(map[string]string{RefKey: key})
	return string(data)
}

// IsRef reports whether text is a reference payload and returns its key.
// Only a JSON object with RefKey as its single, non-empty string member
// qualifies.
func IsRef(text string) (string, bool) {
	if !strings.Contains(text, RefKey) {
		return "", false
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &m); err != nil || len(m) != 1 {
		return "", false
	}
	raw, ok := m[RefKey]
	if !ok {
		return "", false
	}
	var key string
	if err := json.Unmarshal(raw, &key); err != nil || key == "" {
		return "", false
	}
	return key, true
}
