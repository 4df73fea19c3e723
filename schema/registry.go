// Package schema versions QR payloads so that codes printed by an older
// release can still be imported after the payload type changes.
//
// A versioned payload is wrapped in a small JSON envelope that names the
// payload type and its schema version:
//
//	{"type":"contact","v":2,"data":{"id":42,"name":"alice"}}
//
// On import, envelopes of older versions are upcast step by step
// (v1->v2->v3) to the latest registered version, validated against the
// latest schema and then decoded into the Go type.
//
// # Basic Usage
//
//	registry := schema.NewMemoryRegistry()
//
//	registry.Register(ctx, "contact", schema.NewJSONSchema("contact", 1).
//	    WithRequired("id", "full_name"))
//	registry.Register(ctx, "contact", schema.NewJSONSchema("contact", 2).
//	    WithRequired("id", "name", "email").
//	    WithProperty("email", "string"))
//
//	registry.AddUpcaster("contact", schema.NewFieldMapper(1, 2).
//	    RenameField("full_name", "name").
//	    AddDefault("email", ""))
//
//	contacts := schema.NewVersioned[Contact](registry, "contact")
//	text, err := contacts.Encode(ctx, c)      // always the latest version
//	c, err = contacts.DecodeString(ctx, text) // any known version
//
// Payloads without an envelope are accepted as legacy input and decoded
// directly, unless the Versioned was built with WithStrict.
package schema

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
)

var (
	// ErrSchemaNotFound indicates a schema was not found.
	ErrSchemaNotFound = errors.New("schema not found")

	// ErrInvalidPayload indicates the payload doesn't match the schema.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrNoUpcaster indicates no upcaster is available for the version transition.
	ErrNoUpcaster = errors.New("no upcaster available")

	// ErrTypeMismatch indicates an envelope carries a different payload type.
	ErrTypeMismatch = errors.New("payload type mismatch")

	// ErrUnversioned indicates a strict decoder received a payload without
	// an envelope.
	ErrUnversioned = errors.New("payload is not versioned")
)

// Schema describes one version of a payload type.
type Schema interface {
	// Name returns the payload type name, e.g. "contact".
	Name() string

	// Version returns the schema version number, starting at 1.
	Version() int

	// Validate checks JSON data against this schema.
	// Returns an error wrapping ErrInvalidPayload on mismatch.
	Validate(data []byte) error
}

// Registry stores the schema versions and upcasters of payload types.
//
// Implementations:
//   - MemoryRegistry: in-memory storage, loaded at startup
type Registry interface {
	// Register registers a schema under a payload type name.
	// Returns the registered version number.
	Register(ctx context.Context, name string, schema Schema) (int, error)

	// GetSchema retrieves a specific schema version.
	// Returns ErrSchemaNotFound if not found.
	GetSchema(ctx context.Context, name string, version int) (Schema, error)

	// GetLatestSchema retrieves the schema with the highest version.
	// Returns ErrSchemaNotFound if no schemas are registered.
	GetLatestSchema(ctx context.Context, name string) (Schema, int, error)

	// ListVersions lists the registered versions in ascending order.
	ListVersions(ctx context.Context, name string) ([]int, error)

	// AddUpcaster adds an upcaster for transforming between versions.
	AddUpcaster(name string, upcaster Upcaster)

	// UpcastToLatest transforms JSON data of the given version to the latest
	// version. Returns ErrNoUpcaster if a step in the chain is missing.
	UpcastToLatest(ctx context.Context, name string, data []byte, fromVersion int) ([]byte, int, error)
}

// Upcaster transforms payload data from one schema version to the next.
//
// Register upcasters in sequence (v1->v2, v2->v3) so they can be chained.
//
// Implementations:
//   - FieldMapper: rename, default and remove fields
type Upcaster interface {
	// FromVersion returns the source version this upcaster handles.
	FromVersion() int

	// ToVersion returns the target version this upcaster produces.
	ToVersion() int

	// Upcast transforms JSON data from source to target version.
	Upcast(ctx context.Context, data []byte) ([]byte, error)
}

// MemoryRegistry is an in-memory schema registry.
// It is safe for concurrent use.
type MemoryRegistry struct {
	mu        sync.RWMutex
	schemas   map[string]map[int]Schema // name -> version -> schema
	upcasters map[string][]Upcaster
}

// NewMemoryRegistry creates a new in-memory schema registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		schemas:   make(map[string]map[int]Schema),
		upcasters: make(map[string][]Upcaster),
	}
}

// Register registers a schema under name. Registering the same version
// again replaces it.
func (r *MemoryRegistry) Register(ctx context.Context, name string, schema Schema) (int, error) {
	version := schema.Version()
	if version < 1 {
		return 0, fmt.Errorf("register %s: version must be >= 1, got %d", name, version)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.schemas[name] == nil {
		r.schemas[name] = make(map[int]Schema)
	}
	r.schemas[name][version] = schema
	return version, nil
}

// GetSchema retrieves a specific schema version.
func (r *MemoryRegistry) GetSchema(ctx context.Context, name string, version int) (Schema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	versions, ok := r.schemas[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSchemaNotFound, name)
	}
	schema, ok := versions[version]
	if !ok {
		return nil, fmt.Errorf("%w: version %d of %s", ErrSchemaNotFound, version, name)
	}
	return schema, nil
}

// GetLatestSchema retrieves the schema with the highest version number.
func (r *MemoryRegistry) GetLatestSchema(ctx context.Context, name string) (Schema, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	versions, ok := r.schemas[name]
	if !ok || len(versions) == 0 {
		return nil, 0, fmt.Errorf("%w: %s", ErrSchemaNotFound, name)
	}

	latest := 0
	for v := range versions {
		latest = max(latest, v)
	}
	return versions[latest], latest, nil
}

// ListVersions lists the registered versions of name in ascending order.
// Returns nil if none are registered.
func (r *MemoryRegistry) ListVersions(ctx context.Context, name string) ([]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	versions, ok := r.schemas[name]
	if !ok {
		return nil, nil
	}
	result := make([]int, 0, len(versions))
	for v := range versions {
		result = append(result, v)
	}
	slices.Sort(result)
	return result, nil
}

// AddUpcaster adds an upcaster for name.
func (r *MemoryRegistry) AddUpcaster(name string, upcaster Upcaster) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.upcasters[name] = append(r.upcasters[name], upcaster)
}

// GetUpcaster finds the upcaster for a specific version transition.
func (r *MemoryRegistry) GetUpcaster(name string, fromVersion, toVersion int) (Upcaster, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.upcasters[name] {
		if u.FromVersion() == fromVersion && u.ToVersion() == toVersion {
			return u, nil
		}
	}
	return nil, fmt.Errorf("%w: %s from v%d to v%d", ErrNoUpcaster, name, fromVersion, toVersion)
}

// UpcastToLatest applies upcasters in sequence until the latest version
// is reached.
func (r *MemoryRegistry) UpcastToLatest(ctx context.Context, name string, data []byte, fromVersion int) ([]byte, int, error) {
	_, latest, err := r.GetLatestSchema(ctx, name)
	if err != nil {
		return nil, 0, err
	}

	result := data
	for v := fromVersion; v < latest; v++ {
		upcaster, err := r.GetUpcaster(name, v, v+1)
		if err != nil {
			return nil, v, err
		}
		result, err = upcaster.Upcast(ctx, result)
		if err != nil {
			return nil, v, fmt.Errorf("upcast from v%d to v%d: %w", v, v+1, err)
		}
	}
	return result, latest, nil
}

// Compile-time check
var _ Registry = (*MemoryRegistry)(nil)
