package schema

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"unicode/utf8"

	"github.com/rbaliyan/qrshare/payload"
)

// VersionedOption configures a Versioned codec.
type VersionedOption func(*versionedOptions)

type versionedOptions struct {
	strict bool
	logger *slog.Logger
}

// WithStrict rejects payloads that are not wrapped in an envelope.
func WithStrict() VersionedOption {
	return func(o *versionedOptions) {
		o.strict = true
	}
}

// WithLogger sets the logger used for upcast diagnostics.
func WithLogger(l *slog.Logger) VersionedOption {
	return func(o *versionedOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// Versioned encodes T inside a versioned envelope and decodes envelopes of
// any registered version back into T.
//
// Versioned is safe for concurrent use.
type Versioned[T any] struct {
	registry Registry
	name     string
	typed    payload.Typed[T]
	opts     versionedOptions
}

// NewVersioned returns a versioned codec for the payload type name.
// The envelope data is always JSON.
func NewVersioned[T any](registry Registry, name string, opts ...VersionedOption) *Versioned[T] {
	o := versionedOptions{
		logger: slog.Default().With("component", "schema"),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Versioned[T]{
		registry: registry,
		name:     name,
		typed:    payload.For[T](payload.JSON{}),
		opts:     o,
	}
}

// Name returns the payload type name written into envelopes.
func (c *Versioned[T]) Name() string {
	return c.name
}

// Encode encodes v and wraps it in an envelope carrying the latest
// registered version. Without a registered schema the payload is encoded
// without an envelope.
func (c *Versioned[T]) Encode(ctx context.Context, v T) (string, error) {
	data, err := c.typed.EncodeBytes(v)
	if err != nil {
		return "", err
	}

	_, version, err := c.registry.GetLatestSchema(ctx, c.name)
	if err != nil {
		c.opts.logger.Debug("no schema registered, encoding unversioned", "type", c.name)
		return string(data), nil
	}

	out, err := NewEnvelope(c.name, version, data).Encode()
	if err != nil {
		return "", &payload.EncodeError{Type: typeName[T](), Reason: payload.ReasonUnsupported, Err: err}
	}
	return string(out), nil
}

// Decode unwraps an envelope, upcasts older versions to the latest,
// validates the result against the latest schema and decodes it into T.
//
// Envelopes naming another payload type and versions newer than the latest
// registered one are rejected. Every failure is a *payload.DecodeError and
// returns the zero T.
func (c *Versioned[T]) Decode(ctx context.Context, data []byte) (T, error) {
	var zero T
	typ := typeName[T]()

	if len(data) == 0 {
		return zero, payload.NewDecodeError(typ, payload.ReasonEmpty, nil)
	}
	if !utf8.Valid(data) {
		return zero, payload.NewDecodeError(typ, payload.ReasonInvalidUTF8, nil)
	}

	env, err := DecodeEnvelope(data)
	switch {
	case errors.Is(err, ErrNotEnvelope):
		if c.opts.strict {
			return zero, payload.NewDecodeError(typ, payload.ReasonVersion, ErrUnversioned)
		}
		return c.typed.Decode(data)
	case err != nil:
		return zero, payload.NewDecodeError(typ, payload.ReasonMalformed, err)
	}

	if env.Type != c.name {
		return zero, payload.NewDecodeError(typ, payload.ReasonShapeMismatch,
			fmt.Errorf("%w: got %q, want %q", ErrTypeMismatch, env.Type, c.name))
	}
	if env.Version < 1 {
		return zero, payload.NewDecodeError(typ, payload.ReasonMalformed,
			fmt.Errorf("invalid envelope version %d", env.Version))
	}

	latestSchema, latest, err := c.registry.GetLatestSchema(ctx, c.name)
	if err != nil {
		// Nothing registered to upcast or validate against.
		return c.typed.Decode(env.Data)
	}
	if env.Version > latest {
		return zero, payload.NewDecodeError(typ, payload.ReasonVersion,
			fmt.Errorf("version %d is newer than the latest known version %d", env.Version, latest))
	}

	body := []byte(env.Data)
	if env.Version < latest {
		body, _, err = c.registry.UpcastToLatest(ctx, c.name, body, env.Version)
		if err != nil {
			return zero, payload.NewDecodeError(typ, payload.ReasonVersion, err)
		}
		c.opts.logger.Debug("upcast payload", "type", c.name, "from", env.Version, "to", latest)
	}

	if err := latestSchema.Validate(body); err != nil {
		return zero, payload.NewDecodeError(typ, payload.ReasonShapeMismatch, err)
	}
	return c.typed.Decode(body)
}

// DecodeString decodes a scanned string.
func (c *Versioned[T]) DecodeString(ctx context.Context, s string) (T, error) {
	return c.Decode(ctx, []byte(s))
}

func typeName[T any]() string {
	return reflect.TypeFor[T]().String()
}
