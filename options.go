package qrshare

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/rbaliyan/qrshare/offload"
	"github.com/rbaliyan/qrshare/payload"
	"github.com/rbaliyan/qrshare/qrcode"
	"github.com/rbaliyan/qrshare/schema"
)

// DefaultOffloadTTL is how long offloaded payloads are kept when WithStore
// is given a non-positive ttl.
var DefaultOffloadTTL = 24 * time.Hour

type options struct {
	codec          payload.Codec
	registry       schema.Registry
	schemaName     string
	schemaOpts     []schema.VersionedOption
	store          offload.Store
	ttl            time.Duration
	qr             []qrcode.Option
	logger         *slog.Logger
	tracerProvider trace.TracerProvider
}

// Option configures a Sharer.
type Option func(*options)

// WithCodec sets the payload codec. It is ignored when WithSchema is set,
// since envelopes are always JSON.
func WithCodec(c payload.Codec) Option {
	return func(o *options) {
		if c != nil {
			o.codec = c
		}
	}
}

// WithSchema wraps payloads in versioned envelopes of schema name from
// registry. Older versions are upcast on import.
func WithSchema(registry schema.Registry, name string, opts ...schema.VersionedOption) Option {
	return func(o *options) {
		o.registry = registry
		o.schemaName = name
		o.schemaOpts = opts
	}
}

// WithStore keeps payloads that do not fit in a QR symbol in store for ttl
// and shares a reference instead.
func WithStore(store offload.Store, ttl time.Duration) Option {
	return func(o *options) {
		o.store = store
		if ttl <= 0 {
			ttl = DefaultOffloadTTL
		}
		o.ttl = ttl
	}
}

// WithQROptions sets the rendering options.
func WithQROptions(opts ...qrcode.Option) Option {
	return func(o *options) {
		o.qr = append(o.qr, opts...)
	}
}

// WithLogger sets the logger passed to bindings and scan sessions.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithTracerProvider sets the tracer provider. Default is the global one.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		if tp != nil {
			o.tracerProvider = tp
		}
	}
}

func newOptions(opts ...Option) *options {
	o := &options{
		codec:          payload.Default(),
		ttl:            DefaultOffloadTTL,
		logger:         slog.Default().With("component", "qrshare"),
		tracerProvider: otel.GetTracerProvider(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
