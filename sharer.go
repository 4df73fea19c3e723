package qrshare

import (
	"context"
	"errors"
	"fmt"
	"image"
	"reflect"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/rbaliyan/qrshare/binding"
	"github.com/rbaliyan/qrshare/offload"
	"github.com/rbaliyan/qrshare/payload"
	"github.com/rbaliyan/qrshare/qrcode"
	"github.com/rbaliyan/qrshare/scanner"
	"github.com/rbaliyan/qrshare/schema"
)

// ErrNoStore is returned when a reference payload is imported by a Sharer
// without a store.
var ErrNoStore = errors.New("qrshare: reference payload but no store configured")

const tracerName = "github.com/rbaliyan/qrshare"

// Span attribute keys
const (
	spanKeyType      = "qrshare.type"
	spanKeyBytes     = "qrshare.bytes"
	spanKeyOffloaded = "qrshare.offloaded"
)

// Sharer encodes, renders and imports values of type T. It is safe for
// concurrent use.
type Sharer[T any] struct {
	opts      *options
	typed     payload.Typed[T]
	versioned *schema.Versioned[T]
	qr        qrcode.Config
	tracer    trace.Tracer
	typeName  string
	offloaded metric.Int64Counter
}

// New creates a Sharer for T.
func New[T any](opts ...Option) *Sharer[T] {
	o := newOptions(opts...)

	s := &Sharer[T]{
		opts:     o,
		typed:    payload.For[T](o.codec),
		qr:       qrcode.Settings(o.qr...),
		tracer:   o.tracerProvider.Tracer(tracerName),
		typeName: reflect.TypeFor[T]().String(),
	}
	if o.registry != nil {
		s.versioned = schema.NewVersioned[T](o.registry, o.schemaName,
			append([]schema.VersionedOption{schema.WithLogger(o.logger)}, o.schemaOpts...)...)
	}

	meter := otel.Meter("qrshare")
	s.offloaded, _ = meter.Int64Counter("qrshare.offloaded",
		metric.WithDescription("Number of payloads moved to the offload store"),
		metric.WithUnit("{payload}"),
	)
	return s
}

// Level returns the error-correction level used for rendering.
func (s *Sharer[T]) Level() qrcode.Level {
	return s.qr.Level
}

func (s *Sharer[T]) encode(ctx context.Context, v T) (string, error) {
	if s.versioned != nil {
		return s.versioned.Encode(ctx, v)
	}
	return s.typed.Encode(v)
}

func (s *Sharer[T]) decode(ctx context.Context, text string) (T, error) {
	if s.versioned != nil {
		return s.versioned.DecodeString(ctx, text)
	}
	return s.typed.DecodeString(text)
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// Payload encodes v as the text to put in a QR symbol.
//
// When the text exceeds the symbol capacity at the configured level it is
// written to the store and a reference payload is returned instead. Without
// a store this fails with qrcode.ErrContentTooLarge.
func (s *Sharer[T]) Payload(ctx context.Context, v T) (string, error) {
	ctx, span := s.tracer.Start(ctx, "qrshare.payload",
		trace.WithAttributes(attribute.String(spanKeyType, s.typeName)))
	defer span.End()

	text, err := s.encode(ctx, v)
	if err != nil {
		recordError(span, err)
		return "", err
	}
	span.SetAttributes(attribute.Int(spanKeyBytes, len(text)))

	limit := qrcode.Capacity(s.qr.Level)
	if len(text) <= limit {
		return text, nil
	}
	if s.opts.store == nil {
		err := fmt.Errorf("%w: %d bytes, level %s holds %d", qrcode.ErrContentTooLarge, len(text), s.qr.Level, limit)
		recordError(span, err)
		return "", err
	}

	key, err := s.opts.store.Put(ctx, []byte(text), s.opts.ttl)
	if err != nil {
		err = fmt.Errorf("offload payload: %w", err)
		recordError(span, err)
		return "", err
	}
	span.SetAttributes(attribute.Bool(spanKeyOffloaded, true))
	s.offloaded.Add(ctx, 1, metric.WithAttributes(attribute.String("type", s.typeName)))
	s.opts.logger.Debug("payload offloaded", "type", s.typeName, "bytes", len(text), "key", key)
	return offload.Ref(key), nil
}

// QRCode renders v as a PNG-encoded QR code.
func (s *Sharer[T]) QRCode(ctx context.Context, v T) ([]byte, error) {
	text, err := s.Payload(ctx, v)
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(text, s.opts.qr...)
}

// Image renders v as a QR code image.
func (s *Sharer[T]) Image(ctx context.Context, v T) (image.Image, error) {
	text, err := s.Payload(ctx, v)
	if err != nil {
		return nil, err
	}
	return qrcode.Image(text, s.opts.qr...)
}

// DataURI renders v as a data:image/png URI.
func (s *Sharer[T]) DataURI(ctx context.Context, v T) (string, error) {
	text, err := s.Payload(ctx, v)
	if err != nil {
		return "", err
	}
	return qrcode.DataURI(text, s.opts.qr...)
}

// Import decodes scanned text into a new T. Reference payloads are first
// resolved through the store. Decode failures are *payload.DecodeError.
func (s *Sharer[T]) Import(ctx context.Context, text string) (T, error) {
	ctx, span := s.tracer.Start(ctx, "qrshare.import",
		trace.WithAttributes(
			attribute.String(spanKeyType, s.typeName),
			attribute.Int(spanKeyBytes, len(text))))
	defer span.End()

	var zero T
	if key, ok := offload.IsRef(text); ok {
		span.SetAttributes(attribute.Bool(spanKeyOffloaded, true))
		if s.opts.store == nil {
			recordError(span, ErrNoStore)
			return zero, ErrNoStore
		}
		data, err := s.opts.store.Get(ctx, key)
		if err != nil {
			err = fmt.Errorf("resolve reference %s: %w", key, err)
			recordError(span, err)
			return zero, err
		}
		text = string(data)
	}

	v, err := s.decode(ctx, text)
	if err != nil {
		span.SetAttributes(attribute.String("qrshare.reason", payload.ReasonOf(err).String()))
		recordError(span, err)
		return zero, err
	}
	return v, nil
}

// Bind returns a binding that imports scans through s.
func (s *Sharer[T]) Bind(initial T, opts ...binding.Option[T]) *binding.Binding[T] {
	base := []binding.Option[T]{
		binding.WithDecoder[T](s.Import),
		binding.WithLogger[T](s.opts.logger),
	}
	return binding.New(initial, append(base, opts...)...)
}

// Scan starts a scan session over src that feeds b. The session is
// running when Scan returns; stop it with Stop.
func (s *Sharer[T]) Scan(ctx context.Context, src scanner.Source, b *binding.Binding[T], opts ...scanner.Option) (*scanner.Session, error) {
	base := []scanner.Option{scanner.WithLogger(s.opts.logger)}
	sess := scanner.New(src, b.Completion(), append(base, opts...)...)
	if err := sess.Start(ctx); err != nil {
		return nil, err
	}
	return sess, nil
}
