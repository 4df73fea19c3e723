// Package binding holds a value that is replaced by scanned QR payloads.
//
// A Binding decodes each scanned payload into T. On success the value is
// replaced and watchers are notified; on failure the previous value is
// kept and nothing partial is installed.
//
//	contact := binding.New(Contact{})
//	session := scanner.New(source, contact.Completion())
//	...
//	for c := range contact.Watch(ctx) {
//	    fmt.Println("imported", c.Name)
//	}
package binding

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/rbaliyan/qrshare/payload"
	"github.com/rbaliyan/qrshare/scanner"
)

// DecodeFunc turns scanned text into a T.
type DecodeFunc[T any] func(ctx context.Context, text string) (T, error)

type options[T any] struct {
	decode DecodeFunc[T]
	logger *slog.Logger
}

// Option configures a Binding.
type Option[T any] func(*options[T])

// WithDecoder sets the function that decodes scanned text. It takes
// precedence over WithCodec.
func WithDecoder[T any](fn DecodeFunc[T]) Option[T] {
	return func(o *options[T]) {
		if fn != nil {
			o.decode = fn
		}
	}
}

// WithCodec decodes scanned text with the given payload codec (default JSON).
func WithCodec[T any](c payload.Codec) Option[T] {
	return func(o *options[T]) {
		typed := payload.For[T](c)
		o.decode = func(_ context.Context, text string) (T, error) {
			return typed.DecodeString(text)
		}
	}
}

// WithLogger sets the logger.
func WithLogger[T any](l *slog.Logger) Option[T] {
	return func(o *options[T]) {
		if l != nil {
			o.logger = l
		}
	}
}

// Binding is a value of type T updated from scans. It is safe for
// concurrent use.
type Binding[T any] struct {
	mu       sync.RWMutex
	value    T
	watchers map[chan T]struct{}

	decode DecodeFunc[T]
	logger *slog.Logger

	decoded  metric.Int64Counter
	rejected metric.Int64Counter
}

// New creates a binding holding initial.
func New[T any](initial T, opts ...Option[T]) *Binding[T] {
	o := &options[T]{
		logger: slog.Default().With("component", "binding"),
	}
	WithCodec[T](nil)(o)
	for _, opt := range opts {
		opt(o)
	}

	meter := otel.Meter("qrshare.binding")
	decoded, _ := meter.Int64Counter("qrshare.binding.decoded",
		metric.WithDescription("Number of scanned payloads installed"),
		metric.WithUnit("{payload}"),
	)
	rejected, _ := meter.Int64Counter("qrshare.binding.rejected",
		metric.WithDescription("Number of scanned payloads that failed to decode"),
		metric.WithUnit("{payload}"),
	)

	return &Binding[T]{
		value:    initial,
		watchers: make(map[chan T]struct{}),
		decode:   o.decode,
		logger:   o.logger,
		decoded:  decoded,
		rejected: rejected,
	}
}

// Get returns the current value.
func (b *Binding[T]) Get() T {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.value
}

// Set replaces the value and notifies watchers.
func (b *Binding[T]) Set(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.value = v
	for ch := range b.watchers {
		offer(ch, v)
	}
}

// offer hands v to a watcher without blocking. A watcher that has not
// consumed the previous value gets only the newest one.
func offer[T any](ch chan T, v T) {
	select {
	case ch <- v:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}

// Scan decodes text and installs the result. On failure the value is
// unchanged and the decode error is returned.
func (b *Binding[T]) Scan(ctx context.Context, text string) error {
	v, err := b.decode(ctx, text)
	if err != nil {
		b.rejected.Add(ctx, 1, metric.WithAttributes(
			attribute.String("reason", rejectReason(err)),
		))
		b.logger.Debug("scanned payload rejected", "error", err)
		return err
	}

	b.Set(v)
	b.decoded.Add(ctx, 1)
	return nil
}

// rejectReason labels a failed decode for metrics. Errors raised outside
// the codec, such as a missing offloaded payload, are "other".
func rejectReason(err error) string {
	if r := payload.ReasonOf(err); r != 0 {
		return r.String()
	}
	return "other"
}

// Completion returns a scanner completion that feeds matches into Scan.
// Scan failures and setup errors are logged; the value is kept.
func (b *Binding[T]) Completion() scanner.Completion {
	return func(res scanner.Result, err error) {
		if err != nil {
			b.logger.Warn("scan failed", "error", err)
			return
		}
		if err := b.Scan(context.Background(), res.Text); err != nil {
			b.logger.Warn("ignoring unreadable payload", "session", res.SessionID, "error", err)
		}
	}
}

// Watch returns a channel that receives the value after each change. Slow
// watchers only see the newest value. The channel is closed when ctx is
// done.
func (b *Binding[T]) Watch(ctx context.Context) <-chan T {
	ch := make(chan T, 1)

	b.mu.Lock()
	b.watchers[ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.watchers, ch)
		close(ch)
	}()
	return ch
}
