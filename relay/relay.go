// Package relay forwards scan results to messaging backends.
//
// A Publisher sends raw payload text to a topic. Forward turns any
// Publisher into a scanner.Completion, so every successful scan of a
// session is relayed as it happens:
//
//	pub := relay.NewNATS(nc)
//	sess := scanner.New(src, relay.Forward(pub, "scans"))
//
// Publishers:
//   - Channel: in-process fan-out, for tests and local consumers
//   - NATS: core NATS publish with the session id in a header
//   - Kafka: sarama SyncProducer keyed by session id
package relay

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/rbaliyan/qrshare/idempotency"
	"github.com/rbaliyan/qrshare/scanner"
)

var (
	// ErrClosed is returned when publishing on a closed publisher.
	ErrClosed = errors.New("relay: publisher is closed")

	// ErrNoTopic is returned when the topic is empty.
	ErrNoTopic = errors.New("relay: topic is required")
)

// Publisher sends payloads to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, data []byte) error
	Close() error
}

type contextKey int

const keyContextKey contextKey = iota

// WithKey returns a context carrying the message key. Kafka uses it as the
// partition key and NATS sends it as the HeaderKey header.
func WithKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, keyContextKey, key)
}

// KeyFromContext returns the message key stored by WithKey.
func KeyFromContext(ctx context.Context) string {
	key, _ := ctx.Value(keyContextKey).(string)
	return key
}

// DefaultTimeout bounds each publish made by Forward.
const DefaultTimeout = 5 * time.Second

type forwardOptions struct {
	timeout time.Duration
	onError func(scanner.Result, error)
	dedup   idempotency.Store
	logger  *slog.Logger
}

// ForwardOption configures Forward.
type ForwardOption func(*forwardOptions)

// WithTimeout sets the per-publish timeout. Zero disables it.
func WithTimeout(d time.Duration) ForwardOption {
	return func(o *forwardOptions) {
		if d >= 0 {
			o.timeout = d
		}
	}
}

// WithErrorHandler is called with the result and the error when a publish
// fails or the scan itself failed.
func WithErrorHandler(fn func(scanner.Result, error)) ForwardOption {
	return func(o *forwardOptions) {
		if fn != nil {
			o.onError = fn
		}
	}
}

// WithDeduplication skips payloads that store has already seen, so a code
// scanned repeatedly or by several devices is published once per store TTL.
// A failed publish releases the payload for the next scan.
func WithDeduplication(store idempotency.Store) ForwardOption {
	return func(o *forwardOptions) {
		o.dedup = store
	}
}

// WithLogger sets the logger used by Forward.
func WithLogger(l *slog.Logger) ForwardOption {
	return func(o *forwardOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// Forward returns a completion that publishes the text of each successful
// scan to topic, keyed by the scan session id.
func Forward(pub Publisher, topic string, opts ...ForwardOption) scanner.Completion {
	o := &forwardOptions{
		timeout: DefaultTimeout,
		onError: func(scanner.Result, error) {},
		logger:  slog.Default().With("component", "relay"),
	}
	for _, opt := range opts {
		opt(o)
	}

	return func(res scanner.Result, err error) {
		if err != nil {
			o.logger.Warn("scan failed, nothing to relay", "error", err)
			o.onError(res, err)
			return
		}

		ctx := WithKey(context.Background(), res.SessionID)
		if o.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, o.timeout)
			defer cancel()
		}

		var key string
		if o.dedup != nil {
			key = idempotency.Key(res.Text)
			dup, err := o.dedup.IsDuplicate(ctx, key)
			if err != nil {
				o.logger.Error("duplicate check failed", "session", res.SessionID, "error", err)
				o.onError(res, err)
				return
			}
			if dup {
				o.logger.Debug("skipping duplicate scan", "topic", topic, "session", res.SessionID)
				return
			}
		}

		if err := pub.Publish(ctx, topic, []byte(res.Text)); err != nil {
			o.logger.Error("relay publish failed", "topic", topic, "session", res.SessionID, "error", err)
			if o.dedup != nil {
				if rerr := o.dedup.Remove(context.WithoutCancel(ctx), key); rerr != nil {
					o.logger.Warn("failed to release duplicate key", "error", rerr)
				}
			}
			o.onError(res, err)
			return
		}
		o.logger.Debug("relayed scan", "topic", topic, "session", res.SessionID, "bytes", len(res.Text))
	}
}
