package relay

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/nats-io/nats.go"
)

// HeaderKey carries the message key on NATS messages.
const HeaderKey = "Qrshare-Key"

// NATS publishes on core NATS subjects. Delivery is at-most-once; use
// WithFlush when the caller needs to know the server received the message.
type NATS struct {
	conn   *nats.Conn
	flush  bool
	closed atomic.Bool
}

// NewNATS creates a publisher on conn. The connection stays owned by the
// caller and is not closed by Close.
func NewNATS(conn *nats.Conn) *NATS {
	return &NATS{conn: conn}
}

// WithFlush makes Publish wait for the server to acknowledge the write,
// bounded by the publish context. Returns the publisher for chaining.
func (n *NATS) WithFlush() *NATS {
	n.flush = true
	return n
}

// Publish sends data on subject topic. A key from WithKey is sent as the
// HeaderKey header.
func (n *NATS) Publish(ctx context.Context, topic string, data []byte) error {
	if topic == "" {
		return ErrNoTopic
	}
	if n.closed.Load() {
		return ErrClosed
	}

	msg := nats.NewMsg(topic)
	msg.Data = data
	if key := KeyFromContext(ctx); key != "" {
		msg.Header.Set(HeaderKey, key)
	}

	if err := n.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("nats publish %s: %w", topic, err)
	}
	if n.flush {
		if err := n.conn.FlushWithContext(ctx); err != nil {
			return fmt.Errorf("nats flush: %w", err)
		}
	}
	return nil
}

// Close marks the publisher closed.
func (n *NATS) Close() error {
	n.closed.Store(true)
	return nil
}

// Compile-time check that NATS implements Publisher
var _ Publisher = (*NATS)(nil)
