package relay

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// DefaultBufferSize is the per-subscription buffer of a Channel.
const DefaultBufferSize = 16

// Message is a payload delivered by a Channel subscription.
type Message struct {
	Topic string
	Key   string
	Data  []byte
}

// Channel is an in-process Publisher. Every subscription of a topic gets
// every message published to it.
//
// Delivery is not guaranteed: messages published with no subscribers are
// dropped, and a full subscription blocks the publisher until its context
// ends, after which the message is dropped for that subscription only.
type Channel struct {
	closed     atomic.Bool
	mu         sync.RWMutex
	topics     map[string]map[*Subscription]struct{}
	bufferSize int
	logger     *slog.Logger

	dropped metric.Int64Counter
}

// ChannelOption configures a Channel.
type ChannelOption func(*Channel)

// WithBufferSize sets the buffer of each new subscription.
func WithBufferSize(n int) ChannelOption {
	return func(c *Channel) {
		if n >= 0 {
			c.bufferSize = n
		}
	}
}

// WithChannelLogger sets the Channel's logger.
func WithChannelLogger(l *slog.Logger) ChannelOption {
	return func(c *Channel) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewChannel creates an in-process publisher.
func NewChannel(opts ...ChannelOption) *Channel {
	meter := otel.Meter("qrshare.relay")
	dropped, _ := meter.Int64Counter("qrshare.relay.dropped",
		metric.WithDescription("Number of messages dropped by the channel publisher"),
		metric.WithUnit("{message}"),
	)

	c := &Channel{
		topics:     make(map[string]map[*Subscription]struct{}),
		bufferSize: DefaultBufferSize,
		logger:     slog.Default().With("component", "relay>channel"),
		dropped:    dropped,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Subscription receives the messages of one topic.
type Subscription struct {
	topic string
	ch    chan Message
	done  chan struct{}
	once  sync.Once
	c     *Channel
}

// Messages returns the delivery channel. It is closed when the
// subscription or its Channel is closed.
func (s *Subscription) Messages() <-chan Message {
	return s.ch
}

// Close stops delivery. Safe to call multiple times.
func (s *Subscription) Close() {
	s.once.Do(func() {
		close(s.done)
		s.c.mu.Lock()
		defer s.c.mu.Unlock()
		if subs, ok := s.c.topics[s.topic]; ok {
			delete(subs, s)
			if len(subs) == 0 {
				delete(s.c.topics, s.topic)
			}
		}
		close(s.ch)
	})
}

// Subscribe adds a subscription to topic.
func (c *Channel) Subscribe(topic string) (*Subscription, error) {
	if topic == "" {
		return nil, ErrNoTopic
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		return nil, ErrClosed
	}

	sub := &Subscription{
		topic: topic,
		ch:    make(chan Message, c.bufferSize),
		done:  make(chan struct{}),
		c:     c,
	}
	subs, ok := c.topics[topic]
	if !ok {
		subs = make(map[*Subscription]struct{})
		c.topics[topic] = subs
	}
	subs[sub] = struct{}{}

	c.logger.Debug("added subscriber", "topic", topic)
	return sub, nil
}

// Publish delivers data to every subscription of topic. The data is
// copied once and shared by all subscribers.
func (c *Channel) Publish(ctx context.Context, topic string, data []byte) error {
	if topic == "" {
		return ErrNoTopic
	}
	if c.closed.Load() {
		return ErrClosed
	}

	msg := Message{
		Topic: topic,
		Key:   KeyFromContext(ctx),
		Data:  append([]byte(nil), data...),
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	subs := c.topics[topic]
	if len(subs) == 0 {
		c.logger.Debug("dropping message, no subscribers", "topic", topic)
		c.drop(ctx, topic, "no_subscribers")
		return nil
	}

	var errs []error
	for sub := range subs {
		select {
		case sub.ch <- msg:
		case <-sub.done:
		case <-ctx.Done():
			c.logger.Debug("message dropped, subscriber too slow", "topic", topic)
			c.drop(ctx, topic, "timeout")
			errs = append(errs, ctx.Err())
		}
	}
	return errors.Join(errs...)
}

func (c *Channel) drop(ctx context.Context, topic, reason string) {
	c.dropped.Add(context.WithoutCancel(ctx), 1,
		metric.WithAttributes(
			attribute.String("topic", topic),
			attribute.String("reason", reason),
		))
}

// Close closes every subscription. Safe to call multiple times.
func (c *Channel) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.mu.RLock()
	var subs []*Subscription
	for _, set := range c.topics {
		for sub := range set {
			subs = append(subs, sub)
		}
	}
	c.mu.RUnlock()

	for _, sub := range subs {
		sub.Close()
	}
	c.logger.Debug("channel closed")
	return nil
}

// Compile-time check that Channel implements Publisher
var _ Publisher = (*Channel)(nil)
