package relay

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/IBM/sarama"
)

// ErrProducerFailed is returned when a Kafka producer cannot be created.
var ErrProducerFailed = errors.New("relay: failed to create kafka producer")

// Kafka publishes to Kafka topics through a synchronous producer. Messages
// with the same key, the scan session id when used through Forward, land
// on the same partition and keep their order.
//
// Recommended sarama.Config settings:
//
//	config := sarama.NewConfig()
//	config.Producer.RequiredAcks = sarama.WaitForAll
//	config.Producer.Return.Successes = true // required by SyncProducer
type Kafka struct {
	producer sarama.SyncProducer
	closed   atomic.Bool
}

// NewKafka creates a publisher on producer. Close closes the producer.
func NewKafka(producer sarama.SyncProducer) *Kafka {
	return &Kafka{producer: producer}
}

// NewKafkaFromClient creates a publisher with a new producer on client.
func NewKafkaFromClient(client sarama.Client) (*Kafka, error) {
	producer, err := sarama.NewSyncProducerFromClient(client)
	if err != nil {
		return nil, errors.Join(ErrProducerFailed, err)
	}
	return NewKafka(producer), nil
}

// Publish sends data to topic. The context is only consulted for the key
// and for cancellation before sending; sarama bounds the send itself.
func (k *Kafka) Publish(ctx context.Context, topic string, data []byte) error {
	if topic == "" {
		return ErrNoTopic
	}
	if k.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(data),
	}
	if key := KeyFromContext(ctx); key != "" {
		msg.Key = sarama.StringEncoder(key)
	}

	if _, _, err := k.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("kafka publish %s: %w", topic, err)
	}
	return nil
}

// Close closes the producer. Safe to call multiple times.
func (k *Kafka) Close() error {
	if !k.closed.CompareAndSwap(false, true) {
		return nil
	}
	return k.producer.Close()
}

// Compile-time check that Kafka implements Publisher
var _ Publisher = (*Kafka)(nil)
