package messaging

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/segmentio/kafka-go"
)

// ErrKafkaBrokersRequired is returned when no Kafka brokers are configured.
var ErrKafkaBrokersRequired = errors.New("messaging: kafka brokers are required")

type KafkaConfig struct {
	Brokers []string

	// Transport overrides the default writer transport, for TLS or SASL.
	Transport kafka.RoundTripper

	AllowAutoTopicCreation bool
}

// Kafka publishes through one kafka-go writer per topic. Messages are hashed
// on Key, so all events of one credential land on the same partition.
type Kafka struct {
	writers *topicCache[*kafka.Writer]
}

func NewKafka(cfg KafkaConfig) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, ErrKafkaBrokersRequired
	}

	addr := kafka.TCP(slices.Clone(cfg.Brokers)...)
	return &Kafka{
		writers: newTopicCache(func(topic string) *kafka.Writer {
			return &kafka.Writer{
				Addr:                   addr,
				Topic:                  topic,
				Balancer:               &kafka.Hash{},
				RequiredAcks:           kafka.RequireAll,
				Transport:              cfg.Transport,
				AllowAutoTopicCreation: cfg.AllowAutoTopicCreation,
			}
		}),
	}, nil
}

// Close flushes and closes every writer.
func (k *Kafka) Close() error {
	writers, _ := k.writers.drain()

	var errs []error
	for _, w := range writers {
		errs = append(errs, w.Close())
	}
	return errors.Join(errs...)
}

func (k *Kafka) Publish(ctx context.Context, destination string, msg OutgoingMessage) (PublishResult, error) {
	if err := precheck(ctx, destination, msg, false); err != nil {
		return PublishResult{}, err
	}

	w, err := k.writers.get(destination)
	if err != nil {
		return PublishResult{}, err
	}

	km := kafka.Message{Key: msg.Key, Value: msg.Body, Time: time.Now()}
	eachHeader(msg.Headers, func(key string, value []byte) {
		km.Headers = append(km.Headers, kafka.Header{Key: key, Value: value})
	})

	if err := w.WriteMessages(ctx, km); err != nil {
		return PublishResult{}, fmt.Errorf("messaging: kafka publish: %w", err)
	}
	return PublishResult{Topic: destination, Timestamp: km.Time}, nil
}
