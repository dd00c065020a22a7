package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"google.golang.org/api/option"
)

// ErrPubSubProjectIDRequired is returned when neither a client nor a project id is given.
var ErrPubSubProjectIDRequired = errors.New("messaging: pubsub project id is required")

type PubSubConfig struct {
	ProjectID string

	// Client is used as is when set; ProjectID and ClientOptions are ignored.
	Client        *pubsub.Client
	ClientOptions []option.ClientOption
}

// PubSub publishes to Google Pub/Sub with message ordering on, keyed by
// OutgoingMessage.Key.
type PubSub struct {
	client     *pubsub.Client
	publishers *topicCache[*pubsub.Publisher]
}

func NewPubSub(ctx context.Context, cfg PubSubConfig) (*PubSub, error) {
	client := cfg.Client
	if client == nil {
		if cfg.ProjectID == "" {
			return nil, ErrPubSubProjectIDRequired
		}

		var err error
		if client, err = pubsub.NewClient(ctx, cfg.ProjectID, cfg.ClientOptions...); err != nil {
			return nil, fmt.Errorf("messaging: pubsub new client: %w", err)
		}
	}

	return &PubSub{
		client: client,
		publishers: newTopicCache(func(topic string) *pubsub.Publisher {
			pub := client.Publisher(topic)
			pub.EnableMessageOrdering = true
			return pub
		}),
	}, nil
}

// Close flushes pending publishes, then closes the client.
func (p *PubSub) Close() error {
	pubs, ok := p.publishers.drain()
	if !ok {
		return nil
	}
	for _, pub := range pubs {
		pub.Stop()
	}
	return p.client.Close()
}

// Publish waits for the server-assigned id. Headers become attributes.
func (p *PubSub) Publish(ctx context.Context, destination string, msg OutgoingMessage) (PublishResult, error) {
	if err := precheck(ctx, destination, msg, false); err != nil {
		return PublishResult{}, err
	}

	pub, err := p.publishers.get(destination)
	if err != nil {
		return PublishResult{}, err
	}

	id, err := pub.Publish(ctx, &pubsub.Message{
		Data:        msg.Body,
		Attributes:  headerMap(msg.Headers),
		OrderingKey: string(msg.Key),
	}).Get(ctx)
	if err != nil {
		// an ordering key stays paused after a failure until resumed
		if len(msg.Key) > 0 {
			pub.ResumePublish(string(msg.Key))
		}
		return PublishResult{}, fmt.Errorf("messaging: pubsub publish: %w", err)
	}

	return PublishResult{MessageID: id, Topic: destination, Timestamp: time.Now()}, nil
}
