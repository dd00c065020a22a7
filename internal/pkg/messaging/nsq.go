package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	nsq "github.com/nsqio/go-nsq"
)

// ErrNSQProducerAddrRequired is returned when the nsqd address is missing.
var ErrNSQProducerAddrRequired = errors.New("messaging: nsq producer address is required")

type NSQConfig struct {
	// ProducerAddr is the nsqd TCP address.
	ProducerAddr string
	// ProducerConfig defaults to nsq.NewConfig().
	ProducerConfig *nsq.Config
}

// NSQ publishes to nsqd. NSQ messages carry no headers or keys, so only the
// body and Delay are used.
type NSQ struct {
	producer *nsq.Producer
	once     once
}

func NewNSQ(cfg NSQConfig) (*NSQ, error) {
	if cfg.ProducerAddr == "" {
		return nil, ErrNSQProducerAddrRequired
	}

	conf := cfg.ProducerConfig
	if conf == nil {
		conf = nsq.NewConfig()
	}

	p, err := nsq.NewProducer(cfg.ProducerAddr, conf)
	if err != nil {
		return nil, fmt.Errorf("messaging: nsq new producer: %w", err)
	}
	p.SetLoggerLevel(nsq.LogLevelError)

	return &NSQ{producer: p}, nil
}

func (n *NSQ) Close() error {
	if n.once.first() {
		n.producer.Stop()
	}
	return nil
}

func (n *NSQ) Publish(ctx context.Context, destination string, msg OutgoingMessage) (PublishResult, error) {
	if err := precheck(ctx, destination, msg, true); err != nil {
		return PublishResult{}, err
	}
	if n.once.isClosed() {
		return PublishResult{}, ErrClosed
	}

	var err error
	if msg.Delay > 0 {
		err = n.producer.DeferredPublish(destination, msg.Delay, msg.Body)
	} else {
		err = n.producer.Publish(destination, msg.Body)
	}
	if err != nil {
		return PublishResult{}, fmt.Errorf("messaging: nsq publish: %w", err)
	}
	return PublishResult{Topic: destination, Timestamp: time.Now()}, nil
}
