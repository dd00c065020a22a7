package messaging

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Driver names accepted by NewFromDriver. An empty name means DriverNone.
const (
	DriverNone         = "none"
	DriverMemory       = "memory"
	DriverNSQ          = "nsq"
	DriverNATS         = "nats"
	DriverKafka        = "kafka"
	DriverGooglePubSub = "google-pubsub"
)

// ErrUnknownDriver is returned for a driver name with no backend.
var ErrUnknownDriver = errors.New("messaging: unknown driver")

// FactoryOptions holds the settings of every backend; only the selected
// driver's block is read.
type FactoryOptions struct {
	NSQ    NSQConfig
	Kafka  KafkaConfig
	NATS   NATSConfig
	PubSub PubSubConfig
}

type constructor func(ctx context.Context, opts FactoryOptions) (Messaging, error)

var drivers = map[string]constructor{
	DriverNone:         func(context.Context, FactoryOptions) (Messaging, error) { return Noop{}, nil },
	DriverMemory:       func(context.Context, FactoryOptions) (Messaging, error) { return NewMemory(), nil },
	DriverNSQ:          func(_ context.Context, o FactoryOptions) (Messaging, error) { return NewNSQ(o.NSQ) },
	DriverKafka:        func(_ context.Context, o FactoryOptions) (Messaging, error) { return NewKafka(o.Kafka) },
	DriverNATS:         func(_ context.Context, o FactoryOptions) (Messaging, error) { return NewNATS(o.NATS) },
	DriverGooglePubSub: func(ctx context.Context, o FactoryOptions) (Messaging, error) { return NewPubSub(ctx, o.PubSub) },
}

// Drivers lists the accepted driver names in sorted order.
func Drivers() []string {
	return slices.Sorted(maps.Keys(drivers))
}

// NewFromDriver builds the publisher for driver. Names are case-insensitive.
func NewFromDriver(ctx context.Context, driver string, opts FactoryOptions) (Messaging, error) {
	name := strings.ToLower(strings.TrimSpace(driver))
	if name == "" {
		name = DriverNone
	}

	build, ok := drivers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (want one of %s)", ErrUnknownDriver, driver, strings.Join(Drivers(), ", "))
	}

	m, err := build(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("messaging %s: %w", name, err)
	}
	return m, nil
}
