package messaging

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"
)

var (
	// ErrUnsupported is returned when a message uses a feature the broker lacks.
	ErrUnsupported = errors.New("messaging: unsupported operation")
	// ErrDestinationRequired is returned when Publish is called without a destination.
	ErrDestinationRequired = errors.New("messaging: destination is required")
	// ErrClosed is returned when publishing on a closed client.
	ErrClosed = errors.New("messaging: client is closed")
)

// Messaging is a Publisher owned by the application and closed on shutdown.
type Messaging interface {
	io.Closer
	Publisher
}

// Publisher sends one message to a topic or subject.
type Publisher interface {
	Publish(ctx context.Context, destination string, msg OutgoingMessage) (PublishResult, error)
}

// OutgoingMessage is the broker-neutral form of an event.
type OutgoingMessage struct {
	Body []byte

	// Key is the Kafka partition key and the Pub/Sub ordering key.
	Key []byte

	// Headers map to broker headers, or Pub/Sub attributes. NSQ drops them.
	Headers []Header

	// Delay defers delivery. Only NSQ supports it.
	Delay time.Duration
}

type Header struct {
	Key   string
	Value []byte
}

// PublishResult is what the broker reported back, when it reports anything.
type PublishResult struct {
	MessageID string
	Topic     string
	Timestamp time.Time
}

// precheck holds the argument rules every backend shares.
func precheck(ctx context.Context, destination string, msg OutgoingMessage, delay bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if destination == "" {
		return ErrDestinationRequired
	}
	if msg.Delay > 0 && !delay {
		return ErrUnsupported
	}
	return nil
}

// eachHeader calls fn for headers with a non-empty key.
func eachHeader(headers []Header, fn func(key string, value []byte)) {
	for _, h := range headers {
		if h.Key != "" {
			fn(h.Key, h.Value)
		}
	}
}

func headerMap(headers []Header) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	m := make(map[string]string, len(headers))
	eachHeader(headers, func(k string, v []byte) { m[k] = string(v) })
	return m
}

// topicCache lazily builds one client per topic and hands all of them back
// once on close.
type topicCache[T any] struct {
	mu     sync.Mutex
	build  func(topic string) T
	items  map[string]T
	closed bool
}

func newTopicCache[T any](build func(topic string) T) *topicCache[T] {
	return &topicCache[T]{build: build, items: make(map[string]T)}
}

func (c *topicCache[T]) get(topic string) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		var zero T
		return zero, ErrClosed
	}
	item, ok := c.items[topic]
	if !ok {
		item = c.build(topic)
		c.items[topic] = item
	}
	return item, nil
}

// drain marks the cache closed. ok is false when it was already closed.
func (c *topicCache[T]) drain() (items []T, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, false
	}
	c.closed = true
	for _, item := range c.items {
		items = append(items, item)
	}
	c.items = nil
	return items, true
}

// once guards a Close that must run a single time.
type once struct {
	mu     sync.Mutex
	closed bool
}

// first reports whether this is the first close.
func (o *once) first() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return false
	}
	o.closed = true
	return true
}

func (o *once) isClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}
