package messaging

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// Noop drops every message.
type Noop struct{}

// Publish reports success without sending anything.
func (Noop) Publish(ctx context.Context, destination string, _ OutgoingMessage) (PublishResult, error) {
	if err := ctx.Err(); err != nil {
		return PublishResult{}, err
	}
	return PublishResult{Topic: destination}, nil
}

// Close is a no-op.
func (Noop) Close() error { return nil }

// Published is a message captured by Memory.
type Published struct {
	Destination string
	Message     OutgoingMessage
}

// Memory keeps published messages in process. It is safe for concurrent use.
type Memory struct {
	mu     sync.Mutex
	msgs   []Published
	notify chan struct{}
	closed bool
}

// NewMemory returns an empty Memory publisher.
func NewMemory() *Memory {
	return &Memory{notify: make(chan struct{}, 1)}
}

// Publish records msg under destination.
func (m *Memory) Publish(ctx context.Context, destination string, msg OutgoingMessage) (PublishResult, error) {
	if err := precheck(ctx, destination, msg, true); err != nil {
		return PublishResult{}, err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return PublishResult{}, ErrClosed
	}
	m.msgs = append(m.msgs, Published{Destination: destination, Message: msg})
	id := strconv.Itoa(len(m.msgs))
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}

	return PublishResult{MessageID: id, Topic: destination, Timestamp: time.Now()}, nil
}

// Messages returns a snapshot of everything published so far.
func (m *Memory) Messages() []Published {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Published(nil), m.msgs...)
}

// WaitFor blocks until at least n messages were published or ctx ends.
func (m *Memory) WaitFor(ctx context.Context, n int) ([]Published, error) {
	for {
		if msgs := m.Messages(); len(msgs) >= n {
			return msgs, nil
		}
		select {
		case <-ctx.Done():
			return m.Messages(), ctx.Err()
		case <-m.notify:
		}
	}
}

// Close stops accepting messages.
func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
