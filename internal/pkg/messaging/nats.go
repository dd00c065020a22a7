package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// ErrNATSURLRequired is returned when the NATS server URL is missing.
var ErrNATSURLRequired = errors.New("messaging: nats url is required")

type NATSConfig struct {
	URL     string
	Options []nats.Option
}

// NATS publishes on core NATS subjects. Each publish is flushed so an error
// surfaces to the caller instead of being lost in the client buffer.
type NATS struct {
	conn *nats.Conn
	once once
}

func NewNATS(cfg NATSConfig) (*NATS, error) {
	if cfg.URL == "" {
		return nil, ErrNATSURLRequired
	}

	conn, err := nats.Connect(cfg.URL, cfg.Options...)
	if err != nil {
		return nil, fmt.Errorf("messaging: nats connect: %w", err)
	}
	return &NATS{conn: conn}, nil
}

// Close drains buffered messages before closing the connection.
func (n *NATS) Close() error {
	if !n.once.first() {
		return nil
	}
	err := n.conn.Drain()
	n.conn.Close()
	return err
}

func (n *NATS) Publish(ctx context.Context, destination string, msg OutgoingMessage) (PublishResult, error) {
	if err := precheck(ctx, destination, msg, false); err != nil {
		return PublishResult{}, err
	}
	if n.once.isClosed() {
		return PublishResult{}, ErrClosed
	}

	nm := &nats.Msg{Subject: destination, Data: msg.Body, Header: nats.Header{}}
	eachHeader(msg.Headers, func(key string, value []byte) { nm.Header.Add(key, string(value)) })

	if err := n.conn.PublishMsg(nm); err != nil {
		return PublishResult{}, fmt.Errorf("messaging: nats publish: %w", err)
	}
	if err := n.conn.FlushWithContext(ctx); err != nil {
		return PublishResult{}, fmt.Errorf("messaging: nats flush: %w", err)
	}
	return PublishResult{Topic: destination, Timestamp: time.Now()}, nil
}
