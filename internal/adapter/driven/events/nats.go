// Package events publishes domain events to NATS, or discards them when no
// broker is configured.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/ericfisherdev/leadinbox/internal/domain/port/driven"
)

var (
	_ driven.EventPublisher = (*NATSPublisher)(nil)
	_ driven.EventPublisher = (*NoopPublisher)(nil)
)

// NATSPublisher publishes JSON-encoded events to NATS subjects named after the topic.
type NATSPublisher struct {
	conn *nats.Conn
}

// NewNATSPublisher connects to url. The connection reconnects indefinitely
// once established; the initial dial must succeed.
func NewNATSPublisher(url string, opts ...nats.Option) (*NATSPublisher, error) {
	defaults := []nats.Option{
		nats.Name("leadinbox"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	}
	nc, err := nats.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", url, err)
	}
	return &NATSPublisher{conn: nc}, nil
}

// Publish marshals event and publishes it on topic.
func (p *NATSPublisher) Publish(ctx context.Context, topic string, event any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event for %s: %w", topic, err)
	}
	if err := p.conn.Publish(topic, data); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Ping reports whether the connection is currently usable.
func (p *NATSPublisher) Ping(context.Context) error {
	if !p.conn.IsConnected() {
		return fmt.Errorf("nats connection %s", p.conn.Status())
	}
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
		return fmt.Errorf("drain NATS connection: %w", err)
	}
	return nil
}

// NoopPublisher discards every event.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, any) error { return nil }

func (NoopPublisher) Ping(context.Context) error { return nil }

func (NoopPublisher) Close() error { return nil }
