// Package eventbus publishes round and task lifecycle events emitted by the
// scheduler onto a message bus for external observers (dashboards, log
// shippers, downstream automations) to subscribe to. Publishing is always
// best-effort: a bus failure logs and is swallowed, never interrupts the
// round loop.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
)

// Publisher is the scheduler's view of an event bus: publish a named event
// with a JSON-serializable payload under the bus's configured subject.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
	Close() error
}

// Envelope wraps every published event with a type tag so subscribers can
// dispatch without inspecting the payload shape first.
type Envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// NATSBus publishes events as JSON messages on a single NATS subject using
// a core (non-JetStream) publish — delivery is at-most-once, matching the
// advisory nature of these events.
type NATSBus struct {
	conn    *nats.Conn
	subject string
	logger  *slog.Logger
}

// NewNATSBus connects to url (nats.DefaultURL if empty) and returns a bus
// publishing to subject.
func NewNATSBus(url, subject string, logger *slog.Logger) (*NATSBus, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if url == "" {
		url = nats.DefaultURL
	}
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("eventbus: connect to nats: %w", err)
	}
	return &NATSBus{conn: conn, subject: subject, logger: logger}, nil
}

// Publish marshals payload as JSON and publishes it under the bus's
// subject, tagged with eventType.
func (b *NATSBus) Publish(ctx context.Context, eventType string, payload any) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	data, err := json.Marshal(Envelope{Type: eventType, Payload: payload})
	if err != nil {
		return fmt.Errorf("eventbus: marshal %s event: %w", eventType, err)
	}
	if err := b.conn.Publish(b.subject, data); err != nil {
		return fmt.Errorf("eventbus: publish %s event: %w", eventType, err)
	}
	return nil
}

// Close drains and closes the underlying NATS connection.
func (b *NATSBus) Close() error {
	if b.conn == nil {
		return nil
	}
	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
		return fmt.Errorf("eventbus: drain nats connection: %w", err)
	}
	return nil
}
