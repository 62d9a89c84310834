package eventbus

import "context"

// Noop discards every event. Used when orchestrator.event_bus.driver is
// "noop" or when the scheduler is run without a configured bus.
type Noop struct{}

// NewNoop returns a Publisher that does nothing.
func NewNoop() Noop { return Noop{} }

func (Noop) Publish(ctx context.Context, eventType string, payload any) error { return nil }

func (Noop) Close() error { return nil }
