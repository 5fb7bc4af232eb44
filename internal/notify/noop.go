package notify

import "context"

// Noop discards notifications. Used when no NATS URL is configured.
type Noop struct{}

func (Noop) Publish(context.Context, Payload) error { return nil }

func (Noop) Close() error { return nil }

var _ Notifier = Noop{}
