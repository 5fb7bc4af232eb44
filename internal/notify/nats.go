package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSNotifier publishes payloads to a NATS JetStream subject.
type NATSNotifier struct {
	nc      *nats.Conn
	js      nats.JetStreamContext
	subject string
}

// NewNATSNotifier connects to NATS and returns a JetStream-backed notifier.
func NewNATSNotifier(natsURL, subject string) (*NATSNotifier, error) {
	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream context: %w", err)
	}

	return &NATSNotifier{nc: nc, js: js, subject: subject}, nil
}

func (n *NATSNotifier) Publish(_ context.Context, p Payload) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	if _, err := n.js.PublishAsync(n.subject, data); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}

	slog.Debug("notification published", "subject", n.subject, "metric", p.Metric, "severity", p.Severity)
	return nil
}

func (n *NATSNotifier) Close() error {
	if n.nc != nil {
		n.nc.Close()
	}
	return nil
}

var _ Notifier = (*NATSNotifier)(nil)
