package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSOptions holds connection settings for the NATS forwarder.
type NATSOptions struct {
	// URL is the NATS server URL (e.g., "nats://localhost:4222").
	URL string
	// Subject events are published to.
	Subject string
	// Name is the client name for connection identification.
	Name string
	// Timeout is the connection timeout.
	Timeout time.Duration
}

// NATS publishes each payload to a subject. Reconnects are handled by the
// client library; a publish while disconnected is buffered or fails, and
// either way the dispatcher's failure path covers it.
type NATS struct {
	conn    *nats.Conn
	subject string
}

func NewNATS(opts NATSOptions) (*NATS, error) {
	if opts.Subject == "" {
		return nil, fmt.Errorf("nats transport: subject is required")
	}
	name := opts.Name
	if name == "" {
		name = "relay"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	conn, err := nats.Connect(opts.URL,
		nats.Name(name),
		nats.Timeout(timeout),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &NATS{conn: conn, subject: opts.Subject}, nil
}

func (t *NATS) Send(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.conn.Publish(t.subject, payload)
}

// Close drains pending publishes and closes the connection.
func (t *NATS) Close() error {
	if t == nil || t.conn == nil {
		return nil
	}
	return t.conn.Drain()
}
