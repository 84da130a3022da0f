// Package transport abstracts event delivery. The dispatcher treats a send
// failure as opaque and uniform: timeout, refusal, and loss all mean the
// event was not delivered.
package transport

import "context"

// Transport delivers one payload. A nil error means the far side accepted
// the event and it may be forgotten locally.
type Transport interface {
	Send(ctx context.Context, payload []byte) error
}

// Func adapts a function to Transport.
type Func func(ctx context.Context, payload []byte) error

func (f Func) Send(ctx context.Context, payload []byte) error { return f(ctx, payload) }
