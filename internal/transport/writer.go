package transport

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// Writer delivers payloads as newline-terminated lines on an io.Writer,
// typically stdout.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (t *Writer) Send(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.w.Write(payload); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}
	if _, err := t.w.Write([]byte{'\n'}); err != nil {
		return fmt.Errorf("write delimiter: %w", err)
	}
	return nil
}
