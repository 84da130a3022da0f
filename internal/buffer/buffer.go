// Package buffer implements the fast tier: a bounded in-memory FIFO ring
// of opaque payloads. Push never blocks; when the ring is full the incoming
// payload is dropped and counted.
package buffer

import (
	"errors"
	"sync"
)

// ErrEmpty is returned by Peek and Pop when the ring holds no payloads.
var ErrEmpty = errors.New("buffer: empty")

// Ring is a mutex-protected circular buffer of payloads. It is safe for one
// concurrent producer and one concurrent consumer.
type Ring struct {
	mu      sync.Mutex
	buf     [][]byte
	head    int // index of oldest payload
	count   int
	cap     int
	dropped uint64
}

// NewRing creates a ring with the given capacity. Capacity must be at
// least 1; smaller values are clamped.
func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{
		buf: make([][]byte, capacity),
		cap: capacity,
	}
}

// Push appends a copy of payload to the ring. Returns false if the ring is
// full; the payload is dropped and the drop counter incremented.
func (r *Ring) Push(payload []byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.count >= r.cap {
		r.dropped++
		return false
	}
	idx := (r.head + r.count) % r.cap
	r.buf[idx] = append([]byte(nil), payload...)
	r.count++
	return true
}

// Peek returns the oldest payload without removing it.
func (r *Ring) Peek() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.count == 0 {
		return nil, ErrEmpty
	}
	return r.buf[r.head], nil
}

// Pop removes and returns the oldest payload.
func (r *Ring) Pop() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.count == 0 {
		return nil, ErrEmpty
	}
	payload := r.buf[r.head]
	r.buf[r.head] = nil // allow GC of payload
	r.head = (r.head + 1) % r.cap
	r.count--
	return payload, nil
}

// Len returns the number of payloads currently buffered.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Cap returns the fixed capacity.
func (r *Ring) Cap() int { return r.cap }

// Dropped returns the total number of payloads rejected because the ring
// was full.
func (r *Ring) Dropped() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}
