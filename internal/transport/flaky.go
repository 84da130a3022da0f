package transport

import (
	"context"
	"errors"
	"math/rand"
	"sync"
)

// ErrInjected is the failure returned by a Flaky transport when its decider
// vetoes a send.
var ErrInjected = errors.New("transport: injected failure")

// Decider reports whether send number n (counting from 1) should fail.
// Deciders are called with Flaky's mutex held, so they may keep state
// without their own locking.
type Decider func(n uint64) bool

// Flaky wraps a transport with deterministic failure injection. Unlike
// wall-clock-seeded randomness, a Flaky run is reproducible: the decider
// sees the send ordinal and nothing else.
type Flaky struct {
	inner  Transport
	decide Decider

	mu sync.Mutex
	n  uint64
}

func NewFlaky(inner Transport, decide Decider) *Flaky {
	return &Flaky{inner: inner, decide: decide}
}

func (f *Flaky) Send(ctx context.Context, payload []byte) error {
	f.mu.Lock()
	f.n++
	fail := f.decide(f.n)
	f.mu.Unlock()

	if fail {
		return ErrInjected
	}
	return f.inner.Send(ctx, payload)
}

// FailEveryN fails every nth send. FailEveryN(1) fails every send.
func FailEveryN(n uint64) Decider {
	if n == 0 {
		n = 1
	}
	return func(i uint64) bool { return i%n == 0 }
}

// FailSeq fails sends according to a fixed script; sends past the end of
// the script succeed.
func FailSeq(script ...bool) Decider {
	return func(i uint64) bool {
		if i == 0 || i > uint64(len(script)) {
			return false
		}
		return script[i-1]
	}
}

// FailPercent fails approximately percent of sends, decided by a seeded
// generator so a given seed always produces the same failure pattern.
func FailPercent(percent int, seed int64) Decider {
	if percent <= 0 {
		return func(uint64) bool { return false }
	}
	if percent >= 100 {
		return func(uint64) bool { return true }
	}
	rng := rand.New(rand.NewSource(seed))
	return func(uint64) bool { return rng.Intn(100) < percent }
}
