package seq

import (
	"bytes"
	"sync/atomic"
	"testing"
	"time"
)

func TestOrderingMonotonic(t *testing.T) {
	g := NewGenerator()
	NowMs = func() int64 { return 1000 }
	defer func() { NowMs = func() int64 { return time.Now().UnixMilli() } }()

	a := g.Next()
	b := g.Next()
	if a.Compare(b) >= 0 {
		t.Fatalf("expected a<b")
	}
	if bytes.Compare(a.Bytes(), b.Bytes()) >= 0 {
		t.Fatalf("byte order disagrees with Compare")
	}
}

func TestClockRegressionGuard(t *testing.T) {
	g := NewGenerator()
	clock := int64(1000)
	NowMs = func() int64 { return clock }
	defer func() { NowMs = func() int64 { return time.Now().UnixMilli() } }()

	a := g.Next() // uses 1000
	clock = 900   // clock went backwards
	b := g.Next() // should still be > a
	if a.Compare(b) >= 0 {
		t.Fatalf("expected b>a despite clock regression")
	}
}

func TestCounterOverflowWaitsNextMs(t *testing.T) {
	g := NewGenerator()
	var clock atomic.Int64
	clock.Store(2000)
	NowMs = func() int64 { return clock.Load() }
	defer func() { NowMs = func() int64 { return time.Now().UnixMilli() } }()

	// Simulate near-overflow
	g.lastMs = 2000
	g.counter = ^uint64(0) - 1

	_ = g.Next() // counter becomes MaxUint64

	done := make(chan struct{})
	go func() {
		_ = g.Next() // should wait for next ms and reset counter
		close(done)
	}()

	// Advance time after a brief moment to let goroutine reach wait loop
	time.AfterFunc(10*time.Millisecond, func() { clock.Store(2001) })

	select {
	case <-done:
		// ok
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timeout waiting for overflow handling")
	}
}

func TestSeedAfterOrdersAcrossRestart(t *testing.T) {
	NowMs = func() int64 { return 5000 }
	defer func() { NowMs = func() int64 { return time.Now().UnixMilli() } }()

	old := NewGenerator()
	var last Key
	for i := 0; i < 10; i++ {
		last = old.Next()
	}

	// New process, clock behind the previous run.
	NowMs = func() int64 { return 4000 }
	fresh := NewGenerator()
	fresh.SeedAfter(last)

	next := fresh.Next()
	if last.Compare(next) >= 0 {
		t.Fatalf("seeded generator emitted %s, not after %s", next, last)
	}
}

func TestSeedAfterIgnoresOlderKey(t *testing.T) {
	NowMs = func() int64 { return 7000 }
	defer func() { NowMs = func() int64 { return time.Now().UnixMilli() } }()

	g := NewGenerator()
	newer := g.Next()

	g.SeedAfter(makeKey(6000, 3)) // older than current state, no-op
	next := g.Next()
	if newer.Compare(next) >= 0 {
		t.Fatalf("SeedAfter with an older key regressed the generator")
	}
}

func TestTimeRoundTrip(t *testing.T) {
	NowMs = func() int64 { return 1700000000123 }
	defer func() { NowMs = func() int64 { return time.Now().UnixMilli() } }()

	k := NewGenerator().Next()
	want := time.UnixMilli(1700000000123)
	if !k.Time().Equal(want) {
		t.Fatalf("Time() = %v, want %v", k.Time(), want)
	}
}

func TestFromBytes(t *testing.T) {
	k := makeKey(3000, 42)
	got, ok := FromBytes(k.Bytes())
	if !ok || got != k {
		t.Fatalf("round trip failed: %v %v", got, ok)
	}
	if _, ok := FromBytes([]byte{1, 2, 3}); ok {
		t.Fatalf("short input accepted")
	}
}
