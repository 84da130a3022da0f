package pacer

import (
	"context"
	"testing"
	"time"
)

func TestReadyFalseUntilIntervalElapses(t *testing.T) {
	g := New(20) // 50ms interval

	if !g.Ready() {
		t.Fatalf("first permit should be available")
	}
	if g.Ready() {
		t.Fatalf("second permit granted immediately")
	}

	time.Sleep(60 * time.Millisecond)
	if !g.Ready() {
		t.Fatalf("permit not available after interval elapsed")
	}
}

func TestWaitPaces(t *testing.T) {
	g := New(50) // 20ms interval
	ctx := context.Background()

	if !g.Ready() {
		t.Fatalf("initial permit missing")
	}

	start := time.Now()
	for i := 0; i < 2; i++ {
		if err := g.Wait(ctx); err != nil {
			t.Fatalf("wait %d: %v", i, err)
		}
	}
	elapsed := time.Since(start)
	if elapsed < 30*time.Millisecond {
		t.Fatalf("two waits took %v, expected at least ~40ms of pacing", elapsed)
	}
}

func TestWaitHonorsCancellation(t *testing.T) {
	g := New(1) // 1s interval
	if !g.Ready() {
		t.Fatalf("initial permit missing")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := g.Wait(ctx); err == nil {
		t.Fatalf("wait returned nil despite cancelled context")
	}
}

func TestInterval(t *testing.T) {
	if got := New(500).Interval(); got != 2*time.Millisecond {
		t.Fatalf("interval = %v, want 2ms", got)
	}
	if got := New(0).Interval(); got != time.Second {
		t.Fatalf("clamped interval = %v, want 1s", got)
	}
}
