package transport

import (
	"context"
	"errors"
	"testing"
)

// countingSink records deliveries that reach the inner transport.
type countingSink struct {
	payloads [][]byte
}

func (c *countingSink) Send(_ context.Context, payload []byte) error {
	c.payloads = append(c.payloads, append([]byte(nil), payload...))
	return nil
}

func TestFailEveryN(t *testing.T) {
	sink := &countingSink{}
	f := NewFlaky(sink, FailEveryN(3))

	ctx := context.Background()
	failures := 0
	for i := 0; i < 9; i++ {
		if err := f.Send(ctx, []byte("e")); err != nil {
			if !errors.Is(err, ErrInjected) {
				t.Fatalf("unexpected error: %v", err)
			}
			failures++
		}
	}
	if failures != 3 {
		t.Fatalf("failures = %d, want 3", failures)
	}
	if len(sink.payloads) != 6 {
		t.Fatalf("delivered = %d, want 6", len(sink.payloads))
	}
}

func TestFailSeq(t *testing.T) {
	f := NewFlaky(&countingSink{}, FailSeq(true, false, true))
	ctx := context.Background()

	want := []bool{true, false, true, false, false}
	for i, fail := range want {
		err := f.Send(ctx, []byte("e"))
		if fail && !errors.Is(err, ErrInjected) {
			t.Fatalf("send %d: want injected failure, got %v", i+1, err)
		}
		if !fail && err != nil {
			t.Fatalf("send %d: want success, got %v", i+1, err)
		}
	}
}

func TestFailPercentDeterministic(t *testing.T) {
	run := func(seed int64) []bool {
		f := NewFlaky(&countingSink{}, FailPercent(30, seed))
		out := make([]bool, 100)
		for i := range out {
			out[i] = f.Send(context.Background(), []byte("e")) != nil
		}
		return out
	}

	a, b := run(7), run(7)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same seed diverged at send %d", i+1)
		}
	}

	someFailed := false
	for _, failed := range a {
		if failed {
			someFailed = true
			break
		}
	}
	if !someFailed {
		t.Fatalf("30%% decider never failed in 100 sends")
	}
}

func TestFailPercentExtremes(t *testing.T) {
	ctx := context.Background()

	always := NewFlaky(&countingSink{}, FailPercent(100, 1))
	for i := 0; i < 10; i++ {
		if always.Send(ctx, []byte("e")) == nil {
			t.Fatalf("100%% decider allowed a send")
		}
	}

	never := NewFlaky(&countingSink{}, FailPercent(0, 1))
	for i := 0; i < 10; i++ {
		if err := never.Send(ctx, []byte("e")); err != nil {
			t.Fatalf("0%% decider failed a send: %v", err)
		}
	}
}

func TestFlakyPassesPayloadThrough(t *testing.T) {
	sink := &countingSink{}
	f := NewFlaky(sink, FailSeq())

	if err := f.Send(context.Background(), []byte("hello")); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(sink.payloads) != 1 || string(sink.payloads[0]) != "hello" {
		t.Fatalf("inner saw %q", sink.payloads)
	}
}
