package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestIncProducedSplitsByOutcome(t *testing.T) {
	m := New(nil)
	m.IncProduced(true)
	m.IncProduced(true)
	m.IncProduced(false)

	if got := testutil.ToFloat64(m.EventsProduced.WithLabelValues("accepted")); got != 2 {
		t.Fatalf("accepted = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.EventsProduced.WithLabelValues("dropped")); got != 1 {
		t.Fatalf("dropped = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.EventsDropped); got != 1 {
		t.Fatalf("events_dropped = %v, want 1", got)
	}
}

func TestAddEvictedSkipsZero(t *testing.T) {
	m := New(nil)
	m.AddEvicted("size", 3)
	m.AddEvicted("age", 0)

	if got := testutil.ToFloat64(m.EventsEvicted.WithLabelValues("size")); got != 3 {
		t.Fatalf("evicted size = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.EventsEvicted.WithLabelValues("age")); got != 0 {
		t.Fatalf("evicted age = %v, want 0", got)
	}
}

func TestObserveCommitAccumulatesBytes(t *testing.T) {
	m := New(nil)
	m.ObserveCommit(2*time.Millisecond, 100)
	m.ObserveCommit(time.Millisecond, 50)

	if got := testutil.ToFloat64(m.StorageCommitBytes); got != 150 {
		t.Fatalf("commit bytes = %v, want 150", got)
	}
}

func TestNewRegistersAgainstRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.IncSent("fast")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) == 0 {
		t.Fatalf("no metric families registered")
	}
}
