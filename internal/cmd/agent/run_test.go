package agentrun

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rzbill/relay/internal/config"
	pebblestore "github.com/rzbill/relay/internal/storage/pebble"
	"github.com/rzbill/relay/internal/transport"
	"github.com/rzbill/relay/pkg/log"
)

func TestFsyncModeMapping(t *testing.T) {
	tests := []struct {
		in      string
		want    pebblestore.FsyncMode
		wantErr bool
	}{
		{in: "always", want: pebblestore.FsyncModeAlways},
		{in: "", want: pebblestore.FsyncModeAlways},
		{in: "interval", want: pebblestore.FsyncModeInterval},
		{in: "never", want: pebblestore.FsyncModeNever},
		{in: "bogus", wantErr: true},
	}
	for _, tt := range tests {
		got, err := fsyncMode(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("fsyncMode(%q) accepted an invalid mode", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("fsyncMode(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("fsyncMode(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestBuildTransportSelection(t *testing.T) {
	cfg := config.Default()
	tr, cleanup, err := buildTransport(cfg, log.Nop())
	if err != nil {
		t.Fatalf("buildTransport stdout: %v", err)
	}
	cleanup()
	if _, ok := tr.(*transport.Writer); !ok {
		t.Fatalf("stdout kind built %T, want *transport.Writer", tr)
	}

	cfg = config.Default()
	cfg.Transport.Kind = "http"
	cfg.Transport.URL = "http://127.0.0.1:9/events"
	tr, cleanup, err = buildTransport(cfg, log.Nop())
	if err != nil {
		t.Fatalf("buildTransport http: %v", err)
	}
	cleanup()
	if _, ok := tr.(*transport.HTTP); !ok {
		t.Fatalf("http kind built %T, want *transport.HTTP", tr)
	}

	cfg = config.Default()
	cfg.Transport.LossPercent = 50
	tr, cleanup, err = buildTransport(cfg, log.Nop())
	if err != nil {
		t.Fatalf("buildTransport with loss: %v", err)
	}
	cleanup()
	if _, ok := tr.(*transport.Flaky); !ok {
		t.Fatalf("loss injection built %T, want *transport.Flaky", tr)
	}

	cfg = config.Default()
	cfg.Transport.Kind = "carrier-pigeon"
	if _, _, err := buildTransport(cfg, log.Nop()); err == nil {
		t.Fatalf("buildTransport accepted unknown kind")
	}
}

func TestRunRejectsBadConfig(t *testing.T) {
	t.Setenv("RELAY_TRANSPORT_KIND", "carrier-pigeon")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := Run(ctx, Options{}); err == nil {
		t.Fatalf("Run accepted an invalid transport kind")
	}
}

// TestRunSimulateLifecycle starts the full agent with a synthetic producer
// and a transport that drops everything, then verifies a clean shutdown.
func TestRunSimulateLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	t.Setenv("RELAY_SPOOL_PATH", t.TempDir())
	t.Setenv("RELAY_SPOOL_FSYNC", "never")
	t.Setenv("RELAY_LOGGING_LEVEL", "error")
	t.Setenv("RELAY_TRANSPORT_LOSS_PERCENT", "100")
	t.Setenv("RELAY_METRICS_ADDR", "127.0.0.1:0")
	t.Setenv("RELAY_DISPATCH_MAX_EVENTS_PER_SECOND", "2000")
	t.Setenv("RELAY_SIMULATE_RATE_PER_SECOND", "500")

	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()

	if err := Run(ctx, Options{Simulate: true}); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

// TestRunForwardsInput drives the agent from a fixed reader instead of
// stdin and verifies a clean shutdown after the input is exhausted.
func TestRunForwardsInput(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	t.Setenv("RELAY_SPOOL_PATH", t.TempDir())
	t.Setenv("RELAY_SPOOL_FSYNC", "never")
	t.Setenv("RELAY_LOGGING_LEVEL", "error")
	t.Setenv("RELAY_TRANSPORT_LOSS_PERCENT", "100")
	t.Setenv("RELAY_DISPATCH_MAX_EVENTS_PER_SECOND", "2000")

	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()

	opts := Options{Input: strings.NewReader("one\ntwo\n")}
	if err := Run(ctx, opts); err != nil {
		t.Fatalf("Run: %v", err)
	}
}
