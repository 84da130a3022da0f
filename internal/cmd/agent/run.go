package agentrun

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rzbill/relay/internal/config"
	"github.com/rzbill/relay/internal/dispatch"
	"github.com/rzbill/relay/internal/metrics"
	"github.com/rzbill/relay/internal/pacer"
	"github.com/rzbill/relay/internal/spool"
	pebblestore "github.com/rzbill/relay/internal/storage/pebble"
	"github.com/rzbill/relay/internal/transport"
	"github.com/rzbill/relay/pkg/log"
)

// Options carries CLI-level settings into Run. LogLevel and LogFormat
// override the loaded config when non-empty.
type Options struct {
	ConfigPath string
	Simulate   bool
	LogLevel   string
	LogFormat  string

	// Input feeds the dispatcher when Simulate is false. Defaults to
	// os.Stdin.
	Input io.Reader
}

// Run starts the relay and blocks until ctx is cancelled or a signal
// arrives. The in-flight dispatch tick completes, the spool is closed, and
// final stats are logged before returning.
func Run(ctx context.Context, opts Options) error {
	// Layer a local signal context over the provided one so callers that
	// pass a plain context still get SIGINT/SIGTERM handling.
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}
	if opts.LogFormat != "" {
		cfg.Logging.Format = opts.LogFormat
	}

	lg := log.New(log.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)

	registry := prometheus.NewRegistry()
	met := metrics.New(registry)

	mode, err := fsyncMode(cfg.Spool.Fsync)
	if err != nil {
		return err
	}
	sp, err := spool.Open(spool.Options{
		Path:          cfg.Spool.Path,
		Fsync:         mode,
		FsyncInterval: cfg.Spool.FsyncInterval,
		Logger:        lg,
		Observer:      met,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := sp.Close(); err != nil {
			lg.Error("spool close failed", "error", err)
		}
	}()

	tr, closeTransport, err := buildTransport(cfg, lg)
	if err != nil {
		return err
	}
	defer closeTransport()

	d, err := dispatch.New(dispatch.Options{
		Config:    cfg,
		Spool:     sp,
		Transport: tr,
		Logger:    lg,
		Metrics:   met,
	})
	if err != nil {
		return err
	}

	lg.Info("relay starting",
		"transport", cfg.Transport.Kind,
		"spool_path", cfg.Spool.Path,
		"rate", cfg.Dispatch.MaxEventsPerSecond,
		"simulate", opts.Simulate)

	var wg sync.WaitGroup

	var msrv *http.Server
	if cfg.Metrics.Addr != "" {
		msrv = metricsServer(cfg.Metrics.Addr, registry)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := msrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				lg.Error("metrics server failed", "addr", cfg.Metrics.Addr, "error", err)
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if opts.Simulate {
			simulate(sctx, d, cfg.Simulate.RatePerSecond, lg.With("component", "producer"))
			return
		}
		in := opts.Input
		if in == nil {
			in = os.Stdin
		}
		forward(sctx, d, in, lg.With("component", "producer"))
	}()

	runErr := d.Run(sctx)

	if msrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = msrv.Shutdown(shutdownCtx)
		cancel()
	}
	wg.Wait()

	st := d.Stats()
	lg.Info("relay stopped",
		"enqueued", st.Enqueued, "dropped", st.Dropped,
		"sent", st.Sent, "failed", st.Failed,
		"spilled", st.Spilled, "requeued", st.Requeued,
		"evicted_size", st.EvictedBySize, "evicted_age", st.EvictedByAge,
		"storage_pauses", st.StoragePauses,
		"spool_len", st.SpoolLen, "spool_bytes", st.SpoolBytes)
	return runErr
}

func fsyncMode(s string) (pebblestore.FsyncMode, error) {
	switch s {
	case "always", "":
		return pebblestore.FsyncModeAlways, nil
	case "interval":
		return pebblestore.FsyncModeInterval, nil
	case "never":
		return pebblestore.FsyncModeNever, nil
	default:
		return pebblestore.FsyncModeUnspecified, fmt.Errorf("invalid spool.fsync %q; use always|interval|never", s)
	}
}

// buildTransport selects the configured transport and wraps it with loss
// injection when transport.loss_percent is set. The returned func releases
// transport resources.
func buildTransport(cfg *config.Config, lg *log.Logger) (transport.Transport, func(), error) {
	var (
		tr      transport.Transport
		cleanup = func() {}
	)

	switch cfg.Transport.Kind {
	case "stdout":
		tr = transport.NewWriter(os.Stdout)
	case "http":
		tr = transport.NewHTTP(cfg.Transport.URL, cfg.Transport.Timeout)
	case "nats":
		nt, err := transport.NewNATS(transport.NATSOptions{
			URL:     cfg.Transport.URL,
			Subject: cfg.Transport.Subject,
			Timeout: cfg.Transport.Timeout,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connect nats: %w", err)
		}
		tr = nt
		cleanup = func() { _ = nt.Close() }
	default:
		return nil, nil, fmt.Errorf("unknown transport kind %q", cfg.Transport.Kind)
	}

	if p := cfg.Transport.LossPercent; p > 0 {
		seed := time.Now().UnixNano()
		lg.Warn("loss injection enabled", "percent", p, "seed", seed)
		tr = transport.NewFlaky(tr, transport.FailPercent(p, seed))
	}
	return tr, cleanup, nil
}

func metricsServer(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}

// simulate feeds synthetic access-log lines to the dispatcher at perSecond.
func simulate(ctx context.Context, d *dispatch.Dispatcher, perSecond int, lg *log.Logger) {
	gate := pacer.New(perSecond)
	faker := gofakeit.New(0)
	lg.Info("synthetic producer started", "rate", perSecond)

	n := 0
	for {
		if err := gate.Wait(ctx); err != nil {
			lg.Info("synthetic producer stopped", "produced", n)
			return
		}
		d.Enqueue([]byte(accessLogLine(faker)))
		n++
	}
}

func accessLogLine(f *gofakeit.Faker) string {
	return fmt.Sprintf("%s - - [%s] \"%s /%s/%s HTTP/1.1\" %d %d %q",
		f.IPv4Address(),
		time.Now().Format("02/Jan/2006:15:04:05 -0700"),
		f.HTTPMethod(),
		f.Word(), f.Word(),
		f.HTTPStatusCode(),
		f.Number(120, 4096),
		f.UserAgent())
}

// forward feeds newline-delimited payloads from in to the dispatcher. A
// blocked read cannot be interrupted, so the scan runs on its own
// goroutine; at shutdown it is abandoned and reclaimed at process exit.
func forward(ctx context.Context, d *dispatch.Dispatcher, in io.Reader, lg *log.Logger) {
	lines := make(chan []byte)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			payload := append([]byte(nil), sc.Bytes()...)
			select {
			case lines <- payload:
			case <-ctx.Done():
				return
			}
		}
		if err := sc.Err(); err != nil {
			lg.Warn("input read failed", "error", err)
		}
	}()

	n := 0
	for {
		select {
		case <-ctx.Done():
			lg.Info("input forwarder stopped", "forwarded", n)
			return
		case payload, ok := <-lines:
			if !ok {
				lg.Info("input exhausted", "forwarded", n)
				return
			}
			d.Enqueue(payload)
			n++
		}
	}
}
