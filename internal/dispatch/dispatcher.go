// Package dispatch runs the relay's control loop: admit events into the
// fast buffer, and on each rate-gated tick pick a tier, attempt a send,
// ack on success, and reroute the payload into the spool on failure.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	backoff "github.com/cenkalti/backoff/v5"

	"github.com/rzbill/relay/internal/buffer"
	"github.com/rzbill/relay/internal/config"
	"github.com/rzbill/relay/internal/metrics"
	"github.com/rzbill/relay/internal/pacer"
	"github.com/rzbill/relay/internal/scheduler"
	"github.com/rzbill/relay/internal/spool"
	"github.com/rzbill/relay/internal/transport"
	"github.com/rzbill/relay/pkg/log"
	"github.com/rzbill/relay/pkg/seq"
)

// SpoolStore is the durable-tier capability the dispatcher needs. It is
// satisfied by *spool.Spool.
type SpoolStore interface {
	Push(payload []byte) (seq.Key, error)
	Peek() ([]byte, error)
	Pop() ([]byte, error)
	Len() int64
	Bytes() int64
	Recycle(maxAge time.Duration, maxBytes int64) (evictedBySize, evictedByAge int, err error)
}

// Options wires the dispatcher's collaborators. Config, Spool, and
// Transport are required; Logger and Metrics default to no-ops.
type Options struct {
	Config    *config.Config
	Spool     SpoolStore
	Transport transport.Transport
	Logger    *log.Logger
	Metrics   *metrics.Metrics
}

// Stats is a point-in-time snapshot of dispatcher counters.
type Stats struct {
	Enqueued      uint64 // accepted into the fast buffer
	Dropped       uint64 // rejected, fast buffer full
	Sent          uint64 // delivered through the transport
	Failed        uint64 // transport send failures
	Spilled       uint64 // moved fast -> spool after a failed send
	Requeued      uint64 // moved spool -> spool tail after a failed send
	EvictedBySize uint64
	EvictedByAge  uint64
	StoragePauses uint64 // paused retries while the spool store was down

	FastLen    int
	SpoolLen   int64
	SpoolBytes int64
}

// Dispatcher owns the fast buffer, the scheduler, and the rate gate, and
// drives sends through the transport. One producer may call Enqueue
// concurrently with a single Run loop.
type Dispatcher struct {
	cfg   *config.Config
	fast  *buffer.Ring
	store SpoolStore
	trans transport.Transport
	sched *scheduler.Weighted
	gate  *pacer.Gate
	lg    *log.Logger
	met   *metrics.Metrics

	// backoff bounds for the storage-unavailable pause
	pauseInitial time.Duration
	pauseMax     time.Duration

	mu    sync.Mutex
	stats Stats
}

// New builds a Dispatcher from validated configuration and collaborators.
func New(opts Options) (*Dispatcher, error) {
	if opts.Config == nil {
		return nil, errors.New("dispatch: Options.Config is required")
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, fmt.Errorf("dispatch: %w", err)
	}
	if opts.Spool == nil {
		return nil, errors.New("dispatch: Options.Spool is required")
	}
	if opts.Transport == nil {
		return nil, errors.New("dispatch: Options.Transport is required")
	}
	lg := opts.Logger
	if lg == nil {
		lg = log.Nop()
	}
	met := opts.Metrics
	if met == nil {
		met = metrics.New(nil)
	}

	return &Dispatcher{
		cfg:          opts.Config,
		fast:         buffer.NewRing(opts.Config.Buffer.Capacity),
		store:        opts.Spool,
		trans:        opts.Transport,
		sched:        scheduler.New(opts.Config.Dispatch.FastWeight, opts.Config.Dispatch.SpoolWeight),
		gate:         pacer.New(opts.Config.Dispatch.MaxEventsPerSecond),
		lg:           lg.With("component", "dispatch"),
		met:          met,
		pauseInitial: 500 * time.Millisecond,
		pauseMax:     5 * time.Second,
	}, nil
}

// Enqueue offers a payload to the fast buffer. Returns false when the
// buffer is full and the payload was dropped; dropping never blocks the
// producer.
func (d *Dispatcher) Enqueue(payload []byte) bool {
	ok := d.fast.Push(payload)
	d.met.IncProduced(ok)
	d.met.FastDepth.Set(float64(d.fast.Len()))

	d.mu.Lock()
	if ok {
		d.stats.Enqueued++
	} else {
		d.stats.Dropped++
	}
	d.mu.Unlock()
	return ok
}

// Run drives the dispatch loop until ctx is cancelled, then returns nil.
// The rate gate's Wait is the loop's only suspension point; an in-flight
// tick always completes before Run returns.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.lg.Info("dispatcher started",
		"rate", d.cfg.Dispatch.MaxEventsPerSecond,
		"fast_capacity", d.fast.Cap(),
		"fast_weight", d.cfg.Dispatch.FastWeight,
		"spool_weight", d.cfg.Dispatch.SpoolWeight)

	for {
		if err := d.gate.Wait(ctx); err != nil {
			st := d.Stats()
			d.lg.Info("dispatcher stopped",
				"sent", st.Sent, "failed", st.Failed,
				"spilled", st.Spilled, "fast_len", st.FastLen, "spool_len", st.SpoolLen)
			return nil
		}
		d.tick(ctx)
	}
}

// tick performs one gated dispatch attempt.
func (d *Dispatcher) tick(ctx context.Context) {
	src := d.sched.Pick(d.fast.Len() > 0, d.store.Len() > 0)
	if src == scheduler.SourceNone {
		d.recycle()
		return
	}

	payload, err := d.peek(src)
	if err != nil {
		if !errors.Is(err, buffer.ErrEmpty) && !errors.Is(err, spool.ErrEmpty) {
			d.lg.Warn("peek failed", "source", src.String(), "error", err)
		}
		d.recycle()
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.Transport.Timeout)
	start := time.Now()
	sendErr := d.trans.Send(sendCtx, payload)
	cancel()
	d.met.SendDuration.Observe(time.Since(start).Seconds())

	if sendErr == nil {
		d.ack(src)
		d.met.IncSent(src.String())
		d.count(func(s *Stats) { s.Sent++ })
	} else {
		d.met.IncSendFailure(src.String())
		d.count(func(s *Stats) { s.Failed++ })
		d.lg.Debug("send failed", "source", src.String(), "error", sendErr)
		d.spill(ctx, src, payload)
	}

	d.recycle()
	d.updateGauges()
}

func (d *Dispatcher) peek(src scheduler.Source) ([]byte, error) {
	if src == scheduler.SourceFast {
		return d.fast.Peek()
	}
	return d.store.Peek()
}

// ack removes the just-delivered head from its source. A failed spool pop
// leaves the row for a duplicate delivery later; delivery is at-least-once.
func (d *Dispatcher) ack(src scheduler.Source) {
	var err error
	if src == scheduler.SourceFast {
		_, err = d.fast.Pop()
	} else {
		_, err = d.store.Pop()
	}
	if err != nil {
		d.lg.Warn("ack pop failed", "source", src.String(), "error", err)
	}
}

// spill reroutes a payload whose send failed: remove it from its source
// first, then requeue it into the spool. The window between the two steps
// is the accepted crash tradeoff; it can lose the one in-flight payload
// but never duplicates it.
func (d *Dispatcher) spill(ctx context.Context, src scheduler.Source, payload []byte) {
	var err error
	if src == scheduler.SourceFast {
		_, err = d.fast.Pop()
	} else {
		_, err = d.store.Pop()
	}
	if err != nil {
		// the payload is still at its source and will be retried there
		d.lg.Warn("spill pop failed", "source", src.String(), "error", err)
		return
	}

	if !d.requeue(ctx, payload) {
		return
	}
	if src == scheduler.SourceFast {
		d.met.EventsSpilled.Inc()
		d.count(func(s *Stats) { s.Spilled++ })
	} else {
		d.met.EventsRequeued.Inc()
		d.count(func(s *Stats) { s.Requeued++ })
	}
}

// requeue pushes a payload into the spool, retrying under exponential
// backoff while the store is unavailable. Dispatch stays paused here until
// the push lands or ctx is cancelled.
func (d *Dispatcher) requeue(ctx context.Context, payload []byte) bool {
	backoffCfg := backoff.NewExponentialBackOff()
	backoffCfg.InitialInterval = d.pauseInitial
	backoffCfg.MaxInterval = d.pauseMax

	for {
		_, err := d.store.Push(payload)
		if err == nil {
			return true
		}
		d.met.StoragePauses.Inc()
		d.count(func(s *Stats) { s.StoragePauses++ })
		d.lg.Error("spool push failed, dispatch paused", "error", err)

		sleep := backoffCfg.NextBackOff()
		if sleep == backoff.Stop {
			sleep = d.pauseMax
		}
		select {
		case <-ctx.Done():
			d.lg.Warn("shutdown while storage unavailable, dropping in-flight payload", "bytes", len(payload))
			return false
		case <-time.After(sleep):
		}
	}
}

// recycle bounds the spool once per tick.
func (d *Dispatcher) recycle() {
	bySize, byAge, err := d.store.Recycle(d.cfg.Retention.MaxAge, d.cfg.Retention.MaxStorageBytes())
	if err != nil {
		d.lg.Warn("recycle failed", "error", err)
		return
	}
	if bySize+byAge == 0 {
		return
	}
	d.met.AddEvicted("size", bySize)
	d.met.AddEvicted("age", byAge)
	d.count(func(s *Stats) {
		s.EvictedBySize += uint64(bySize)
		s.EvictedByAge += uint64(byAge)
	})
}

func (d *Dispatcher) updateGauges() {
	d.met.FastDepth.Set(float64(d.fast.Len()))
	d.met.SpoolDepth.Set(float64(d.store.Len()))
	d.met.SpoolBytes.Set(float64(d.store.Bytes()))
}

func (d *Dispatcher) count(f func(*Stats)) {
	d.mu.Lock()
	f(&d.stats)
	d.mu.Unlock()
}

// Stats returns a snapshot of counters plus live buffer depths.
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	st := d.stats
	d.mu.Unlock()

	st.FastLen = d.fast.Len()
	st.SpoolLen = d.store.Len()
	st.SpoolBytes = d.store.Bytes()
	return st
}
