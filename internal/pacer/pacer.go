// Package pacer bounds dispatch frequency to a configured
// events-per-second ceiling.
package pacer

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Gate limits dispatch attempts to a fixed rate with no burst: at most one
// permit per 1/perSecond interval, accounted against absolute elapsed time
// so behavior is identical across second boundaries. Ready and Wait consume
// the permit atomically, so a ready-check/update pair cannot race into a
// double dispatch.
type Gate struct {
	limiter  *rate.Limiter
	interval time.Duration
}

// New builds a gate allowing perSecond dispatches per second, clamped to
// at least 1.
func New(perSecond int) *Gate {
	if perSecond < 1 {
		perSecond = 1
	}
	return &Gate{
		limiter:  rate.NewLimiter(rate.Limit(perSecond), 1),
		interval: time.Second / time.Duration(perSecond),
	}
}

// Ready consumes a permit if one is available. Never blocks.
func (g *Gate) Ready() bool { return g.limiter.Allow() }

// Wait blocks until a permit is available or ctx is done, consuming the
// permit on success. This is the dispatch loop's suspension point.
func (g *Gate) Wait(ctx context.Context) error { return g.limiter.Wait(ctx) }

// Interval returns the spacing between permits.
func (g *Gate) Interval() time.Duration { return g.interval }
