// Package scheduler decides which buffer tier the dispatcher drains next,
// using weighted round robin over the fast and spool tiers.
package scheduler

// Source identifies the tier a draw selected.
type Source int

const (
	SourceNone Source = iota
	SourceFast
	SourceSpool
)

func (s Source) String() string {
	switch s {
	case SourceFast:
		return "fast"
	case SourceSpool:
		return "spool"
	default:
		return "none"
	}
}

// Weighted is a deterministic weighted round robin over two sources. Each
// source holds a credit counter; a draw with both sources ready picks the
// source with the larger remaining credit (ties go to fast), decrements it,
// and refills both credits once they reach zero. Over any window of
// fastWeight+spoolWeight consecutive both-ready draws each source is picked
// exactly its weight.
//
// Draws with one source ready return that source without touching credits:
// an empty tier never consumes turns. Not safe for concurrent use; the
// dispatcher is its only caller.
type Weighted struct {
	fastWeight  int
	spoolWeight int
	fastCredit  int
	spoolCredit int
}

// New builds a scheduler with the given weights, clamped to at least 1.
func New(fastWeight, spoolWeight int) *Weighted {
	if fastWeight < 1 {
		fastWeight = 1
	}
	if spoolWeight < 1 {
		spoolWeight = 1
	}
	return &Weighted{
		fastWeight:  fastWeight,
		spoolWeight: spoolWeight,
		fastCredit:  fastWeight,
		spoolCredit: spoolWeight,
	}
}

// Pick returns the source to drain given which tiers currently hold data.
func (w *Weighted) Pick(fastReady, spoolReady bool) Source {
	switch {
	case !fastReady && !spoolReady:
		return SourceNone
	case fastReady && !spoolReady:
		return SourceFast
	case !fastReady && spoolReady:
		return SourceSpool
	}

	var picked Source
	if w.fastCredit >= w.spoolCredit {
		picked = SourceFast
		w.fastCredit--
	} else {
		picked = SourceSpool
		w.spoolCredit--
	}
	if w.fastCredit == 0 && w.spoolCredit == 0 {
		w.fastCredit = w.fastWeight
		w.spoolCredit = w.spoolWeight
	}
	return picked
}
