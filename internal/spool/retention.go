package spool

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/rzbill/relay/pkg/seq"
)

const trimBatchLimit = 1024

// compactAfter is the eviction count past which a trim requests range
// compaction so deleted space is reclaimed promptly.
const compactAfter = 4096

// Recycle bounds the spool: first evict oldest entries while the byte
// footprint exceeds maxBytes, then evict oldest entries while the head is
// older than maxAge. A threshold <= 0 disables that pass. Safe on an empty
// spool. Eviction is deliberate data loss; returned counts let callers
// surface it.
func (s *Spool) Recycle(maxAge time.Duration, maxBytes int64) (evictedBySize, evictedByAge int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.count == 0 {
		return 0, 0, nil
	}

	evictedBySize, err = s.trimToMaxBytes(maxBytes)
	if err != nil {
		return evictedBySize, 0, err
	}
	evictedByAge, err = s.trimOlderThan(maxAge)
	if err != nil {
		return evictedBySize, evictedByAge, err
	}

	if n := evictedBySize + evictedByAge; n > 0 {
		s.lg.Debug("recycled entries", "by_size", evictedBySize, "by_age", evictedByAge, "remaining", s.count)
		if n >= compactAfter {
			// compaction hint after large sweep
			low, high := entryBounds()
			_ = s.db.CompactRange(low, high)
		}
	}
	return evictedBySize, evictedByAge, nil
}

// trimToMaxBytes deletes oldest entries until the footprint is within
// maxBytes. Caller holds s.mu.
func (s *Spool) trimToMaxBytes(maxBytes int64) (int, error) {
	if maxBytes <= 0 || s.bytes <= maxBytes {
		return 0, nil
	}

	low, high := entryBounds()
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: low, UpperBound: high})
	if err != nil {
		return 0, fmt.Errorf("spool: trim scan: %w", err)
	}
	defer iter.Close()

	deleted := 0
	for ok := iter.First(); ok && s.bytes > maxBytes; {
		b := s.db.NewBatch()
		n := 0
		var freed int64
		for ok && n < trimBatchLimit && s.bytes-freed > maxBytes {
			freed += int64(len(iter.Value()))
			if err := b.Delete(iter.Key(), nil); err != nil {
				b.Close()
				return deleted, fmt.Errorf("spool: trim delete: %w", err)
			}
			n++
			ok = iter.Next()
		}
		if n == 0 {
			b.Close()
			break
		}
		if err := s.db.CommitBatch(context.Background(), b); err != nil {
			b.Close()
			return deleted, fmt.Errorf("spool: trim commit: %w", err)
		}
		b.Close()
		deleted += n
		s.count -= int64(n)
		s.bytes -= freed
	}
	return deleted, nil
}

// trimOlderThan deletes entries whose key timestamp is older than maxAge,
// stopping at the first entry within bound; keys ascend with time, so
// everything after it is newer. Caller holds s.mu.
func (s *Spool) trimOlderThan(maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, nil
	}
	cutoffMs := seq.NowMs() - maxAge.Milliseconds()

	low, high := entryBounds()
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: low, UpperBound: high})
	if err != nil {
		return 0, fmt.Errorf("spool: trim scan: %w", err)
	}
	defer iter.Close()

	deleted := 0
	for ok := iter.First(); ok; {
		b := s.db.NewBatch()
		n := 0
		var freed int64
		stop := false
		for ok && n < trimBatchLimit {
			if k, valid := entryKeySeq(iter.Key()); valid && k.Time().UnixMilli() >= cutoffMs {
				stop = true
				break
			}
			freed += int64(len(iter.Value()))
			if err := b.Delete(iter.Key(), nil); err != nil {
				b.Close()
				return deleted, fmt.Errorf("spool: trim delete: %w", err)
			}
			n++
			ok = iter.Next()
		}
		if n > 0 {
			if err := s.db.CommitBatch(context.Background(), b); err != nil {
				b.Close()
				return deleted, fmt.Errorf("spool: trim commit: %w", err)
			}
			deleted += n
			s.count -= int64(n)
			s.bytes -= freed
		}
		b.Close()
		if stop {
			break
		}
	}
	return deleted, nil
}
