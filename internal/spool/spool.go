package spool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	pebblestore "github.com/rzbill/relay/internal/storage/pebble"
	"github.com/rzbill/relay/pkg/log"
	"github.com/rzbill/relay/pkg/seq"
)

// ErrEmpty is returned by Peek and Pop when the spool holds no entries.
var ErrEmpty = errors.New("spool: empty")

// Options configures a Spool.
type Options struct {
	// Path is the Pebble data directory. Required.
	Path string
	// Fsync selects the WAL sync policy. Unspecified means sync on every
	// commit.
	Fsync pebblestore.FsyncMode
	// FsyncInterval applies when Fsync is FsyncModeInterval.
	FsyncInterval time.Duration
	// Logger defaults to a no-op logger when nil.
	Logger *log.Logger
	// Observer receives storage commit observations. Optional.
	Observer pebblestore.CommitObserver
}

// Spool is a durable FIFO of payloads keyed by strictly increasing
// sequence keys. All operations are serialized by a single mutex; the
// underlying store is an exclusive-access resource.
type Spool struct {
	db  *pebblestore.DB
	lg  *log.Logger
	gen *seq.Generator

	mu        sync.Mutex
	count     int64
	bytes     int64
	corrupted uint64
}

// row is a decoded minimum-key entry.
type row struct {
	key     seq.Key
	rawKey  []byte
	payload []byte
	valLen  int
}

// Open opens or creates the spool at opts.Path, rebuilds row count and byte
// footprint by scanning the entry keyspace, and seeds the key generator
// past the largest persisted key.
func Open(opts Options) (*Spool, error) {
	if opts.Path == "" {
		return nil, errors.New("spool: Options.Path is required")
	}
	lg := opts.Logger
	if lg == nil {
		lg = log.Nop()
	}

	db, err := pebblestore.Open(pebblestore.Options{
		DataDir:       opts.Path,
		Fsync:         opts.Fsync,
		FsyncInterval: opts.FsyncInterval,
		Observer:      opts.Observer,
	})
	if err != nil {
		return nil, fmt.Errorf("spool: open store: %w", err)
	}

	s := &Spool{db: db, lg: lg.With("component", "spool"), gen: seq.NewGenerator()}
	if err := s.restore(); err != nil {
		_ = db.Close()
		return nil, err
	}

	s.lg.Info("spool opened", "path", opts.Path, "entries", s.count, "bytes", s.bytes)
	return s, nil
}

// restore scans all entries to rebuild count, bytes, and the generator seed.
func (s *Spool) restore() error {
	low, high := entryBounds()
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: low, UpperBound: high})
	if err != nil {
		return fmt.Errorf("spool: restore scan: %w", err)
	}
	defer iter.Close()

	var last seq.Key
	for ok := iter.First(); ok; ok = iter.Next() {
		s.count++
		s.bytes += int64(len(iter.Value()))
		if k, valid := entryKeySeq(iter.Key()); valid {
			last = k
		}
	}
	if err := iter.Error(); err != nil {
		return fmt.Errorf("spool: restore scan: %w", err)
	}
	if !last.IsZero() {
		s.gen.SeedAfter(last)
	}
	return nil
}

// Push assigns a fresh sequence key to payload and persists it
// write-through. Returns the assigned key.
func (s *Spool) Push(payload []byte) (seq.Key, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := s.gen.Next()
	val := EncodeRecord(payload)

	b := s.db.NewBatch()
	defer b.Close()
	if err := b.Set(keyEntry(k), val, nil); err != nil {
		return seq.Key{}, fmt.Errorf("spool: push: %w", err)
	}
	if err := s.db.CommitBatch(context.Background(), b); err != nil {
		return seq.Key{}, fmt.Errorf("spool: push commit: %w", err)
	}

	s.count++
	s.bytes += int64(len(val))
	return k, nil
}

// Peek returns the payload of the minimum-key entry without removing it.
func (s *Spool) Peek() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.minRow()
	if err != nil {
		return nil, err
	}
	return r.payload, nil
}

// Pop deletes the minimum-key entry and returns its payload.
func (s *Spool) Pop() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.minRow()
	if err != nil {
		return nil, err
	}
	if err := s.deleteRow(r.rawKey, r.valLen); err != nil {
		return nil, fmt.Errorf("spool: pop: %w", err)
	}
	return r.payload, nil
}

// Len returns the number of persisted entries.
func (s *Spool) Len() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Bytes returns the approximate byte footprint: the sum of encoded record
// lengths, excluding key and store overhead.
func (s *Spool) Bytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bytes
}

// Stats is a point-in-time summary for diagnostics.
type Stats struct {
	Len       int64
	Bytes     int64
	OldestAge time.Duration
	Corrupted uint64
}

// Stats returns current counters and the age of the oldest entry.
func (s *Spool) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{Len: s.count, Bytes: s.bytes, Corrupted: s.corrupted}
	if r, err := s.minRow(); err == nil {
		if age := time.Duration(seq.NowMs()-r.key.Time().UnixMilli()) * time.Millisecond; age > 0 {
			st.OldestAge = age
		}
	}
	return st
}

// Close closes the underlying store. The spool must not be used afterwards.
func (s *Spool) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}

// minRow returns the oldest entry, discarding any record that fails its
// checksum. Caller holds s.mu.
func (s *Spool) minRow() (row, error) {
	low, high := entryBounds()
	for {
		iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: low, UpperBound: high})
		if err != nil {
			return row{}, fmt.Errorf("spool: iterator: %w", err)
		}
		if !iter.First() {
			iter.Close()
			return row{}, ErrEmpty
		}
		rawKey := append([]byte(nil), iter.Key()...)
		val := append([]byte(nil), iter.Value()...)
		iter.Close()

		payload, ok := DecodeRecord(val)
		if ok {
			r := row{rawKey: rawKey, payload: payload, valLen: len(val)}
			r.key, _ = entryKeySeq(rawKey)
			return r, nil
		}

		// checksum failure: discard the row and advance
		if err := s.deleteRow(rawKey, len(val)); err != nil {
			return row{}, fmt.Errorf("spool: discard corrupt record: %w", err)
		}
		s.corrupted++
		s.lg.Warn("discarded corrupt record", "key", fmt.Sprintf("%x", rawKey))
	}
}

// deleteRow removes one entry and adjusts counters. Caller holds s.mu.
func (s *Spool) deleteRow(rawKey []byte, valLen int) error {
	b := s.db.NewBatch()
	defer b.Close()
	if err := b.Delete(rawKey, nil); err != nil {
		return err
	}
	if err := s.db.CommitBatch(context.Background(), b); err != nil {
		return err
	}
	s.count--
	s.bytes -= int64(valLen)
	return nil
}
