// Package spool implements the durable tier: a disk-backed FIFO of opaque
// payloads persisted in Pebble, used as overflow when delivery fails.
//
// # Overview
//
// Each payload is assigned a 128-bit sequence key (pkg/seq) on Push and
// stored under a lexicographically ordered entry key:
//   - e/{seq16} (entries)
//
// Keys sort in insertion order, so the minimum key is always the oldest
// entry; Peek and Pop operate on it. Records are stored as
// payload | crc32c(payload); a record that fails its checksum is discarded
// on read and counted, never returned.
//
// Row count and byte footprint are kept in memory and rebuilt by a full
// scan on Open, which also seeds the key generator past the largest
// persisted key so ordering holds across restarts.
//
// API surface (internal)
//
//	s, _ := spool.Open(spool.Options{Path: dir})
//	key, _ := s.Push([]byte("payload"))
//	p, _ := s.Peek()          // oldest payload, not removed
//	p, _ = s.Pop()            // oldest payload, removed
//	n, b := s.Len(), s.Bytes()
//
//	// Retention: size pass first (oldest out until under the byte cap),
//	// then age pass (oldest out until the head is young enough).
//	bySize, byAge, _ := s.Recycle(48*time.Hour, 100<<20)
//
// # Durability
//
// Writes go through pebblestore with the configured fsync mode; the default
// syncs the WAL on every commit, so a Push that returned is not lost by a
// crash. Pop deletes in an atomic batch, so a crash never leaves a row
// half-deleted. Eviction by Recycle is deliberate data loss and is always
// counted and logged.
package spool
