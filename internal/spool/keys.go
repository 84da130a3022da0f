package spool

import (
	"github.com/rzbill/relay/pkg/seq"
)

// Keyspace helpers for Pebble keys.
//
// Layout (byte-wise, lexicographically sortable):
// - e/{seq16} (entries)

var entryPrefix = []byte("e/")

// keyEntry builds the entry key for a sequence key.
func keyEntry(k seq.Key) []byte {
	out := make([]byte, 0, len(entryPrefix)+seq.KeySize)
	out = append(out, entryPrefix...)
	out = append(out, k[:]...)
	return out
}

// entryBounds returns [low, high) covering every entry key.
func entryBounds() (low, high []byte) {
	low = append([]byte(nil), entryPrefix...)
	high = make([]byte, 0, len(entryPrefix)+seq.KeySize+1)
	high = append(high, entryPrefix...)
	for i := 0; i < seq.KeySize; i++ {
		high = append(high, 0xFF)
	}
	high = append(high, 0x00)
	return low, high
}

// entryKeySeq extracts the sequence key from an entry key.
func entryKeySeq(key []byte) (seq.Key, bool) {
	if len(key) != len(entryPrefix)+seq.KeySize {
		return seq.Key{}, false
	}
	return seq.FromBytes(key[len(entryPrefix):])
}
