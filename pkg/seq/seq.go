package seq

import (
	"encoding/binary"
	"encoding/hex"
	"math"
	"sync"
	"time"
)

// KeySize is the encoded width of a Key in bytes.
const KeySize = 16

// Key is a 128-bit sequence key encoded big-endian as
// [8 bytes ms_timestamp][8 bytes counter]. Byte-wise comparison of two
// keys agrees with the order in which they were generated.
type Key [KeySize]byte

// Bytes returns the raw 16-byte representation.
func (k Key) Bytes() []byte {
	b := make([]byte, KeySize)
	copy(b, k[:])
	return b
}

// String returns the key as a hex string.
func (k Key) String() string { return hex.EncodeToString(k[:]) }

// Compare returns -1, 0, or 1 ordering k against other byte-wise.
func (k Key) Compare(other Key) int {
	for i := 0; i < KeySize; i++ {
		switch {
		case k[i] < other[i]:
			return -1
		case k[i] > other[i]:
			return 1
		}
	}
	return 0
}

// IsZero reports whether k is the zero key.
func (k Key) IsZero() bool { return k == Key{} }

// Time returns the wall-clock instant embedded in the key.
func (k Key) Time() time.Time {
	ms := int64(binary.BigEndian.Uint64(k[0:8]))
	return time.UnixMilli(ms)
}

// FromBytes decodes a key from its 16-byte representation.
func FromBytes(b []byte) (Key, bool) {
	if len(b) != KeySize {
		return Key{}, false
	}
	var k Key
	copy(k[:], b)
	return k, true
}

// NowMs returns current time in milliseconds since the Unix epoch. Tests
// override it to drive the generator with a fake clock.
var NowMs = func() int64 { return time.Now().UnixMilli() }

// Generator produces strictly increasing keys for a single process.
// The counter half disambiguates keys generated within one millisecond;
// a clock that runs backwards is pinned to the last observed millisecond
// so ordering never regresses.
type Generator struct {
	mu      sync.Mutex
	lastMs  int64
	counter uint64
}

// NewGenerator returns a Generator starting from the current clock.
func NewGenerator() *Generator { return &Generator{} }

// Next returns a key strictly greater than every key the generator has
// produced before. If the counter would overflow within a single
// millisecond it waits for the clock to advance.
func (g *Generator) Next() Key {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := NowMs()
	if ms < g.lastMs {
		ms = g.lastMs
	}

	if ms == g.lastMs {
		if g.counter == math.MaxUint64 {
			for {
				ms = NowMs()
				if ms > g.lastMs {
					break
				}
				time.Sleep(time.Millisecond / 8)
			}
			g.counter = 0
		} else {
			g.counter++
		}
	} else {
		g.counter = 0
	}

	g.lastMs = ms
	return makeKey(ms, g.counter)
}

// SeedAfter pins the generator past k so that every subsequent Next()
// sorts strictly after it. Used when reopening a store that already
// holds keys, possibly written under a clock ahead of the current one.
func (g *Generator) SeedAfter(k Key) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := int64(binary.BigEndian.Uint64(k[0:8]))
	ctr := binary.BigEndian.Uint64(k[8:16])
	if ms < g.lastMs || (ms == g.lastMs && ctr < g.counter) {
		return
	}
	g.lastMs = ms
	g.counter = ctr
}

func makeKey(ms int64, counter uint64) Key {
	var k Key
	binary.BigEndian.PutUint64(k[0:8], uint64(ms))
	binary.BigEndian.PutUint64(k[8:16], counter)
	return k
}
