// Package seq provides 128-bit, lexicographically sortable sequence keys.
//
// # Format
//
// A Key is 16 bytes big-endian: [8 bytes ms_timestamp][8 bytes counter].
// Byte-wise comparison of two keys preserves chronological order, and keys
// generated within the same millisecond remain strictly increasing by
// counter. Because the timestamp is embedded, a key's age can be read back
// with Time without storing it separately.
//
// # Monotonicity
//
// The Generator ensures per-process monotonicity:
//   - If the system clock regresses, it pins to the last seen millisecond
//     and increments the counter to avoid going backwards.
//   - If the counter would overflow within a millisecond, it waits for the
//     next millisecond before emitting the next key.
//
// A store that persists keys across restarts calls SeedAfter with the
// largest key it holds, so new keys sort after old ones even when the
// process restarts under a clock behind the previous run.
package seq
