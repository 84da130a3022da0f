package spool

import (
	"encoding/binary"
	"hash/crc32"
)

// Record encoding: payload | crc32c(payload). The sequence key carries the
// timestamp, so the record itself needs no header.

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

func EncodeRecord(payload []byte) []byte {
	out := make([]byte, 0, len(payload)+4)
	out = append(out, payload...)

	crc := crc32.Update(0, castagnoli, payload)
	var crcb [4]byte
	binary.BigEndian.PutUint32(crcb[:], crc)
	out = append(out, crcb[:]...)
	return out
}

func DecodeRecord(b []byte) ([]byte, bool) {
	if len(b) < 4 {
		return nil, false
	}
	payload := b[:len(b)-4]
	expect := binary.BigEndian.Uint32(b[len(b)-4:])
	if crc32.Update(0, castagnoli, payload) != expect {
		return nil, false
	}
	return append([]byte(nil), payload...), true
}
