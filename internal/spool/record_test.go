package spool

import "testing"

func TestRecordRoundtrip(t *testing.T) {
	payload := []byte("payload")
	rec := EncodeRecord(payload)
	dec, ok := DecodeRecord(rec)
	if !ok {
		t.Fatalf("decode failed")
	}
	if string(dec) != string(payload) {
		t.Fatalf("payload mismatch")
	}
}

func TestRecordCRCFail(t *testing.T) {
	rec := EncodeRecord([]byte("y"))
	rec[len(rec)-1] ^= 0xFF // corrupt one byte
	if _, ok := DecodeRecord(rec); ok {
		t.Fatalf("expected crc failure")
	}
}

func TestRecordEmptyPayload(t *testing.T) {
	rec := EncodeRecord(nil)
	dec, ok := DecodeRecord(rec)
	if !ok || len(dec) != 0 {
		t.Fatalf("empty payload roundtrip failed")
	}
	if _, ok := DecodeRecord([]byte{1, 2}); ok {
		t.Fatalf("short record accepted")
	}
}
