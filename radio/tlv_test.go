package radio

import (
	"bytes"
	"testing"
)

func TestBuildNdefTLVShortMessage(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04}
	got := buildNdefTLV(data)
	want := []byte{0x03, 0x04, 0x01, 0x02, 0x03, 0x04, 0xFE}
	if !bytes.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestBuildNdefTLVLongMessage(t *testing.T) {
	data := make([]byte, 300)
	for i := range data {
		data[i] = byte(i % 256)
	}
	got := buildNdefTLV(data)
	if got[0] != tlvNDEF || got[1] != 0xFF {
		t.Fatalf("bad long-form header: %v", got[:4])
	}
	if got[2] != 0x01 || got[3] != 0x2C {
		t.Errorf("length bytes = %02X %02X, want 01 2C", got[2], got[3])
	}
	if !bytes.Equal(got[4:4+len(data)], data) {
		t.Error("payload mismatch")
	}
	if got[len(got)-1] != tlvTerminator {
		t.Error("missing terminator")
	}
}

func TestFindNdefTLVRoundTrip(t *testing.T) {
	data := []byte("hello ndef")
	area := buildNdefTLV(data)
	got, ok := findNdefTLV(area)
	if !ok {
		t.Fatal("findNdefTLV reported not found")
	}
	if !bytes.Equal(got, data) {
		t.Errorf("got %q, want %q", got, data)
	}
}

func TestFindNdefTLVSkipsNullAndUnknown(t *testing.T) {
	data := []byte("x")
	area := append([]byte{tlvNull, tlvNull, 0xFD, 0x02, 0xAA, 0xBB}, buildNdefTLV(data)...)
	got, ok := findNdefTLV(area)
	if !ok {
		t.Fatal("findNdefTLV reported not found")
	}
	if !bytes.Equal(got, data) {
		t.Errorf("got %q, want %q", got, data)
	}
}

func TestFindNdefTLVStopsAtTerminator(t *testing.T) {
	area := []byte{tlvTerminator, tlvNDEF, 0x01, 0xAA, tlvTerminator}
	if _, ok := findNdefTLV(area); ok {
		t.Error("expected no NDEF TLV found before terminator")
	}
}

func TestFindNdefTLVMalformedLength(t *testing.T) {
	area := []byte{tlvNDEF}
	if _, ok := findNdefTLV(area); ok {
		t.Error("expected malformed TLV to report not found, not panic")
	}
}
