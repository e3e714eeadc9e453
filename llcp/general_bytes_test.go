package llcp

import (
	"bytes"
	"testing"

	"github.com/nfc-engine/nfcd/radio"
)

func TestBuildGeneralBytesStartsWithMagic(t *testing.T) {
	gb := BuildGeneralBytes()
	if !bytes.Equal(gb[:3], llcpMagic[:]) {
		t.Fatalf("general bytes = %x, want prefix %x", gb[:3], llcpMagic)
	}
}

func TestBuildGeneralBytesEncodesWKS(t *testing.T) {
	gb := BuildGeneralBytes()
	idx := bytes.Index(gb, []byte{tlvWKS, 2, 0x00, 0x11})
	if idx < 0 {
		t.Errorf("WKS TLV 0x0011 not found in %x", gb)
	}
}

func TestDeriveRole(t *testing.T) {
	if got := DeriveRole(radio.DevNfcDepAInitiator); got != radio.RoleInitiator {
		t.Errorf("got %v, want RoleInitiator", got)
	}
	if got := DeriveRole(radio.DevNfcDepFTarget); got != radio.RoleTarget {
		t.Errorf("got %v, want RoleTarget", got)
	}
}
