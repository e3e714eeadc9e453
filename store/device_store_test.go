package store

import (
	"testing"

	"github.com/nfc-engine/nfcd/radio"
)

func TestDeviceStoreInsertAssignsSmallestUnusedID(t *testing.T) {
	s := NewDeviceStore()

	h0 := s.Insert(radio.DevNfcDepAInitiator)
	h1 := s.Insert(radio.DevNfcDepATarget)
	if h0.Entry().ID != 0 || h1.Entry().ID != 1 {
		t.Fatalf("got ids %d,%d want 0,1", h0.Entry().ID, h1.Entry().ID)
	}

	h0.Release()
	h2 := s.Insert(radio.DevNfcDepAInitiator)
	if h2.Entry().ID != 0 {
		t.Errorf("expected id 0 to be reused, got %d", h2.Entry().ID)
	}
	if s.Len() != 2 {
		t.Errorf("len = %d, want 2", s.Len())
	}
}

func TestDeviceStoreGetReleaseRefcounting(t *testing.T) {
	s := NewDeviceStore()
	h := s.Insert(radio.DevNfcDepAInitiator)

	h2, ok := s.Get(h.Entry().ID)
	if !ok {
		t.Fatal("Get on live entry failed")
	}

	h.Release()
	if s.Len() != 1 {
		t.Errorf("entry freed too early: len = %d", s.Len())
	}

	h2.Release()
	if s.Len() != 0 {
		t.Errorf("entry not freed at refcount zero: len = %d", s.Len())
	}
}

func TestDeviceStoreGetMissingID(t *testing.T) {
	s := NewDeviceStore()
	if _, ok := s.Get(3); ok {
		t.Error("Get on missing id should fail")
	}
}
