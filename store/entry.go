// Package store holds the tag and device registries: reference-counted
// maps from a dense small integer id to per-peer state, mutated only by
// the engine thread and read by façade-side callers through counted
// handles.
package store

import (
	"sync"

	"github.com/nfc-engine/nfcd/radio"
)

// ISO14443AParams holds the anti-collision parameters observed while
// activating a Type A tag.
type ISO14443AParams struct {
	ATQA [2]byte
	SAK  byte
	UID  []byte // up to 10 bytes
}

// FelicaParams holds the parameters observed while activating a Type 3
// (FeliCa) tag.
type FelicaParams struct {
	Manufacturer [2]byte
	CID          [6]byte
	IC           [2]byte
	MaxRespTimes [6]byte
}

// TagEntry is a tag's state for as long as it is present in the field.
// It is mutated only by the engine thread while Connected is true.
type TagEntry struct {
	ID         int
	Tech       radio.TechClass
	Connected  bool
	NdefStatus radio.NdefStatus
	Ndef       []byte // may be empty; otherwise a complete, parsed-at-last-read message
	MaxNdef    int
	ISO14443A  ISO14443AParams
	Felica     FelicaParams

	mu   sync.Mutex
	refs int
}

// Lock guards field access to the entry. The source's per-entry lock is
// reentrant because its helpers call each other while already holding
// it; here callers lock and unlock around their own field access and no
// code path takes the lock while already holding it, so a plain
// sync.Mutex is used. It is not reentrant.
func (e *TagEntry) Lock()   { e.mu.Lock() }
func (e *TagEntry) Unlock() { e.mu.Unlock() }

// DeviceEntry is a peer device's state for as long as LLCP is active.
type DeviceEntry struct {
	ID        int
	Tech      radio.TechClass
	Connected bool
	LastNdef  []byte

	mu   sync.Mutex
	refs int
}

// Lock/Unlock guard field access; see TagEntry.Lock for the reentrancy
// note.
func (e *DeviceEntry) Lock()   { e.mu.Lock() }
func (e *DeviceEntry) Unlock() { e.mu.Unlock() }
