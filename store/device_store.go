package store

import (
	"sync"

	"github.com/nfc-engine/nfcd/radio"
)

// DeviceStore is the concurrent device registry, analogous to TagStore.
type DeviceStore struct {
	mu      sync.Mutex
	entries map[int]*DeviceEntry
}

// NewDeviceStore creates an empty device registry.
func NewDeviceStore() *DeviceStore {
	return &DeviceStore{entries: make(map[int]*DeviceEntry)}
}

// DeviceHandle is a counted reference to a stored DeviceEntry.
type DeviceHandle struct {
	store *DeviceStore
	entry *DeviceEntry
}

// Entry returns the underlying DeviceEntry.
func (h *DeviceHandle) Entry() *DeviceEntry { return h.entry }

// Release decrements the handle's reference count, freeing the entry
// from the store once it reaches zero.
func (h *DeviceHandle) Release() {
	h.store.release(h.entry.ID)
}

// Insert creates a new DeviceEntry classified as tech, gives the caller
// one reference, and returns a handle to it.
func (s *DeviceStore) Insert(tech radio.TechClass) *DeviceHandle {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := 0
	for {
		if _, taken := s.entries[id]; !taken {
			break
		}
		id++
	}
	e := &DeviceEntry{ID: id, Tech: tech, refs: 1}
	s.entries[id] = e
	return &DeviceHandle{store: s, entry: e}
}

// Get returns a new counted handle to the entry at id, or (nil, false)
// if no such entry exists.
func (s *DeviceStore) Get(id int) (*DeviceHandle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	e.refs++
	return &DeviceHandle{store: s, entry: e}, true
}

func (s *DeviceStore) release(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return
	}
	e.refs--
	if e.refs <= 0 {
		delete(s.entries, id)
	}
}

// Len returns the number of live entries.
func (s *DeviceStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
