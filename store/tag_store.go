package store

import (
	"sync"

	"github.com/nfc-engine/nfcd/radio"
)

// TagStore is the concurrent tag registry. Insert assigns the smallest
// unused id; an entry lives as long as its reference count is positive.
type TagStore struct {
	mu      sync.Mutex
	entries map[int]*TagEntry
}

// NewTagStore creates an empty tag registry.
func NewTagStore() *TagStore {
	return &TagStore{entries: make(map[int]*TagEntry)}
}

// TagHandle is a counted reference to a stored TagEntry. Callers must
// call Release exactly once when done with it.
type TagHandle struct {
	store *TagStore
	entry *TagEntry
}

// Entry returns the underlying TagEntry. Field access must be guarded by
// the entry's own lock (see TagEntry.Lock in entry.go); the handle only governs
// lifetime, not concurrent field access.
func (h *TagHandle) Entry() *TagEntry { return h.entry }

// Release decrements the handle's reference count, freeing the entry
// from the store once it reaches zero.
func (h *TagHandle) Release() {
	h.store.release(h.entry.ID)
}

// Insert creates a new TagEntry classified as tech, gives the caller one
// reference, and returns a handle to it. Fields beyond ID and Tech are
// left at their zero value for the caller to fill in.
func (s *TagStore) Insert(tech radio.TechClass) *TagHandle {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := 0
	for {
		if _, taken := s.entries[id]; !taken {
			break
		}
		id++
	}
	e := &TagEntry{ID: id, Tech: tech, refs: 1}
	s.entries[id] = e
	return &TagHandle{store: s, entry: e}
}

// Get returns a new counted handle to the entry at id, or (nil, false)
// if no such entry exists.
func (s *TagStore) Get(id int) (*TagHandle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	e.refs++
	return &TagHandle{store: s, entry: e}, true
}

func (s *TagStore) release(id int) {
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

// Len returns the number of live entries. Intended for tests asserting
// id-allocation bounds.
func (s *TagStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
