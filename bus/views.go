package bus

import (
	"github.com/nfc-engine/nfcd/ndef"
	"github.com/nfc-engine/nfcd/radio"
	"github.com/nfc-engine/nfcd/store"
)

// tagView adapts a *store.TagEntry to the Tag contract. It locks the
// entry for every field access, since the engine thread may still be
// mutating it concurrently with the foreign loop reading it.
type tagView struct {
	entry *store.TagEntry
}

func (v tagView) ID() int                    { return v.entry.ID }
func (v tagView) Tech() radio.TechClass {
	v.entry.Lock()
	defer v.entry.Unlock()
	return v.entry.Tech
}
func (v tagView) NdefStatus() radio.NdefStatus {
	v.entry.Lock()
	defer v.entry.Unlock()
	return v.entry.NdefStatus
}
func (v tagView) Records() []Record {
	v.entry.Lock()
	data := v.entry.Ndef
	v.entry.Unlock()
	if len(data) == 0 {
		return nil
	}
	return ndef.Parse(data)
}

// deviceView adapts a *store.DeviceEntry to the Device contract.
type deviceView struct {
	entry *store.DeviceEntry
}

func (v deviceView) ID() int { return v.entry.ID }
func (v deviceView) Tech() radio.TechClass {
	v.entry.Lock()
	defer v.entry.Unlock()
	return v.entry.Tech
}
func (v deviceView) LastRecords() []Record {
	v.entry.Lock()
	data := v.entry.LastNdef
	v.entry.Unlock()
	if len(data) == 0 {
		return nil
	}
	return ndef.Parse(data)
}
