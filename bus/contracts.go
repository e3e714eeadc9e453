// Package bus bridges the engine's internal event/command channels to
// a façade's foreign event loop: a thread-safe command queue in
// (engine ← façade) and a "run on foreign loop" callback mechanism out
// (engine → façade). Nothing in this package implements a message-bus
// object model — that belongs to the façade — it only carries engine
// events to wherever the façade schedules its own work.
package bus

import (
	"github.com/nfc-engine/nfcd/ndef"
	"github.com/nfc-engine/nfcd/radio"
)

// Record is the façade-visible view of a parsed NDEF record. It is the
// same value the engine parsed; the façade owns turning it into
// whatever message-bus object model it exposes.
type Record = ndef.Record

// Tag is what the engine promises about a detected tag at the moment a
// callback runs. Implementations must be safe to call from the foreign
// loop only — never from the engine thread.
type Tag interface {
	ID() int
	Tech() radio.TechClass
	Records() []Record
	NdefStatus() radio.NdefStatus
}

// Device is what the engine promises about an activated peer device at
// the moment a callback runs.
type Device interface {
	ID() int
	Tech() radio.TechClass
	LastRecords() []Record
}

// Adapter is the façade-implemented counterpart: the object that owns
// publishing tags and devices onto the message bus. The engine never
// implements this interface; it is declared here only so façade code
// and engine code agree on the shape of what gets published.
type Adapter interface {
	PublishTag(t Tag)
	UnpublishTag(id int)
	PublishDevice(d Device)
	UnpublishDevice(id int)
}
