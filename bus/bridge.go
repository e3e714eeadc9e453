package bus

import (
	"context"
	"log"

	"github.com/nfc-engine/nfcd/engine"
)

// Callbacks are the façade's handlers for each outbound event kind
// (spec §4.6). A nil handler means that event kind is simply dropped
// after its temporary reference (if any) is released — the façade
// doesn't have to implement every callback to use the bridge.
type Callbacks struct {
	OnModeChanged        func(mode engine.PublishedMode)
	OnPollingChanged     func(polling bool)
	OnTagDetected        func(id int, tag Tag)
	OnTagLost            func(id int)
	OnDeviceDetected     func(id int, dev Device)
	OnDeviceNdefReceived func(id int, dev Device)
	OnDeviceLost         func(id int)
}

// Bridge is the thread-safe command queue plus foreign-loop callback
// mechanism of spec §4.6: Submit forwards commands to the engine
// (façade → engine), and Run drains the engine's event channel,
// scheduling each as a callback on loop (engine → façade).
type Bridge struct {
	eng  *engine.Engine
	loop ForeignLoop
	cb   Callbacks
}

// NewBridge ties an engine to a foreign loop and a set of callbacks.
func NewBridge(eng *engine.Engine, loop ForeignLoop, cb Callbacks) *Bridge {
	return &Bridge{eng: eng, loop: loop, cb: cb}
}

// Submit enqueues a command for the engine thread. It never blocks the
// façade past the engine's queue capacity (engine.Engine.Submit).
func (b *Bridge) Submit(c engine.Command) {
	b.eng.Submit(c)
}

// Run drains the engine's event channel until ctx is canceled, turning
// each event into a callback scheduled on the foreign loop. Detected
// and NdefReceived events carry a temporary store reference acquired
// here and released only after the façade callback has run, so the
// entry cannot be evicted out from under the façade mid-callback (spec
// §4.6).
func (b *Bridge) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-b.eng.Events():
			b.dispatch(ev)
		}
	}
}

func (b *Bridge) dispatch(ev engine.Event) {
	switch ev.Kind {
	case engine.EventModeChanged:
		if b.cb.OnModeChanged != nil {
			mode := ev.Mode
			b.loop.Schedule(func() { b.cb.OnModeChanged(mode) })
		}
	case engine.EventPollingChanged:
		if b.cb.OnPollingChanged != nil {
			polling := ev.Polling
			b.loop.Schedule(func() { b.cb.OnPollingChanged(polling) })
		}
	case engine.EventTagDetected:
		h, ok := b.eng.Tags().Get(ev.ID)
		if !ok {
			return
		}
		id := ev.ID
		b.loop.Schedule(func() {
			defer h.Release()
			if b.cb.OnTagDetected != nil {
				b.cb.OnTagDetected(id, tagView{h.Entry()})
			}
		})
	case engine.EventTagLost:
		if b.cb.OnTagLost != nil {
			id := ev.ID
			b.loop.Schedule(func() { b.cb.OnTagLost(id) })
		}
	case engine.EventDeviceDetected:
		h, ok := b.eng.Devices().Get(ev.ID)
		if !ok {
			return
		}
		id := ev.ID
		b.loop.Schedule(func() {
			defer h.Release()
			if b.cb.OnDeviceDetected != nil {
				b.cb.OnDeviceDetected(id, deviceView{h.Entry()})
			}
		})
	case engine.EventDeviceNdefReceived:
		h, ok := b.eng.Devices().Get(ev.ID)
		if !ok {
			return
		}
		id := ev.ID
		b.loop.Schedule(func() {
			defer h.Release()
			if b.cb.OnDeviceNdefReceived != nil {
				b.cb.OnDeviceNdefReceived(id, deviceView{h.Entry()})
			}
		})
	case engine.EventDeviceLost:
		if b.cb.OnDeviceLost != nil {
			id := ev.ID
			b.loop.Schedule(func() { b.cb.OnDeviceLost(id) })
		}
	default:
		log.Printf("bus: unhandled event kind %v", ev.Kind)
	}
}
