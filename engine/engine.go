// Package engine runs the polling/session state machine: one thread
// owns the radio driver, pops commands off a bounded queue between
// discovery iterations, and reports lifecycle events to the façade's
// foreign event loop (spec §4.5/§4.6).
package engine

import (
	"context"
	"log"
	"time"

	"github.com/nfc-engine/nfcd/llcp"
	"github.com/nfc-engine/nfcd/ndef"
	"github.com/nfc-engine/nfcd/radio"
	"github.com/nfc-engine/nfcd/store"
)

// State is the engine's top-level polling/session state (spec §4.5).
type State int

const (
	StateIdle State = iota
	StatePolling
	StateTagPresent
	StateDevicePresent
)

// presenceCheckInterval is the cadence both the tag-presence loop and
// the command-queue drain use while a tag session is active.
const presenceCheckInterval = 500 * time.Millisecond

// Engine owns the radio driver exclusively; every method that touches
// it runs on the goroutine that calls Run.
type Engine struct {
	drv      radio.Driver
	tags     *store.TagStore
	devices  *store.DeviceStore
	handover HandoverAgent

	constantPoll bool

	cmds   chan Command
	events chan Event

	state    State
	mode     radio.Mode
	curTagID int
	curDevID int

	tagHandle     *store.TagHandle
	deviceHandle  *store.DeviceHandle
	activeSession *llcp.Session
}

// New builds an engine around drv. constantPoll mirrors the source's
// "constant poll" build option: Idle immediately re-enters Polling
// instead of waiting for an explicit StartPoll.
func New(drv radio.Driver, constantPoll bool, handover HandoverAgent) *Engine {
	return &Engine{
		drv:          drv,
		tags:         store.NewTagStore(),
		devices:      store.NewDeviceStore(),
		handover:     handover,
		constantPoll: constantPoll,
		cmds:         make(chan Command, 16),
		events:       make(chan Event, 16),
		curTagID:     -1,
		curDevID:     -1,
	}
}

// Tags and Devices expose the stores for façade-side getters; the
// façade never mutates them directly, only through Submit.
func (e *Engine) Tags() *store.TagStore       { return e.tags }
func (e *Engine) Devices() *store.DeviceStore { return e.devices }

// Events returns the channel the foreign event loop drains.
func (e *Engine) Events() <-chan Event { return e.events }

// Submit enqueues a command. It never blocks the caller past the
// queue's capacity; a full queue drops the command and replies
// ErrQueueFull on Done if present, matching the source's "dropped after
// logging" policy for commands the engine can't keep up with.
func (e *Engine) Submit(c Command) {
	select {
	case e.cmds <- c:
	default:
		log.Printf("engine: command queue full, dropping %v", c.Kind)
		reply(c, ErrQueueFull)
	}
}

func (e *Engine) emit(ev Event) {
	select {
	case e.events <- ev:
	default:
		log.Printf("engine: event queue full, dropping %v", ev.Kind)
	}
}

func (e *Engine) setPublishedMode(m PublishedMode) {
	e.emit(Event{Kind: EventModeChanged, Mode: m})
}

// IsPolling reports whether the engine is in Polling state — the
// spec's is_polling() query, which must be false whenever any session
// is active (spec §8: "when any session is active, is_polling() is
// false").
func (e *Engine) IsPolling() bool { return e.state == StatePolling }

// Run drives the state machine until ctx is canceled or a Join command
// is processed. It returns once the radio driver has been closed and
// every store entry the engine still owned has been released.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.drv.Init(); err != nil {
		return err
	}
	defer e.drv.Close()
	defer func() {
		// A ctx cancellation leaves the current session's entry held.
		if e.tagHandle != nil {
			e.tagHandle.Release()
			e.tagHandle = nil
		}
		if e.deviceHandle != nil {
			e.activeSession.Close()
			e.deviceHandle.Release()
			e.deviceHandle = nil
			e.activeSession = nil
		}
	}()

	e.state = StateIdle
	for {
		var err error
		switch e.state {
		case StateIdle:
			err = e.runIdle(ctx)
		case StatePolling:
			err = e.runPolling(ctx)
		case StateTagPresent:
			err = e.runTagPresent(ctx)
		case StateDevicePresent:
			err = e.runDevicePresent(ctx)
		}
		if err == errJoin {
			return nil
		}
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

var errJoin = errDone("join requested")

// ErrQueueFull is returned on a command's Done channel when the
// command queue was saturated and the command was dropped.
var ErrQueueFull = errDone("engine: command queue full")

type errDone string

func (e errDone) Error() string { return string(e) }

// runIdle waits for StartPoll (or re-enters polling immediately under
// constant-poll) and handles Join.
func (e *Engine) runIdle(ctx context.Context) error {
	if e.constantPoll {
		e.state = StatePolling
		e.mode = radio.ModeDual
		return nil
	}

	select {
	case <-ctx.Done():
		return nil
	case c := <-e.cmds:
		switch c.Kind {
		case CmdStartPoll:
			if err := e.drv.ConfigureDiscovery(c.Mode); err != nil {
				reply(c, err)
				return nil
			}
			e.mode = c.Mode
			e.state = StatePolling
			e.emit(Event{Kind: EventPollingChanged, Polling: true})
			reply(c, nil)
		case CmdJoin:
			reply(c, nil)
			return errJoin
		default:
			reply(c, nil)
		}
	}
	return nil
}

// runPolling runs discovery iterations until a tag/device appears or
// the command queue yields StopPoll/Join.
func (e *Engine) runPolling(ctx context.Context) error {
	if err := e.drv.ConfigureDiscovery(e.mode); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case c := <-e.cmds:
			if done, err := e.handlePollingCommand(c); done {
				return err
			}
			continue
		default:
		}

		tech, found, err := e.drv.RunDiscoveryOnce()
		if err != nil {
			log.Printf("engine: discovery error: %v", err)
			continue
		}
		if !found {
			continue
		}

		if tech.IsTag() {
			e.enterTagPresent(tech)
			return nil
		}
		e.enterDevicePresent(tech)
		return nil
	}
}

func (e *Engine) handlePollingCommand(c Command) (done bool, err error) {
	switch c.Kind {
	case CmdStopPoll:
		e.state = StateIdle
		e.emit(Event{Kind: EventPollingChanged, Polling: false})
		reply(c, nil)
		return true, nil
	case CmdJoin:
		reply(c, nil)
		return true, errJoin
	default:
		reply(c, nil)
		return false, nil
	}
}

func (e *Engine) enterTagPresent(tech radio.TechClass) {
	h := e.tags.Insert(tech)
	entry := h.Entry()
	entry.Lock()
	entry.Connected = true
	data, rerr := e.drv.ReadNdef(4096)
	if rerr == nil {
		entry.Ndef = data
	}
	if status, serr := e.drv.CheckNdef(); serr == nil {
		entry.NdefStatus = status
	}
	entry.Unlock()

	if data != nil {
		records := ndef.Parse(data)
		offerToAgent(e.handover, records)
	}

	e.curTagID = entry.ID
	e.tagHandle = h
	e.state = StateTagPresent
	e.setPublishedMode(ModeInitiator)
	e.emit(Event{Kind: EventTagDetected, ID: entry.ID})
}

func (e *Engine) enterDevicePresent(tech radio.TechClass) {
	h := e.devices.Insert(tech)
	entry := h.Entry()

	sess, err := llcp.Activate(e.drv, tech)
	if err != nil {
		log.Printf("engine: LLCP activation failed: %v", err)
		h.Release()
		e.state = StatePolling
		return
	}

	entry.Lock()
	entry.Connected = true
	entry.Unlock()

	e.curDevID = entry.ID
	e.deviceHandle = h
	e.state = StateDevicePresent
	e.activeSession = sess
	role := llcp.DeriveRole(tech)
	if role == radio.RoleInitiator {
		e.setPublishedMode(ModeInitiator)
	} else {
		e.setPublishedMode(ModeTarget)
	}
	e.emit(Event{Kind: EventDeviceDetected, ID: entry.ID})
}

// runTagPresent issues a presence check every presenceCheckInterval,
// draining the command queue with that same interval as timeout
// between checks (spec §4.5).
func (e *Engine) runTagPresent(ctx context.Context) error {
	h := e.tagHandle

	for {
		select {
		case <-ctx.Done():
			return nil
		case c := <-e.cmds:
			if done, err := e.handleTagPresentCommand(c, h); done {
				return err
			}
		case <-time.After(presenceCheckInterval):
			entry := h.Entry()
			entry.Lock()
			tech := entry.Tech
			entry.Unlock()

			ok, err := e.drv.PresenceCheck(tech)
			if err != nil || !ok {
				e.tagLost(h)
				return nil
			}
		}
	}
}

func (e *Engine) handleTagPresentCommand(c Command, h *store.TagHandle) (done bool, err error) {
	switch c.Kind {
	case CmdWriteTag:
		if c.TagID != h.Entry().ID {
			reply(c, nil)
			return false, nil
		}
		reply(c, e.writeTag(h, c.Payload))
		return false, nil
	case CmdStopPoll:
		reply(c, nil)
		return false, nil
	case CmdJoin:
		reply(c, nil)
		e.tagLost(h)
		return true, errJoin
	default:
		reply(c, nil)
		return false, nil
	}
}

// writeTag implements the Formattable→format-then-upgrade rule (spec
// §4.5, Open Question #3): a Formattable tag is formatted first, and
// only on success is its status upgraded to ReadWrite before the write
// itself is attempted.
func (e *Engine) writeTag(h *store.TagHandle, payload []byte) error {
	entry := h.Entry()
	entry.Lock()
	status := entry.NdefStatus
	entry.Unlock()

	if status == radio.NdefFormattable {
		if err := e.drv.FormatNdef(); err != nil {
			return err
		}
		entry.Lock()
		entry.NdefStatus = radio.NdefReadWrite
		entry.Unlock()
	}

	if err := e.drv.WriteNdef(payload); err != nil {
		return err
	}
	entry.Lock()
	entry.Ndef = payload
	entry.Unlock()
	return nil
}

func (e *Engine) tagLost(h *store.TagHandle) {
	entry := h.Entry()
	entry.Lock()
	entry.Connected = false
	id := entry.ID
	entry.Unlock()

	h.Release()
	e.tagHandle = nil
	e.emit(Event{Kind: EventTagLost, ID: id})
	e.state = e.lostState()
}

// runDevicePresent blocks in the SNEP default server loop until the
// link drops, relaying inbound PUTs as events and outbound PushDevice
// commands as SNEP client sends.
func (e *Engine) runDevicePresent(ctx context.Context) error {
	h := e.deviceHandle
	sess := e.activeSession
	sessCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	received := make(chan llcp.ReceivedNdef, 1)
	serverErr := make(chan error, 1)
	go func() { serverErr <- sess.RunServer(sessCtx, received) }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case r := <-received:
			entry := h.Entry()
			entry.Lock()
			entry.LastNdef = r.Payload
			entry.Unlock()
			offerToAgent(e.handover, ndef.Parse(r.Payload))
			e.emit(Event{Kind: EventDeviceNdefReceived, ID: entry.ID})
		case serr := <-serverErr:
			if serr != nil {
				log.Printf("engine: SNEP server loop ended: %v", serr)
			}
			e.deviceLost(h, sess)
			return nil
		case c := <-e.cmds:
			if done, err := e.handleDevicePresentCommand(c, h, sess); done {
				cancel()
				return err
			}
		}
	}
}

func (e *Engine) handleDevicePresentCommand(c Command, h *store.DeviceHandle, sess *llcp.Session) (done bool, err error) {
	switch c.Kind {
	case CmdPushDevice:
		if c.DeviceID != h.Entry().ID {
			reply(c, nil)
			return false, nil
		}
		go func() {
			reply(c, sess.Push(context.Background(), c.Payload))
		}()
		return false, nil
	case CmdJoin:
		reply(c, nil)
		e.deviceLost(h, sess)
		return true, errJoin
	default:
		reply(c, nil)
		return false, nil
	}
}

func (e *Engine) deviceLost(h *store.DeviceHandle, sess *llcp.Session) {
	sess.Close()
	entry := h.Entry()
	entry.Lock()
	entry.Connected = false
	id := entry.ID
	entry.Unlock()

	h.Release()
	e.deviceHandle = nil
	e.activeSession = nil
	e.emit(Event{Kind: EventDeviceLost, ID: id})
	e.state = e.lostState()
}

func (e *Engine) lostState() State {
	e.curTagID = -1
	e.curDevID = -1
	e.setPublishedMode(ModeIdle)
	if e.constantPoll {
		return StatePolling
	}
	return StateIdle
}
