package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nfc-engine/nfcd/radio"
)

// fakeDriver is a scripted radio.Driver: RunDiscoveryOnce walks a fixed
// sequence of results once, then reports nothing found; PresenceCheck
// defaults to "still present" unless told otherwise.
type fakeDriver struct {
	mu sync.Mutex

	discovery    []discoveryStep
	discoveryIdx int

	presence    []bool
	presenceIdx int

	ndefStatus radio.NdefStatus
	ndefData   []byte

	writeCalls   [][]byte
	formatCalled int

	snepBlock bool // not read: SnepServerListen always blocks on ctx
}

type discoveryStep struct {
	tech  radio.TechClass
	found bool
}

func (f *fakeDriver) Init() error                        { return nil }
func (f *fakeDriver) Close() error                        { return nil }
func (f *fakeDriver) ConfigureDiscovery(radio.Mode) error { return nil }

func (f *fakeDriver) RunDiscoveryOnce() (radio.TechClass, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.discoveryIdx >= len(f.discovery) {
		time.Sleep(time.Millisecond)
		return 0, false, nil
	}
	step := f.discovery[f.discoveryIdx]
	f.discoveryIdx++
	return step.tech, step.found, nil
}

func (f *fakeDriver) FieldOff() error { return nil }

func (f *fakeDriver) ActivateNfcDepInitiator(generalBytes []byte) ([]byte, error) {
	return []byte{0x46, 0x66, 0x6D}, nil
}

func (f *fakeDriver) TypeFP2PAtrResLen() int { return 17 }

func (f *fakeDriver) PresenceCheck(radio.TechClass) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.presenceIdx >= len(f.presence) {
		return true, nil
	}
	ok := f.presence[f.presenceIdx]
	f.presenceIdx++
	return ok, nil
}

func (f *fakeDriver) ReadNdef(int) ([]byte, error) { return f.ndefData, nil }

func (f *fakeDriver) WriteNdef(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeCalls = append(f.writeCalls, data)
	return nil
}

func (f *fakeDriver) FormatNdef() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.formatCalled++
	return nil
}

func (f *fakeDriver) CheckNdef() (radio.NdefStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ndefStatus, nil
}

func (f *fakeDriver) LLCPInit() error                                   { return nil }
func (f *fakeDriver) LLCPActivate(generalBytes []byte, role radio.Role) error { return nil }
func (f *fakeDriver) LLCPWaitForActivation(ctx context.Context) error   { return nil }
func (f *fakeDriver) LLCPDeactivate() error                             { return nil }

func (f *fakeDriver) SnepServerInit() error { return nil }
func (f *fakeDriver) SnepServerListen(ctx context.Context) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
func (f *fakeDriver) SnepServerDeinit() error { return nil }

func (f *fakeDriver) SnepClientInit() error                                  { return nil }
func (f *fakeDriver) SnepClientSend(ctx context.Context, payload []byte) error { return nil }
func (f *fakeDriver) SnepClientDeinit() error                                 { return nil }

func submitAndWait(t *testing.T, e *Engine, c Command) error {
	t.Helper()
	done := make(chan error, 1)
	c.Done = done
	e.Submit(c)
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("command timed out")
		return nil
	}
}

func waitEvent(t *testing.T, e *Engine, kind EventKind) Event {
	t.Helper()
	for {
		select {
		case ev := <-e.Events():
			if ev.Kind == kind {
				return ev
			}
		case <-time.After(3 * time.Second):
			t.Fatalf("timed out waiting for event %v", kind)
		}
	}
}

// TestTagDetectedAndLost covers spec §8 scenario 1: a Type 2 tag is
// found, one failed presence check drops it, and polling_changed,
// tag_detected and tag_lost fire in that relative order.
func TestTagDetectedAndLost(t *testing.T) {
	drv := &fakeDriver{
		discovery: []discoveryStep{{tech: radio.Tag2, found: true}},
		presence:  []bool{false},
	}
	e := New(drv, false, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runDone := make(chan error, 1)
	go func() { runDone <- e.Run(ctx) }()

	if err := submitAndWait(t, e, NewStartPoll(radio.ModeInitiator)); err != nil {
		t.Fatalf("StartPoll: %v", err)
	}
	waitEvent(t, e, EventPollingChanged)
	det := waitEvent(t, e, EventTagDetected)
	if det.ID != 0 {
		t.Errorf("tag_detected id = %d, want 0", det.ID)
	}
	lost := waitEvent(t, e, EventTagLost)
	if lost.ID != det.ID {
		t.Errorf("tag_lost id = %d, want %d", lost.ID, det.ID)
	}

	if err := submitAndWait(t, e, NewJoin()); err != nil {
		t.Fatalf("Join: %v", err)
	}
	select {
	case err := <-runDone:
		if err != nil {
			t.Errorf("Run returned %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Join")
	}
}

// TestWriteTagFormatsThenUpgrades covers spec §8 scenario 3: a
// Formattable tag is formatted before the write, and its status is
// upgraded to ReadWrite so a second write would not reformat it.
func TestWriteTagFormatsThenUpgrades(t *testing.T) {
	drv := &fakeDriver{
		discovery:  []discoveryStep{{tech: radio.Tag2, found: true}},
		ndefStatus: radio.NdefFormattable,
	}
	e := New(drv, false, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx)

	if err := submitAndWait(t, e, NewStartPoll(radio.ModeInitiator)); err != nil {
		t.Fatalf("StartPoll: %v", err)
	}
	det := waitEvent(t, e, EventTagDetected)

	payload := []byte{0xD1, 0x01, 0x00, 0x55}
	if err := submitAndWait(t, e, NewWriteTag(det.ID, payload)); err != nil {
		t.Fatalf("WriteTag: %v", err)
	}

	drv.mu.Lock()
	formatCalled := drv.formatCalled
	writes := len(drv.writeCalls)
	drv.mu.Unlock()
	if formatCalled != 1 {
		t.Errorf("formatCalled = %d, want 1", formatCalled)
	}
	if writes != 1 {
		t.Errorf("writeCalls = %d, want 1", writes)
	}

	h, ok := e.Tags().Get(det.ID)
	if !ok {
		t.Fatal("tag entry not found after write")
	}
	entry := h.Entry()
	entry.Lock()
	status := entry.NdefStatus
	entry.Unlock()
	h.Release()
	if status != radio.NdefReadWrite {
		t.Errorf("NdefStatus = %v, want NdefReadWrite after format", status)
	}
}

// TestStopPollBeforeDiscovery covers spec §8 scenario 4: StopPoll
// submitted while nothing has been discovered yet returns the engine
// to Idle and reports polling_changed(false) promptly.
func TestStopPollBeforeDiscovery(t *testing.T) {
	drv := &fakeDriver{}
	e := New(drv, false, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx)

	if err := submitAndWait(t, e, NewStartPoll(radio.ModeInitiator)); err != nil {
		t.Fatalf("StartPoll: %v", err)
	}
	waitEvent(t, e, EventPollingChanged)

	if err := submitAndWait(t, e, NewStopPoll()); err != nil {
		t.Fatalf("StopPoll: %v", err)
	}
	ev := waitEvent(t, e, EventPollingChanged)
	if ev.Polling {
		t.Errorf("polling_changed.Polling = true, want false")
	}
	if e.IsPolling() {
		t.Errorf("IsPolling() = true after StopPoll")
	}
}

// TestJoinDuringDevicePresent covers spec §8 scenario 5: Join while a
// device session is active tears the session down and unblocks Run.
func TestJoinDuringDevicePresent(t *testing.T) {
	drv := &fakeDriver{
		discovery: []discoveryStep{{tech: radio.DevNfcDepAInitiator, found: true}},
	}
	e := New(drv, false, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runDone := make(chan error, 1)
	go func() { runDone <- e.Run(ctx) }()

	if err := submitAndWait(t, e, NewStartPoll(radio.ModeDual)); err != nil {
		t.Fatalf("StartPoll: %v", err)
	}
	det := waitEvent(t, e, EventDeviceDetected)
	if det.ID != 0 {
		t.Errorf("device_detected id = %d, want 0", det.ID)
	}

	if err := submitAndWait(t, e, NewJoin()); err != nil {
		t.Fatalf("Join: %v", err)
	}
	waitEvent(t, e, EventDeviceLost)

	select {
	case err := <-runDone:
		if err != nil {
			t.Errorf("Run returned %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Join")
	}
}
