package llcp

import (
	"context"
	"testing"
	"time"

	"github.com/nfc-engine/nfcd/radio"
)

// fakeDriver implements radio.Driver with just enough behavior to
// exercise Session without a real chip.
type fakeDriver struct {
	llcpActivated   bool
	activatedRole   radio.Role
	snepPuts        [][]byte
	serverPayloads  [][]byte
	serverCallCount int
	atrCalls        int
}

func (f *fakeDriver) Init() error                           { return nil }
func (f *fakeDriver) Close() error                           { return nil }
func (f *fakeDriver) ConfigureDiscovery(radio.Mode) error    { return nil }
func (f *fakeDriver) RunDiscoveryOnce() (radio.TechClass, bool, error) {
	return 0, false, nil
}
func (f *fakeDriver) FieldOff() error { return nil }
func (f *fakeDriver) ActivateNfcDepInitiator(gb []byte) ([]byte, error) {
	f.atrCalls++
	return []byte{0x46, 0x66, 0x6D}, nil
}
func (f *fakeDriver) TypeFP2PAtrResLen() int                   { return 17 }
func (f *fakeDriver) PresenceCheck(radio.TechClass) (bool, error) { return true, nil }
func (f *fakeDriver) ReadNdef(int) ([]byte, error)             { return nil, nil }
func (f *fakeDriver) WriteNdef([]byte) error                   { return nil }
func (f *fakeDriver) FormatNdef() error                        { return nil }
func (f *fakeDriver) CheckNdef() (radio.NdefStatus, error)      { return radio.NdefReadWrite, nil }

func (f *fakeDriver) LLCPInit() error { return nil }
func (f *fakeDriver) LLCPActivate(gb []byte, role radio.Role) error {
	f.llcpActivated = true
	f.activatedRole = role
	return nil
}
func (f *fakeDriver) LLCPWaitForActivation(ctx context.Context) error { return nil }
func (f *fakeDriver) LLCPDeactivate() error                           { return nil }

func (f *fakeDriver) SnepServerInit() error { return nil }
func (f *fakeDriver) SnepServerListen(ctx context.Context) ([]byte, error) {
	if f.serverCallCount >= len(f.serverPayloads) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	p := f.serverPayloads[f.serverCallCount]
	f.serverCallCount++
	return p, nil
}
func (f *fakeDriver) SnepServerDeinit() error { return nil }

func (f *fakeDriver) SnepClientInit() error { return nil }
func (f *fakeDriver) SnepClientSend(ctx context.Context, payload []byte) error {
	f.snepPuts = append(f.snepPuts, payload)
	return nil
}
func (f *fakeDriver) SnepClientDeinit() error { return nil }

func TestActivateInitiatorRoleRunsATR(t *testing.T) {
	f := &fakeDriver{}
	sess, err := Activate(f, radio.DevNfcDepAInitiator)
	if err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if !f.llcpActivated || f.activatedRole != radio.RoleInitiator {
		t.Errorf("expected initiator-role LLCP activation, got role=%v activated=%v", f.activatedRole, f.llcpActivated)
	}
	if f.atrCalls != 1 {
		t.Errorf("ATR exchanges = %d, want 1", f.atrCalls)
	}
	sess.Close()
}

func TestActivateTargetRoleSkipsATR(t *testing.T) {
	f := &fakeDriver{}
	_, err := Activate(f, radio.DevNfcDepATarget)
	if err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if f.activatedRole != radio.RoleTarget {
		t.Errorf("activatedRole = %v, want RoleTarget", f.activatedRole)
	}
	if f.atrCalls != 0 {
		t.Errorf("ATR exchanges = %d, want 0", f.atrCalls)
	}
}

func TestRunServerDeliversPayloads(t *testing.T) {
	f := &fakeDriver{serverPayloads: [][]byte{[]byte("one"), []byte("two")}}
	sess, _ := Activate(f, radio.DevNfcDepATarget)

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan ReceivedNdef, 2)
	done := make(chan error, 1)
	go func() { done <- sess.RunServer(ctx, out) }()

	got := make([][]byte, 0, 2)
	for i := 0; i < 2; i++ {
		select {
		case r := <-out:
			got = append(got, r.Payload)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for payload")
		}
	}
	cancel()
	<-done

	if string(got[0]) != "one" || string(got[1]) != "two" {
		t.Errorf("got %q, want [one two]", got)
	}
}

func TestPushSendsSnepPut(t *testing.T) {
	f := &fakeDriver{}
	sess, _ := Activate(f, radio.DevNfcDepAInitiator)
	if err := sess.Push(context.Background(), []byte("payload")); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if len(f.snepPuts) != 1 || string(f.snepPuts[0]) != "payload" {
		t.Errorf("snepPuts = %v, want one entry 'payload'", f.snepPuts)
	}
}
