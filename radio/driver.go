package radio

import "context"

// NdefStatus is the NDEF state the driver reports for the currently
// activated tag (spec §3/§6 check_ndef).
type NdefStatus int

const (
	NdefInvalid NdefStatus = iota
	NdefReadWrite
	NdefReadOnly
	NdefFormattable
)

// Driver is every operation the engine needs from the reader library,
// collected behind one interface so the engine never touches chip state
// directly (spec §4.3: "the façade serializes all access because the
// underlying library is not reentrant"). All methods are called only
// from the engine thread.
type Driver interface {
	// Init brings the chip up. A failure here is fatal to the engine
	// (spec §7, KindInitFailure).
	Init() error
	Close() error

	// ConfigureDiscovery programs the passive-poll/listen bitmaps,
	// per-technology device limits, anti-collision, LPCD and LRI per
	// spec §4.3, for the given polling mode.
	ConfigureDiscovery(mode Mode) error

	// RunDiscoveryOnce performs one discovery iteration. found is false
	// when nothing answered within the iteration's own timeout; this is
	// not an error.
	RunDiscoveryOnce() (tech TechClass, found bool, err error)

	FieldOff() error

	// ActivateNfcDepInitiator runs the 18092 initiator ATR exchange for
	// a device classified as initiator-role, returning the peer's ATR
	// response bytes.
	ActivateNfcDepInitiator(generalBytes []byte) (atrRes []byte, err error)

	// TypeFP2PAtrResLen reports the expected length of a Type F P2P ATR
	// response, used to size read buffers during ATR synthesis.
	TypeFP2PAtrResLen() int

	// PresenceCheck probes whether a previously activated tag of the
	// given classification is still in the field.
	PresenceCheck(tech TechClass) (ok bool, err error)

	ReadNdef(max int) ([]byte, error)
	WriteNdef(data []byte) error
	FormatNdef() error
	CheckNdef() (NdefStatus, error)

	LLCPInit() error
	LLCPActivate(generalBytes []byte, role Role) error
	LLCPWaitForActivation(ctx context.Context) error
	LLCPDeactivate() error

	SnepServerInit() error
	// SnepServerListen blocks for the next inbound PUT and returns its
	// payload, or an error once ctx is canceled or the link drops.
	SnepServerListen(ctx context.Context) ([]byte, error)
	SnepServerDeinit() error

	SnepClientInit() error
	SnepClientSend(ctx context.Context, payload []byte) error
	SnepClientDeinit() error
}
