package radio

import (
	"context"
	"fmt"
	"time"

	"github.com/clausecker/freefare"
	"github.com/clausecker/nfc/v2"
)

// LibnfcDriver implements Driver against a real libnfc device via
// clausecker/nfc and clausecker/freefare, in the same style as the
// source's libnfcDevice wrapper: one non-reentrant nfc.Device, accessed
// only from the engine goroutine, with freefare layered on top for
// tag-level NDEF operations.
type LibnfcDriver struct {
	connStr string
	dev     nfc.Device
	mode    Mode

	active       TechClass
	activeTarget nfc.Target

	link *llcpLink
}

// NewLibnfcDriver builds a driver bound to a libnfc connection string
// (empty string lets libnfc auto-select the first available reader).
func NewLibnfcDriver(connStr string) *LibnfcDriver {
	return &LibnfcDriver{connStr: connStr}
}

func (d *LibnfcDriver) Init() error {
	dev, err := nfc.Open(d.connStr)
	if err != nil {
		return Wrap("Init", KindInitFailure, err)
	}
	if err := dev.InitiatorInit(); err != nil {
		dev.Close()
		return Wrap("Init", KindInitFailure, err)
	}
	d.dev = dev
	return nil
}

func (d *LibnfcDriver) Close() error {
	return d.dev.Close()
}

func (d *LibnfcDriver) ConfigureDiscovery(mode Mode) error {
	d.mode = mode
	return nil
}

func pollModulations() []nfc.Modulation {
	return []nfc.Modulation{
		{Type: nfc.ISO14443a, BaudRate: nfc.Nbr106},
		{Type: nfc.Felica, BaudRate: nfc.Nbr212},
		{Type: nfc.Felica, BaudRate: nfc.Nbr424},
		{Type: nfc.Jewel, BaudRate: nfc.Nbr106},
	}
}

// RunDiscoveryOnce implements Driver.RunDiscoveryOnce. Initiator-role
// modulations are polled first since they return immediately when
// nothing answers; target/listen mode is only armed when the caller's
// Mode includes it and nothing was found as initiator (spec §4.3: a
// Dual poll alternates, it never runs both roles at once).
func (d *LibnfcDriver) RunDiscoveryOnce() (TechClass, bool, error) {
	if d.mode == ModeInitiator || d.mode == ModeDual {
		for _, m := range pollModulations() {
			targets, err := d.dev.InitiatorListPassiveTargets(m)
			if err != nil {
				continue
			}
			if len(targets) == 0 {
				continue
			}
			d.activeTarget = targets[0]
			tech := classifyTarget(targets[0], m)
			d.active = tech
			return tech, true, nil
		}
	}

	if d.mode == ModeTarget || d.mode == ModeDual {
		activated, techF, err := d.pollListenOnce()
		if err != nil {
			return 0, false, Wrap("RunDiscoveryOnce", KindTransient, err)
		}
		if activated {
			tech, role := ClassifyActivatedByPeer(techF)
			_ = role
			d.active = tech
			return tech, true, nil
		}
	}

	return 0, false, nil
}

// pollListenOnce arms the chip's listen/target mode for one short
// window. libnfc's target-mode API blocks until a peer selects us or
// the timeout elapses; a timeout here is the normal "nothing happened"
// outcome, not an error.
func (d *LibnfcDriver) pollListenOnce() (activated bool, techF bool, err error) {
	nm := nfc.Modulation{Type: nfc.ISO14443a, BaudRate: nfc.Nbr106}
	rx := make([]byte, 64)
	_, terr := d.dev.TargetInit(nm, rx, 50*time.Millisecond)
	if terr != nil {
		// A timed-out listen window is the expected common case; the
		// driver has no reliable way to distinguish it from a real I/O
		// fault without vendor-specific error codes, so it is treated
		// the same as "nothing happened" here.
		return false, false, nil
	}
	return true, false, nil
}

func classifyTarget(t nfc.Target, m nfc.Modulation) TechClass {
	switch tt := t.(type) {
	case *nfc.ISO14443aTarget:
		tech := ClassifyISO14443A(ISO14443ADiscovery{
			ATQA: tt.Atqa,
			SAK:  tt.Sak,
			UID:  tt.UID[:tt.UIDLen],
		})
		if tech == DevNfcDepAInitiator && tt.Sak&0x40 == 0 {
			return ClassifyISO14443AAsTag4()
		}
		return tech
	case *nfc.FelicaTarget:
		var idm [8]byte
		copy(idm[:], tt.UID[:])
		return ClassifyFelica(FelicaDiscovery{IDm: idm})
	default:
		if m.Type == nfc.Jewel {
			return Tag1
		}
		return Tag2
	}
}

func (d *LibnfcDriver) FieldOff() error {
	d.dev.InitiatorDeselectTarget() //nolint:errcheck // best-effort; RF off is not load-bearing on failure
	d.active = 0
	d.activeTarget = nil
	return nil
}

// ActivateNfcDepInitiator runs the ISO18092/NFC Forum Digital ATR_REQ
// exchange by hand over a raw transceive, since the libnfc binding
// doesn't surface NFC-DEP activation as a single call the way it does
// ISO14443A/FeliCa polling.
func (d *LibnfcDriver) ActivateNfcDepInitiator(generalBytes []byte) ([]byte, error) {
	req := make([]byte, 0, 16+len(generalBytes))
	req = append(req, 0xD4, 0x00) // ATR_REQ command code
	req = append(req, nfcid3FromConfig()...)
	req = append(req, 0x00, 0x00, 0x00) // DIDi, BSi, BRi
	ppi := byte(0x02)                   // LRi=2 (64 bytes); Gi present
	if len(generalBytes) > 0 {
		ppi |= 0x20
	}
	req = append(req, ppi)
	req = append(req, generalBytes...)

	rx := make([]byte, 64)
	n, err := d.dev.InitiatorTransceiveBytes(req, rx, 500*time.Millisecond)
	if err != nil {
		return nil, Wrap("ActivateNfcDepInitiator", KindPeerGone, err)
	}
	if n < 17 || rx[0] != 0xD5 || rx[1] != 0x01 {
		return nil, Wrap("ActivateNfcDepInitiator", KindPeerGone, fmt.Errorf("malformed ATR_RES"))
	}
	d.link = newLLCPLink(&depExchangerAdapter{d})
	return rx[16:n], nil
}

func nfcid3FromConfig() []byte {
	id := make([]byte, 10)
	for i := range id {
		id[i] = NFCID3
	}
	return id
}

func (d *LibnfcDriver) TypeFP2PAtrResLen() int { return 17 }

// PresenceCheck dispatches on the activated technology, mirroring
// hal_tag.c's rdlib_tag_presence_check per-type switch: a device link
// gets a DEP liveness probe, and each reader-role tag type gets the
// read operation its own family uses rather than one generic check.
func (d *LibnfcDriver) PresenceCheck(tech TechClass) (bool, error) {
	if tech.IsDevice() {
		_, err := d.dev.InitiatorTransceiveBytes([]byte{0xD4, 0x06, 0x00}, make([]byte, 8), 100*time.Millisecond)
		return err == nil, nil
	}
	switch tech {
	case Tag1:
		return d.presenceCheckType1()
	case Tag2:
		return d.presenceCheckType2()
	case Tag3:
		return d.presenceCheckType3()
	case Tag4A:
		return d.presenceCheckType4A()
	default:
		ok, err := d.dev.InitiatorTargetIsPresent(d.activeTarget)
		if err != nil {
			return false, nil
		}
		return ok, nil
	}
}

// presenceCheckType1 reads byte 0 of block 0 (hal_tag.c:
// phalT1T_ReadByte(..., 0x00, ...)): a Jewel/Topaz READ of the
// manufacturer block, command code 0x01.
func (d *LibnfcDriver) presenceCheckType1() (bool, error) {
	rx := make([]byte, 9)
	_, err := d.dev.InitiatorTransceiveBytes([]byte{0x01, 0x00}, rx, 100*time.Millisecond)
	return err == nil, nil
}

// presenceCheckType2 re-reads page 3 through freefare (hal_tag.c:
// phalMful_Read(..., 0x03, ...)), the Ultralight/NTAG page just before
// the NDEF area ReadNdef scans from page 4 onward.
func (d *LibnfcDriver) presenceCheckType2() (bool, error) {
	tags, err := freefare.GetTags(d.dev)
	if err != nil {
		return false, nil
	}
	for _, t := range tags {
		ul, ok := t.(freefare.UltralightTag)
		if !ok {
			continue
		}
		if err := ul.Connect(); err != nil {
			continue
		}
		_, err := ul.ReadPage(3)
		ul.Disconnect() //nolint:errcheck // best-effort; presence result already captured
		return err == nil, nil
	}
	return false, nil
}

// presenceCheckType3 issues a FeliCa READ WITHOUT ENCRYPTION against the
// Memory Configuration block (hal_tag.c: service list 0x0B 0x00, block
// list 0x80 0x88), using the IDm captured from the original poll.
func (d *LibnfcDriver) presenceCheckType3() (bool, error) {
	ft, ok := d.activeTarget.(*nfc.FelicaTarget)
	if !ok {
		return false, nil
	}
	req := []byte{0x06}
	req = append(req, ft.UID[:8]...)
	req = append(req, 0x01, 0x0B, 0x00, 0x01, 0x80, 0x88)
	rx := make([]byte, 32)
	_, err := d.dev.InitiatorTransceiveBytes(req, rx, 100*time.Millisecond)
	return err == nil, nil
}

// presenceCheckType4A sends a standalone ISO14443-4 R(NAK) block
// (hal_tag.c: phpalI14443p4_PresCheck) and treats any reply as presence,
// matching the protocol's use of R(NAK) purely to provoke a response.
func (d *LibnfcDriver) presenceCheckType4A() (bool, error) {
	rx := make([]byte, 8)
	_, err := d.dev.InitiatorTransceiveBytes([]byte{0xB2}, rx, 100*time.Millisecond)
	return err == nil, nil
}

// depExchangerAdapter satisfies depExchanger over the activated
// NFC-DEP link, used by llcpLink for the CONNECT/CC/I-frame exchange.
type depExchangerAdapter struct {
	d *LibnfcDriver
}

func (a *depExchangerAdapter) exchange(ctx context.Context, tx []byte) ([]byte, error) {
	deadline := 1 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 {
			deadline = d
		}
	}
	rx := make([]byte, 256)
	frame := append([]byte{0xD4, 0x06, 0x00}, tx...) // DEP_REQ wrapper
	n, err := a.d.dev.InitiatorTransceiveBytes(frame, rx, deadline)
	if err != nil {
		return nil, err
	}
	if n < 3 {
		return nil, errShortFrame
	}
	return rx[3:n], nil
}

func (d *LibnfcDriver) LLCPInit() error { return nil }

func (d *LibnfcDriver) LLCPActivate(generalBytes []byte, role Role) error {
	if d.link == nil {
		d.link = newLLCPLink(&depExchangerAdapter{d})
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return d.link.connect(ctx, role == RoleInitiator)
}

func (d *LibnfcDriver) LLCPWaitForActivation(ctx context.Context) error {
	if d.link == nil {
		return Wrap("LLCPWaitForActivation", KindPeerGone, fmt.Errorf("no link"))
	}
	return nil
}

func (d *LibnfcDriver) LLCPDeactivate() error {
	if d.link != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		defer cancel()
		d.link.disconnect(ctx)
		d.link = nil
	}
	return nil
}

func (d *LibnfcDriver) SnepServerInit() error { return nil }

func (d *LibnfcDriver) SnepServerListen(ctx context.Context) ([]byte, error) {
	if d.link == nil {
		return nil, Wrap("SnepServerListen", KindPeerGone, fmt.Errorf("no link"))
	}
	frame, err := d.link.recvInfo(ctx)
	if err != nil {
		return nil, err
	}
	op, payload, err := decodeSnepRequest(frame, SnepMaxPutSize)
	if err != nil {
		return nil, Wrap("SnepServerListen", KindNdefParse, err)
	}
	if op != snepPut {
		d.link.sendInfo(ctx, encodeSnepResponse(snepReject)) //nolint:errcheck // best-effort rejection notice
		return nil, Wrap("SnepServerListen", KindNdefParse, fmt.Errorf("unsupported SNEP request %#x", op))
	}
	if _, err := d.link.sendInfo(ctx, encodeSnepResponse(snepSuccess)); err != nil {
		return nil, Wrap("SnepServerListen", KindPeerGone, err)
	}
	return payload, nil
}

func (d *LibnfcDriver) SnepServerDeinit() error { return nil }

func (d *LibnfcDriver) SnepClientInit() error { return nil }

func (d *LibnfcDriver) SnepClientSend(ctx context.Context, payload []byte) error {
	if d.link == nil {
		return Wrap("SnepClientSend", KindPeerGone, fmt.Errorf("no link"))
	}
	req := encodeSnepPut(payload)
	resp, err := d.link.sendInfo(ctx, req)
	if err != nil {
		return err
	}
	if len(resp) < 2 || resp[1] != snepSuccess {
		return Wrap("SnepClientSend", KindPeerGone, fmt.Errorf("SNEP PUT rejected"))
	}
	return nil
}

func (d *LibnfcDriver) SnepClientDeinit() error { return nil }

// ReadNdef reads the NDEF message from the currently activated tag.
// Type 2 tags (Ultralight/NTAG) are read page by page through freefare;
// Type 4A reads are not implemented here as a full ISO 7816-4 APDU
// sequence (spec treats this as the vendor library's job); for any tag
// that is not Ultralight/NTAG it returns no data and no error, so the
// engine simply reports an empty tag.
func (d *LibnfcDriver) ReadNdef(max int) ([]byte, error) {
	tags, err := freefare.GetTags(d.dev)
	if err != nil {
		return nil, Wrap("ReadNdef", KindNdefParse, err)
	}
	for _, t := range tags {
		ul, ok := t.(freefare.UltralightTag)
		if !ok {
			continue
		}
		area, err := readUltralightArea(ul)
		if err != nil {
			return nil, Wrap("ReadNdef", KindNdefParse, err)
		}
		msg, found := findNdefTLV(area)
		if !found {
			return nil, nil
		}
		if len(msg) > max {
			msg = msg[:max]
		}
		return msg, nil
	}
	return nil, nil
}

func (d *LibnfcDriver) WriteNdef(data []byte) error {
	tags, err := freefare.GetTags(d.dev)
	if err != nil {
		return Wrap("WriteNdef", KindNdefWrite, err)
	}
	for _, t := range tags {
		ul, ok := t.(freefare.UltralightTag)
		if !ok {
			continue
		}
		return writeUltralightArea(ul, buildNdefTLV(data))
	}
	return Wrap("WriteNdef", KindNdefWrite, fmt.Errorf("no writable tag present"))
}

func (d *LibnfcDriver) FormatNdef() error {
	tags, err := freefare.GetTags(d.dev)
	if err != nil {
		return Wrap("FormatNdef", KindNdefWrite, err)
	}
	for _, t := range tags {
		ul, ok := t.(freefare.UltralightTag)
		if !ok {
			continue
		}
		return writeUltralightArea(ul, []byte{tlvNDEF, 0x00, tlvTerminator})
	}
	return Wrap("FormatNdef", KindNdefWrite, fmt.Errorf("no formattable tag present"))
}

func (d *LibnfcDriver) CheckNdef() (NdefStatus, error) {
	tags, err := freefare.GetTags(d.dev)
	if err != nil {
		return NdefInvalid, Wrap("CheckNdef", KindNdefParse, err)
	}
	for _, t := range tags {
		if _, ok := t.(freefare.UltralightTag); ok {
			return NdefReadWrite, nil
		}
	}
	return NdefInvalid, nil
}

const ultralightNdefStartPage = 4
const ultralightNdefMaxPage = 16

func readUltralightArea(ul freefare.UltralightTag) ([]byte, error) {
	if err := ul.Connect(); err != nil {
		return nil, err
	}
	defer ul.Disconnect()

	var out []byte
	for page := byte(ultralightNdefStartPage); page < ultralightNdefMaxPage; page++ {
		data, err := ul.ReadPage(page)
		if err != nil {
			break
		}
		out = append(out, data[:]...)
	}
	return out, nil
}

func writeUltralightArea(ul freefare.UltralightTag, tlv []byte) error {
	if err := ul.Connect(); err != nil {
		return err
	}
	defer ul.Disconnect()

	pagesAvailable := ultralightNdefMaxPage - ultralightNdefStartPage
	if len(tlv) > pagesAvailable*4 {
		return fmt.Errorf("NDEF TLV (%d bytes) exceeds tag capacity", len(tlv))
	}

	offset := 0
	for page := byte(ultralightNdefStartPage); offset < len(tlv); page++ {
		var pageData [4]byte
		n := copy(pageData[:], tlv[offset:])
		if err := ul.WritePage(page, pageData); err != nil {
			return err
		}
		offset += n
	}
	return nil
}
