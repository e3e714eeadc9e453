package radio

import (
	"context"
	"encoding/binary"
)

// depExchanger is the one primitive the LLCP/SNEP transport below needs
// from a live NFC-DEP link: send a frame, get the peer's reply. It lets
// the protocol logic run against a fake in tests instead of a real
// chip, the same separation the vendor reader library draws internally
// between its DEP engine and its LLCP/SNEP stack (spec §4.4/§6).
type depExchanger interface {
	exchange(ctx context.Context, tx []byte) (rx []byte, err error)
}

// LLCP PDU types this transport understands. The vendor stack's full
// LLCP implements the complete set (PAX, AGF, UI, FRMR, SNL, RR/RNR
// windowing); this engine only needs enough of it to carry one SNEP
// session per link, which is all the engine ever opens (spec §4.4).
const (
	llcpSYMM    = 0x0
	llcpCONNECT = 0x4
	llcpDISC    = 0x5
	llcpCC      = 0x6
	llcpDM      = 0x7
	llcpI       = 0xC
)

const wellKnownSnepSAP = 0x04

func packLLCPHeader(dsap byte, ptype byte, ssap byte) uint16 {
	return uint16(dsap&0x3F)<<10 | uint16(ptype&0x0F)<<6 | uint16(ssap&0x3F)
}

func unpackLLCPHeader(hdr uint16) (dsap byte, ptype byte, ssap byte) {
	dsap = byte(hdr>>10) & 0x3F
	ptype = byte(hdr>>6) & 0x0F
	ssap = byte(hdr) & 0x3F
	return
}

// llcpLink is one activated LLCP data link carrying a single SNEP
// session, either as the SNEP client (outbound PUT) or server (inbound
// PUT accept loop). Sequence numbers are tracked per spec's N(S)/N(R)
// convention but windowing is fixed at one outstanding I-frame, which
// is all a single PUT/response round trip needs.
type llcpLink struct {
	x       depExchanger
	localSAP, peerSAP byte
	ns, nr  byte
}

func newLLCPLink(x depExchanger) *llcpLink {
	return &llcpLink{x: x, localSAP: wellKnownSnepSAP, peerSAP: wellKnownSnepSAP}
}

// connect performs the CONNECT/CC handshake that brings up the one SNEP
// data link the engine uses. asInitiator picks which side sends
// CONNECT first.
func (l *llcpLink) connect(ctx context.Context, asInitiator bool) error {
	if asInitiator {
		frame := make([]byte, 2)
		binary.BigEndian.PutUint16(frame, packLLCPHeader(l.peerSAP, llcpCONNECT, l.localSAP))
		rx, err := l.x.exchange(ctx, frame)
		if err != nil {
			return Wrap("llcp.connect", KindPeerGone, err)
		}
		if len(rx) < 2 {
			return Wrap("llcp.connect", KindPeerGone, errShortFrame)
		}
		_, ptype, _ := unpackLLCPHeader(binary.BigEndian.Uint16(rx))
		if ptype != llcpCC {
			return Wrap("llcp.connect", KindPeerGone, errUnexpectedPDU)
		}
		return nil
	}

	rx, err := l.x.exchange(ctx, nil)
	if err != nil {
		return Wrap("llcp.connect", KindPeerGone, err)
	}
	if len(rx) < 2 {
		return Wrap("llcp.connect", KindPeerGone, errShortFrame)
	}
	_, ptype, peerSAP := unpackLLCPHeader(binary.BigEndian.Uint16(rx))
	if ptype != llcpCONNECT {
		return Wrap("llcp.connect", KindPeerGone, errUnexpectedPDU)
	}
	l.peerSAP = peerSAP

	cc := make([]byte, 2)
	binary.BigEndian.PutUint16(cc, packLLCPHeader(l.peerSAP, llcpCC, l.localSAP))
	_, err = l.x.exchange(ctx, cc)
	if err != nil {
		return Wrap("llcp.connect", KindPeerGone, err)
	}
	return nil
}

// sendInfo wraps payload in one I-frame and returns the peer's reply
// payload (its own I-frame, stripped of header and sequence byte).
func (l *llcpLink) sendInfo(ctx context.Context, payload []byte) ([]byte, error) {
	frame := make([]byte, 3, len(payload)+3)
	binary.BigEndian.PutUint16(frame, packLLCPHeader(l.peerSAP, llcpI, l.localSAP))
	frame[2] = l.ns<<4 | l.nr
	frame = append(frame, payload...)

	rx, err := l.x.exchange(ctx, frame)
	if err != nil {
		return nil, Wrap("llcp.sendInfo", KindPeerGone, err)
	}
	if len(rx) < 3 {
		return nil, Wrap("llcp.sendInfo", KindPeerGone, errShortFrame)
	}
	_, ptype, _ := unpackLLCPHeader(binary.BigEndian.Uint16(rx))
	if ptype != llcpI {
		return nil, Wrap("llcp.sendInfo", KindPeerGone, errUnexpectedPDU)
	}
	l.ns++
	l.nr = rx[2]>>4 + 1
	return rx[3:], nil
}

// recvInfo blocks for one inbound I-frame and acknowledges it,
// returning its payload. Used by the SNEP default server's accept loop.
func (l *llcpLink) recvInfo(ctx context.Context) ([]byte, error) {
	rx, err := l.x.exchange(ctx, nil)
	if err != nil {
		return nil, Wrap("llcp.recvInfo", KindPeerGone, err)
	}
	if len(rx) < 3 {
		return nil, Wrap("llcp.recvInfo", KindPeerGone, errShortFrame)
	}
	_, ptype, _ := unpackLLCPHeader(binary.BigEndian.Uint16(rx))
	if ptype != llcpI {
		return nil, Wrap("llcp.recvInfo", KindPeerGone, errUnexpectedPDU)
	}
	l.nr = rx[2]>>4 + 1

	ack := make([]byte, 3)
	binary.BigEndian.PutUint16(ack, packLLCPHeader(l.peerSAP, llcpI, l.localSAP))
	ack[2] = l.ns<<4 | l.nr
	l.ns++
	if _, err := l.x.exchange(ctx, ack); err != nil {
		return nil, Wrap("llcp.recvInfo", KindPeerGone, err)
	}
	return rx[3:], nil
}

func (l *llcpLink) disconnect(ctx context.Context) {
	frame := make([]byte, 2)
	binary.BigEndian.PutUint16(frame, packLLCPHeader(l.peerSAP, llcpDISC, l.localSAP))
	l.x.exchange(ctx, frame) //nolint:errcheck // best-effort teardown
}

// SNEP request/response constants (spec §4.4, NFC Forum SNEP 1.0).
const (
	snepVersion = 0x10
	snepGet     = 0x01
	snepPut     = 0x02

	snepSuccess  = 0x81
	snepNotFound = 0xC0
	snepReject   = 0xFF
)

func encodeSnepPut(payload []byte) []byte {
	out := make([]byte, 6, len(payload)+6)
	out[0] = snepVersion
	out[1] = snepPut
	binary.BigEndian.PutUint32(out[2:6], uint32(len(payload)))
	return append(out, payload...)
}

func decodeSnepRequest(frame []byte, maxPut int) (op byte, payload []byte, err error) {
	if len(frame) < 6 {
		return 0, nil, errShortFrame
	}
	op = frame[1]
	length := int(binary.BigEndian.Uint32(frame[2:6]))
	if op == snepPut && length > maxPut {
		return op, nil, errPutTooLarge
	}
	if len(frame) < 6+length {
		return 0, nil, errShortFrame
	}
	return op, frame[6 : 6+length], nil
}

func encodeSnepResponse(status byte) []byte {
	out := make([]byte, 6)
	out[0] = snepVersion
	out[1] = status
	return out
}
