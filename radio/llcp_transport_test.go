package radio

import (
	"context"
	"testing"
)

// loopbackExchanger hands the initiator's outbound frame straight to a
// target-side llcpLink's own header handling and returns its reply,
// letting the handshake and I-frame logic be exercised without a radio
// by running both sides synchronously in the same call.
type loopbackExchanger struct {
	target *llcpLink
}

func (l *loopbackExchanger) exchange(_ context.Context, tx []byte) ([]byte, error) {
	dsap, ptype, ssap := unpackLLCPHeader(uint16(tx[0])<<8 | uint16(tx[1]))
	switch ptype {
	case llcpCONNECT:
		l.target.peerSAP = ssap
		reply := make([]byte, 2)
		reply[0] = byte(packLLCPHeader(ssap, llcpCC, dsap) >> 8)
		reply[1] = byte(packLLCPHeader(ssap, llcpCC, dsap))
		return reply, nil
	case llcpI:
		// echo the I-frame back with an advanced N(R) so the initiator's
		// sendInfo sees a well-formed acknowledgement.
		reply := make([]byte, len(tx))
		copy(reply, tx)
		reply[2] = tx[2]&0xF0 | (tx[2]>>4+1)&0x0F
		return reply, nil
	}
	return nil, errUnexpectedPDU
}

func TestLLCPLinkConnectAsInitiator(t *testing.T) {
	target := newLLCPLink(nil)
	link := newLLCPLink(&loopbackExchanger{target: target})

	if err := link.connect(context.Background(), true); err != nil {
		t.Fatalf("connect: %v", err)
	}
}

func TestLLCPLinkSendInfoAdvancesSequence(t *testing.T) {
	target := newLLCPLink(nil)
	link := newLLCPLink(&loopbackExchanger{target: target})

	payload := encodeSnepPut([]byte("hi"))
	reply, err := link.sendInfo(context.Background(), payload)
	if err != nil {
		t.Fatalf("sendInfo: %v", err)
	}
	if string(reply) != string(payload) {
		t.Errorf("loopback reply mismatch")
	}
	if link.ns != 1 {
		t.Errorf("ns = %d, want 1", link.ns)
	}
}

func TestEncodeDecodeSnepPutRoundTrip(t *testing.T) {
	payload := []byte("hello")
	frame := encodeSnepPut(payload)

	op, got, err := decodeSnepRequest(frame, SnepMaxPutSize)
	if err != nil {
		t.Fatalf("decodeSnepRequest: %v", err)
	}
	if op != snepPut {
		t.Errorf("op = %x, want snepPut", op)
	}
	if string(got) != "hello" {
		t.Errorf("payload = %q, want hello", got)
	}
}

func TestDecodeSnepRequestRejectsOversizedPut(t *testing.T) {
	frame := encodeSnepPut(make([]byte, 16))
	if _, _, err := decodeSnepRequest(frame, 8); err != errPutTooLarge {
		t.Errorf("err = %v, want errPutTooLarge", err)
	}
}

func TestDecodeSnepRequestShortFrame(t *testing.T) {
	if _, _, err := decodeSnepRequest([]byte{0x10, 0x02}, SnepMaxPutSize); err != errShortFrame {
		t.Errorf("err = %v, want errShortFrame", err)
	}
}

func TestEncodeSnepResponseSuccess(t *testing.T) {
	resp := encodeSnepResponse(snepSuccess)
	if resp[0] != snepVersion || resp[1] != snepSuccess {
		t.Errorf("unexpected response header: %v", resp)
	}
}
