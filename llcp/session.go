package llcp

import (
	"context"
	"log"

	"github.com/nfc-engine/nfcd/radio"
)

// Session is one activated NFC-DEP link's LLCP/SNEP lifecycle: bring
// the link up with the right role, run a default SNEP server loop that
// stores whatever the peer PUTs, and offer an outbound SNEP client send
// for messages the engine wants to push (spec §4.4).
type Session struct {
	drv  radio.Driver
	tech radio.TechClass
	role radio.Role
}

// Activate exchanges the ATR and brings LLCP up for a freshly
// discovered device. For an initiator-role device it drives the ATR
// exchange itself; for a target-role device the ATR_RES already went
// out during discovery's listen window, so only LLCP bring-up remains.
func Activate(drv radio.Driver, tech radio.TechClass) (*Session, error) {
	role := DeriveRole(tech)
	gb := BuildGeneralBytes()

	if role == radio.RoleInitiator {
		if _, err := drv.ActivateNfcDepInitiator(gb); err != nil {
			return nil, err
		}
	}

	if err := drv.LLCPInit(); err != nil {
		return nil, err
	}
	if err := drv.LLCPActivate(gb, role); err != nil {
		return nil, err
	}

	return &Session{drv: drv, tech: tech, role: role}, nil
}

// Close tears the LLCP link down.
func (s *Session) Close() error {
	return s.drv.LLCPDeactivate()
}

// ReceivedNdef is sent on this channel by RunServer each time the
// default SNEP server accepts a PUT.
type ReceivedNdef struct {
	Payload []byte
}

// RunServer runs the default SNEP server's accept loop until ctx is
// canceled or the link drops, delivering each accepted PUT's payload.
// This mirrors the source HAL's snep_server_listen/deinit pairing
// (spec §4.4, §6).
func (s *Session) RunServer(ctx context.Context, out chan<- ReceivedNdef) error {
	if err := s.drv.SnepServerInit(); err != nil {
		return err
	}
	defer s.drv.SnepServerDeinit()

	for {
		payload, err := s.drv.SnepServerListen(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case out <- ReceivedNdef{Payload: payload}:
		case <-ctx.Done():
			return nil
		}
	}
}

// Push sends one NDEF message to the peer as a SNEP PUT, blocking until
// the peer accepts it, ctx is canceled, or the link drops.
func (s *Session) Push(ctx context.Context, ndef []byte) error {
	if err := s.drv.SnepClientInit(); err != nil {
		return err
	}
	defer func() {
		if err := s.drv.SnepClientDeinit(); err != nil {
			log.Printf("llcp: SnepClientDeinit: %v", err)
		}
	}()
	return s.drv.SnepClientSend(ctx, ndef)
}
