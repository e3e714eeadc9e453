package engine

import "github.com/nfc-engine/nfcd/ndef"

// HandoverAgent is the one hook the engine exposes for Bluetooth/WiFi
// handover remoting: when a parsed record matches a registered agent,
// the engine offers it the record in addition to reporting it through
// the ordinary tag/device NDEF path. The engine
// itself never speaks any handover protocol; everything past Matches
// is the agent's concern.
type HandoverAgent interface {
	Matches(r ndef.Record) bool
	Offer(r ndef.Record)
}

func offerToAgent(agent HandoverAgent, records []ndef.Record) {
	if agent == nil {
		return
	}
	for _, r := range records {
		if agent.Matches(r) {
			agent.Offer(r)
		}
	}
}
