package radio

// ISO14443ADiscovery is the anti-collision information observed for a
// Type A target during passive discovery, decoupled from any particular
// reader library's target struct so the classification below stays pure
// and testable without cgo.
type ISO14443ADiscovery struct {
	ATQA  [2]byte
	SAK   byte
	UID   []byte
}

// FelicaDiscovery is the anti-collision information observed for a
// Type F (FeliCa) target during passive discovery.
type FelicaDiscovery struct {
	IDm [8]byte
}

// felicaDevIDmPrefix is the two-byte IDm manufacture-code prefix this
// build's own FeliCa listen parameters answer with (radio.FelicaPollRes),
// and so the prefix an NFC-DEP Type F peer's poll response carries too
// (spec §4.3: "Type F IDm prefix 01 FE → NFC-DEP F; otherwise → Tag3").
var felicaDevIDmPrefix = [2]byte{FelicaPollRes[0], FelicaPollRes[1]}

// ClassifyISO14443A dispatches a Type A discovery to a tag or device
// technology class per the SAK bit layout (spec §4.3):
//
//   - bit 6 (0x20) set: the target supports ISO-DEP / NFC-DEP — either a
//     Type 4A tag or, if it also advertises the NFC-DEP protocol, a P2P
//     target. clausecker/nfc folds both under one ISO14443aTarget, so a
//     merged SEL_RES is resolved as a device (Open Question #1): when
//     bit 6 is set this returns DevNfcDepAInitiator, and callers that
//     already know a plain Type 4A APDU tag is in play (SAK without the
//     NFC-DEP bit 0x40) fall back to Tag4A themselves.
//   - bit 6 clear and UID indicates a MIFARE Ultralight/NTAG family
//     (7-byte UID, SAK 0x00): Tag2.
//   - anything else with bit 6 clear: Tag2 as the common case; true
//     MIFARE Classic detection happens one level up, once freefare has
//     had a chance to claim the UID (ClassicTag family isn't visible
//     from SAK alone across all vendors).
func ClassifyISO14443A(d ISO14443ADiscovery) TechClass {
	const iso14443_4Bit = 0x20
	if d.SAK&iso14443_4Bit != 0 {
		return DevNfcDepAInitiator
	}
	return Tag2
}

// ClassifyISO14443AAsTag4 overrides ClassifyISO14443A's device-leaning
// default for a target the caller already knows answered plain ISO-DEP
// (no NFC-DEP ATR) rather than activating as a peer.
func ClassifyISO14443AAsTag4() TechClass {
	return Tag4A
}

// ClassifyFelica dispatches a Type F discovery by the IDm manufacture
// code prefix (spec §4.3: "Type F IDm prefix 01 FE → NFC-DEP F;
// otherwise → Tag3"). A peer running this same build's listen
// parameters answers its poll with exactly that prefix
// (radio.FelicaPollRes[:2]), so any discovery carrying it is an
// NFC-DEP Type F device rather than a FeliCa memory tag. Jewel/Topaz
// tags are a distinct ISO14443A/Jewel-modulation discovery path
// (libnfc_driver.go's classifyTarget default case), not a FeliCa one,
// and are never produced here.
func ClassifyFelica(d FelicaDiscovery) TechClass {
	if d.IDm[0] == felicaDevIDmPrefix[0] && d.IDm[1] == felicaDevIDmPrefix[1] {
		return DevNfcDepFInitiator
	}
	return Tag3
}

// ClassifyActivatedByPeer is the one discovery outcome that isn't a
// passive poll result at all: the driver's listen/target-mode loop was
// selected by an external initiator (spec §4.3 "activated by peer").
// Dual-mode polling can end up here even though Mode stayed ModeDual,
// which is why Role tracks this independently of Mode.
func ClassifyActivatedByPeer(techF bool) (TechClass, Role) {
	if techF {
		return DevNfcDepFTarget, RoleTarget
	}
	return DevNfcDepATarget, RoleTarget
}
