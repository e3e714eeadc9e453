// Package llcp assembles the general bytes the NFC-DEP ATR exchange
// carries and derives which role (initiator or target) a peer session
// ends up in, orchestrating the radio.Driver's lower-level LLCP/SNEP
// primitives into one session lifecycle per spec §4.4.
package llcp

import "github.com/nfc-engine/nfcd/radio"

// LLCP magic number that must open every general-bytes payload (NFC
// Forum LLCP 1.4 §6.2.1).
var llcpMagic = [3]byte{0x46, 0x66, 0x6D}

const (
	tlvVersion = 0x01
	tlvMIUX    = 0x02
	tlvWKS     = 0x03
	tlvLTO     = 0x04
	tlvOPT     = 0x05
)

// BuildGeneralBytes assembles the TLV-encoded parameter block carried
// in the NFC-DEP ATR_REQ/ATR_RES general bytes field, advertising the
// version, well-known-service bitmap, link timeout and option byte the
// source's HAL fixed at build time (spec §6: "MIU index 0, WKS 0x11,
// LTO 100, OPT 0x02").
func BuildGeneralBytes() []byte {
	out := make([]byte, 0, 20)
	out = append(out, llcpMagic[:]...)
	out = append(out, tlvVersion, 1, 0x11) // version 1.1
	out = append(out, tlvWKS, 2, 0x00, 0x11)
	out = append(out, tlvLTO, 1, 100)
	out = append(out, tlvOPT, 1, 0x02)
	return out
}

// DeriveRole decides which NFC-DEP role an activation ends up in. A
// device discovered by passive polling (the engine initiated discovery)
// always activates as initiator; a device that activated us while we
// were listening always ends up as target, regardless of the polling
// Mode that was configured (spec §4.3/§4.4: "a Dual poll that gets
// activated by a peer ends up in TargetRole even though Mode stayed
// Dual").
func DeriveRole(tech radio.TechClass) radio.Role {
	if tech.DeviceIsInitiator() {
		return radio.RoleInitiator
	}
	return radio.RoleTarget
}
