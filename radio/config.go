package radio

// Mode is the polling mode requested by StartPoll: which combination of
// reader (initiator) and peer (target) roles the discovery loop cycles
// through.
type Mode int

const (
	ModeInitiator Mode = iota
	ModeTarget
	ModeDual
)

// Role is the side of an NFC-DEP link this device plays, independent of
// Mode (a Dual poll that gets activated by a peer ends up in TargetRole
// even though Mode stayed Dual).
type Role int

const (
	RoleIdle Role = iota
	RoleInitiator
	RoleTarget
)

// Listen parameters advertised while in target/listen mode, taken
// verbatim from the source HAL's configuration (spec §6).
var (
	SensRes  = [2]byte{0x04, 0x00}
	NFCID1   = [3]byte{0xA1, 0xA2, 0xA3}
	SelRes   = byte(0x40)
	NFCID3   = byte(0xFA)
	FelicaPollRes = [18]byte{
		0x01, 0xFE, 0xB2, 0xB3, 0xB4, 0xB5, 0xB6, 0xB7,
		0xC0, 0xC1, 0xC2, 0xC3, 0xC4, 0xC5, 0xC6, 0xC7,
		0x23, 0x45,
	}
)

// SnepMaxPutSize is the ceiling a SNEP default server accepts a PUT
// payload up to (spec §4.4: "≈1 KiB here").
const SnepMaxPutSize = 1024
