// Package ndef implements the NFC Data Exchange Format codec used by the
// tag and device stores: parsing a raw tag/SNEP byte buffer into typed
// records and synthesizing records back into bytes.
package ndef

// TNF is the 3-bit Type Name Format discriminator carried in an NDEF
// record header.
type TNF byte

const (
	TNFEmpty TNF = iota
	TNFWellKnown
	TNFMedia
	TNFAbsoluteURI
	TNFExternal
	TNFUnknown
	TNFUnchanged
)

// Encoding is the text encoding of a Text record's representation.
type Encoding int

const (
	EncodingUTF8 Encoding = iota
	EncodingUTF16
)

// Action is the Smart Poster "act" local record value.
type Action int

const (
	ActionDo Action = iota
	ActionSave
	ActionEdit
)

// Type identifies which payload variant a Record carries.
type Type int

const (
	TypeSmartPoster Type = iota
	TypeText
	TypeURI
	TypeHandoverRequest
	TypeHandoverSelect
	TypeHandoverCarrier
	TypeAAR
	TypeMime

	// Inner-only variants, produced only while parsing/composing the
	// payload of a Smart Poster. They never appear in a top-level
	// parsed record list.
	typeSPLocalAction
	typeSPLocalSize
	typeSPLocalType
)

// Record is the tagged union described by the NDEF data model: every
// variant shares one struct, with unused fields left at their zero
// value. Records are immutable after construction by Parse or by a
// caller assembling one directly.
type Record struct {
	Type Type

	Language       string
	Encoding       Encoding
	Representation string
	URI            string
	MimeType       string
	MimePayload    []byte
	Action         Action
	HasAction      bool
	Size           uint32
	HasSize        bool
	AndroidPackage string
}

// Validate reports whether the variant-specific required fields are
// present. Records that fail validation are encoded as an Empty record
// in their slot instead of being dropped from the output (see Encode).
func (r Record) Validate() bool {
	switch r.Type {
	case TypeURI:
		return r.URI != ""
	case TypeText:
		return r.Representation != "" && r.Language != ""
	case TypeSmartPoster:
		if r.URI == "" {
			return false
		}
		if r.Representation != "" && r.Language == "" {
			return false
		}
		return true
	case TypeMime:
		return r.MimeType != ""
	case TypeAAR:
		return r.AndroidPackage != ""
	case TypeHandoverRequest, TypeHandoverSelect, TypeHandoverCarrier:
		// Accepted in the type set but neither parsed nor generated
		// (see DESIGN.md Open Question #4); always "valid", though Encode
		// still emits them as Empty because they produce no payload.
		return true
	case typeSPLocalAction:
		return r.HasAction
	case typeSPLocalSize:
		return r.HasSize
	case typeSPLocalType:
		return r.MimeType != ""
	default:
		return false
	}
}
