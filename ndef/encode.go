package ndef

import "encoding/binary"

// Encode synthesizes a raw NDEF message from an ordered list of records.
// A record that fails Validate is emitted as an Empty record in its slot
// rather than being dropped, so the slot count of the output matches the
// input (see spec's synthesis failure policy).
func Encode(records []Record) []byte {
	if len(records) == 0 {
		return nil
	}
	var out []byte
	for i, r := range records {
		tnf, typ, payload, ok := encodeOne(r)
		if !ok {
			tnf, typ, payload = TNFEmpty, "", nil
		}
		out = append(out, assemblePhysical(tnf, typ, payload, i == 0, i == len(records)-1)...)
	}
	return out
}

func assemblePhysical(tnf TNF, typ string, payload []byte, mb, me bool) []byte {
	header := byte(tnf)
	if mb {
		header |= headerMB
	}
	if me {
		header |= headerME
	}
	sr := len(payload) <= 255
	if sr {
		header |= headerSR
	}

	out := make([]byte, 0, len(payload)+len(typ)+6)
	out = append(out, header, byte(len(typ)))
	if sr {
		out = append(out, byte(len(payload)))
	} else {
		var lb [4]byte
		binary.BigEndian.PutUint32(lb[:], uint32(len(payload)))
		out = append(out, lb[:]...)
	}
	out = append(out, []byte(typ)...)
	out = append(out, payload...)
	return out
}

// encodeOne returns the TNF/type/payload triple for a single record, or
// ok=false if the record is invalid or (for the handover variants)
// declared but not generated.
func encodeOne(r Record) (tnf TNF, typ string, payload []byte, ok bool) {
	if !r.Validate() {
		return 0, "", nil, false
	}
	switch r.Type {
	case TypeText:
		return TNFWellKnown, rtdText, encodeTextPayload(r), true
	case TypeURI:
		code, tail := abbreviateURI(r.URI)
		payload := append([]byte{code}, []byte(tail)...)
		return TNFWellKnown, rtdURI, payload, true
	case TypeMime:
		return TNFMedia, r.MimeType, r.MimePayload, true
	case TypeAAR:
		return TNFExternal, rtdAAR, []byte(r.AndroidPackage), true
	case TypeSmartPoster:
		return TNFWellKnown, rtdSmartPoster, encodeSmartPosterPayload(r), true
	case typeSPLocalAction:
		return TNFWellKnown, rtdSPAction, []byte{byte(r.Action)}, true
	case typeSPLocalSize:
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], r.Size)
		return TNFWellKnown, rtdSPSize, b[:], true
	case typeSPLocalType:
		return TNFWellKnown, rtdSPType, []byte(r.MimeType), true
	case TypeHandoverRequest, TypeHandoverSelect, TypeHandoverCarrier:
		// Declared in the variant set but produces no payload; see
		// DESIGN.md Open Question #4.
		return 0, "", nil, false
	default:
		return 0, "", nil, false
	}
}

func encodeTextPayload(r Record) []byte {
	lang := r.Language
	if len(lang) > 0x3F {
		lang = lang[:0x3F]
	}
	status := byte(len(lang))
	var text []byte
	if r.Encoding == EncodingUTF16 {
		status |= 0x80
		text = encodeUTF16(r.Representation)
	} else {
		text = []byte(r.Representation)
	}
	payload := make([]byte, 0, 1+len(lang)+len(text))
	payload = append(payload, status)
	payload = append(payload, []byte(lang)...)
	payload = append(payload, text...)
	return payload
}

// encodeSmartPosterPayload builds the inner NDEF message carried as the
// Smart Poster's payload: Uri always present, Text/Action/Size/Type when
// set on the outer record.
func encodeSmartPosterPayload(r Record) []byte {
	children := []Record{{Type: TypeURI, URI: r.URI}}
	if r.Representation != "" {
		children = append(children, Record{
			Type:           TypeText,
			Language:       r.Language,
			Representation: r.Representation,
			Encoding:       r.Encoding,
		})
	}
	if r.HasAction {
		children = append(children, Record{Type: typeSPLocalAction, Action: r.Action, HasAction: true})
	}
	if r.HasSize {
		children = append(children, Record{Type: typeSPLocalSize, Size: r.Size, HasSize: true})
	}
	if r.MimeType != "" {
		children = append(children, Record{Type: typeSPLocalType, MimeType: r.MimeType})
	}
	return Encode(children)
}
