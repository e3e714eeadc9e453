package ndef

import "encoding/binary"

const (
	headerMB = 1 << 7
	headerME = 1 << 6
	headerCF = 1 << 5
	headerSR = 1 << 4
	headerIL = 1 << 3
	tnfMask  = 0x07
)

const (
	rtdSmartPoster = "Sp"
	rtdText        = "T"
	rtdURI         = "U"
	rtdSPAction    = "act"
	rtdSPSize      = "s"
	rtdSPType      = "t"
	rtdAAR         = "android.com:pkg"
)

// physicalRecord is one on-the-wire record before type-specific dispatch.
type physicalRecord struct {
	mb, me  bool
	tnf     TNF
	rtype   []byte
	id      []byte
	payload []byte
}

// Parse decodes a raw NDEF message into the ordered records it contains.
// Parsing stops at the first truncated or malformed record (including any
// chunked record, which this codec does not support) and returns whatever
// records were already accepted — it never returns an error, mirroring the
// "never abort the owning tag/device" failure policy.
func Parse(data []byte) []Record {
	return parseMessage(data, false)
}

func parseMessage(data []byte, innerMode bool) []Record {
	phys := splitPhysicalRecords(data)
	if len(phys) == 0 {
		return nil
	}

	var out []Record
	for i, p := range phys {
		if i == 0 && !p.mb {
			break
		}
		if i == len(phys)-1 && !p.me {
			break
		}
		rec := dispatch(p, innerMode)
		if rec == nil {
			continue
		}
		if rec.Type == TypeSmartPoster {
			inner := parseMessage(p.payload, true)
			*rec = assembleSmartPoster(inner)
			if rec.URI == "" {
				// A Smart Poster without a Uri child is dropped entirely.
				continue
			}
		}
		out = append(out, *rec)
	}
	return out
}

// splitPhysicalRecords walks the byte stream into header-delimited
// records, stopping (without error) at the first truncated or chunked
// record.
func splitPhysicalRecords(data []byte) []physicalRecord {
	var records []physicalRecord
	offset := 0
	for offset < len(data) {
		header := data[offset]
		if header&headerCF != 0 {
			break
		}
		pos := offset + 1
		if pos >= len(data) {
			break
		}
		typeLen := int(data[pos])
		pos++

		sr := header&headerSR != 0
		il := header&headerIL != 0

		var payloadLen int
		if sr {
			if pos >= len(data) {
				break
			}
			payloadLen = int(data[pos])
			pos++
		} else {
			if pos+4 > len(data) {
				break
			}
			payloadLen = int(binary.BigEndian.Uint32(data[pos : pos+4]))
			pos += 4
		}

		var idLen int
		if il {
			if pos >= len(data) {
				break
			}
			idLen = int(data[pos])
			pos++
		}

		if pos+typeLen > len(data) {
			break
		}
		rtype := append([]byte(nil), data[pos:pos+typeLen]...)
		pos += typeLen

		var id []byte
		if il && idLen > 0 {
			if pos+idLen > len(data) {
				break
			}
			id = append([]byte(nil), data[pos:pos+idLen]...)
			pos += idLen
		}

		if pos+payloadLen > len(data) {
			break
		}
		payload := append([]byte(nil), data[pos:pos+payloadLen]...)
		pos += payloadLen

		records = append(records, physicalRecord{
			mb:      header&headerMB != 0,
			me:      header&headerME != 0,
			tnf:     TNF(header & tnfMask),
			rtype:   rtype,
			id:      id,
			payload: payload,
		})
		offset = pos
	}
	return records
}

// dispatch classifies one physical record. "act"/"s"/"t" well-known types
// are only recognized when innerMode is set (i.e. while parsing the
// payload of a Smart Poster).
func dispatch(p physicalRecord, innerMode bool) *Record {
	switch p.tnf {
	case TNFWellKnown:
		switch string(p.rtype) {
		case rtdSmartPoster:
			return &Record{Type: TypeSmartPoster}
		case rtdText:
			return parseTextRecord(p.payload)
		case rtdURI:
			return parseURIRecord(p.payload)
		case rtdSPAction:
			if !innerMode {
				return nil
			}
			return parseSPLocalAction(p.payload)
		case rtdSPSize:
			if !innerMode {
				return nil
			}
			return parseSPLocalSize(p.payload)
		case rtdSPType:
			if !innerMode {
				return nil
			}
			return parseSPLocalType(p.payload)
		default:
			return nil
		}
	case TNFMedia:
		return &Record{Type: TypeMime, MimeType: string(p.rtype), MimePayload: p.payload}
	case TNFExternal:
		if string(p.rtype) == rtdAAR {
			return &Record{Type: TypeAAR, AndroidPackage: string(p.payload)}
		}
		return nil
	default:
		// Other TNFs (Empty, AbsoluteUri, Unknown, Unchanged) are
		// skipped without failing the message.
		return nil
	}
}

func parseTextRecord(payload []byte) *Record {
	if len(payload) < 1 {
		return nil
	}
	status := payload[0]
	isUTF16 := status&0x80 != 0
	langLen := int(status & 0x3F)
	if 1+langLen > len(payload) {
		return nil
	}
	lang := string(payload[1 : 1+langLen])
	text := payload[1+langLen:]
	enc := EncodingUTF8
	repr := string(text)
	if isUTF16 {
		enc = EncodingUTF16
		repr = decodeUTF16(text)
	}
	return &Record{Type: TypeText, Language: lang, Encoding: enc, Representation: repr}
}

func parseURIRecord(payload []byte) *Record {
	if len(payload) < 1 {
		return nil
	}
	uri := expandURI(payload[0], string(payload[1:]))
	return &Record{Type: TypeURI, URI: uri}
}

func parseSPLocalAction(payload []byte) *Record {
	if len(payload) < 1 {
		return nil
	}
	var a Action
	switch payload[0] {
	case 0:
		a = ActionDo
	case 1:
		a = ActionSave
	case 2:
		a = ActionEdit
	default:
		return nil
	}
	return &Record{Type: typeSPLocalAction, Action: a, HasAction: true}
}

func parseSPLocalSize(payload []byte) *Record {
	if len(payload) != 4 {
		return nil
	}
	return &Record{Type: typeSPLocalSize, Size: binary.BigEndian.Uint32(payload), HasSize: true}
}

func parseSPLocalType(payload []byte) *Record {
	return &Record{Type: typeSPLocalType, MimeType: string(payload)}
}

// assembleSmartPoster aggregates the first occurrence of each recognized
// child record type into an outer Smart Poster record, per DESIGN.md
// Open Question #2.
func assembleSmartPoster(children []Record) Record {
	out := Record{Type: TypeSmartPoster}
	var gotURI, gotText, gotAction, gotSize, gotType bool
	for _, c := range children {
		switch c.Type {
		case TypeURI:
			if !gotURI {
				out.URI = c.URI
				gotURI = true
			}
		case TypeText:
			if !gotText {
				out.Language = c.Language
				out.Representation = c.Representation
				out.Encoding = c.Encoding
				gotText = true
			}
		case typeSPLocalAction:
			if !gotAction {
				out.Action = c.Action
				out.HasAction = true
				gotAction = true
			}
		case typeSPLocalSize:
			if !gotSize {
				out.Size = c.Size
				out.HasSize = true
				gotSize = true
			}
		case typeSPLocalType:
			if !gotType {
				out.MimeType = c.MimeType
				gotType = true
			}
		}
	}
	return out
}
