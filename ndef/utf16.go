package ndef

import "unicode/utf16"

// decodeUTF16 decodes big-endian UTF-16 text as used by NDEF Text
// records (status byte bit7 set). A trailing odd byte is dropped.
func decodeUTF16(b []byte) string {
	n := len(b) / 2
	units := make([]uint16, n)
	for i := 0; i < n; i++ {
		units[i] = uint16(b[i*2])<<8 | uint16(b[i*2+1])
	}
	return string(utf16.Decode(units))
}

// encodeUTF16 encodes text as big-endian UTF-16.
func encodeUTF16(s string) []byte {
	units := utf16.Encode([]rune(s))
	out := make([]byte, len(units)*2)
	for i, u := range units {
		out[i*2] = byte(u >> 8)
		out[i*2+1] = byte(u)
	}
	return out
}
