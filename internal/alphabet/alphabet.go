// Package alphabet defines the fixed, process-wide bijection between byte
// values 0..255 and 256 printable, non-whitespace Unicode codepoints. This
// is the GPT-2 byte-level BPE alphabet: it must match it exactly, since the
// vocabulary and merge tables that the tokenizer loads were built over it.
package alphabet

// ByteToRune maps each byte value to its codepoint. Bytes in the printable
// ASCII/Latin-1 ranges map to themselves; the remaining 68 control, format,
// and separator bytes are relocated to sequential codepoints starting at
// U+0100, in ascending byte order.
var ByteToRune [256]rune

// RuneToByte is the exact inverse of ByteToRune.
var RuneToByte map[rune]byte

func init() {
	RuneToByte = make(map[rune]byte, 256)
	next := rune(0x100)
	for b := 0; b < 256; b++ {
		r := rune(b)
		if isVisible(byte(b)) {
			// self-mapped
		} else {
			r = next
			next++
		}
		ByteToRune[b] = r
		RuneToByte[r] = byte(b)
	}
}

// isVisible reports whether byte b falls in one of the three ranges that
// map to themselves: 0x21..0x7E, 0xA1..0xAC, 0xAE..0xFF.
func isVisible(b byte) bool {
	switch {
	case b >= 0x21 && b <= 0x7E:
		return true
	case b >= 0xA1 && b <= 0xAC:
		return true
	case b >= 0xAE:
		return true
	default:
		return false
	}
}

// Encode maps a byte sequence to a string of one codepoint per byte.
func Encode(data []byte) string {
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = ByteToRune[b]
	}
	return string(runes)
}

// Decode maps a string produced by Encode (or any concatenation of pieces
// over this alphabet) back to the original bytes.
func Decode(s string) []byte {
	runes := []rune(s)
	out := make([]byte, len(runes))
	for i, r := range runes {
		out[i] = RuneToByte[r]
	}
	return out
}
