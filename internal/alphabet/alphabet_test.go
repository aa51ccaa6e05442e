package alphabet

import "testing"

func TestBijection(t *testing.T) {
	seen := make(map[rune]int)
	for b := 0; b < 256; b++ {
		r := ByteToRune[b]
		if other, ok := seen[r]; ok {
			t.Fatalf("byte %d and %d both map to rune %d", b, other, r)
		}
		seen[r] = b
		if RuneToByte[r] != byte(b) {
			t.Fatalf("inverse mismatch for byte %d: got %d", b, RuneToByte[r])
		}
	}
	if len(seen) != 256 {
		t.Fatalf("expected 256 distinct runes, got %d", len(seen))
	}
}

func TestSelfMappedRanges(t *testing.T) {
	for _, b := range []byte{0x21, 0x7E, 0xA1, 0xAC, 0xAE, 0xFF} {
		if ByteToRune[b] != rune(b) {
			t.Fatalf("byte 0x%X should self-map, got %d", b, ByteToRune[b])
		}
	}
}

func TestRelocatedRanges(t *testing.T) {
	for _, b := range []byte{0x00, 0x20, 0x7F, 0xA0, 0xAD} {
		if ByteToRune[b] == rune(b) {
			t.Fatalf("byte 0x%X should be relocated, stayed at %d", b, ByteToRune[b])
		}
		if ByteToRune[b] < 0x100 {
			t.Fatalf("relocated byte 0x%X mapped below U+0100: %d", b, ByteToRune[b])
		}
	}
}

func TestRoundTripAllBytes(t *testing.T) {
	data := make([]byte, 256)
	for i := range data {
		data[i] = byte(i)
	}
	s := Encode(data)
	got := Decode(s)
	if len(got) != len(data) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(data))
	}
	for i := range data {
		if got[i] != data[i] {
			t.Fatalf("byte %d: got %d, want %d", i, got[i], data[i])
		}
	}
}
