package container

import "testing"

func TestPlainHeaderRoundTrip(t *testing.T) {
	h := PlainHeader{
		Version:            1,
		OriginalByteLength: 12345,
		TokenCount:         678,
		ModelHash:          0xDEADBEEF,
	}
	payload := []byte{1, 2, 3, 4, 5}
	combined := CombineHeaderAndPayload(h, payload)

	gotH, gotPayload, err := SplitHeaderAndPayload(combined)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if gotH != h {
		t.Fatalf("header mismatch: got %+v, want %+v", gotH, h)
	}
	if string(gotPayload) != string(payload) {
		t.Fatalf("payload mismatch: got %v, want %v", gotPayload, payload)
	}
}

func TestPlainHeaderSize(t *testing.T) {
	h := PlainHeader{Version: 1}
	if len(h.Marshal()) != PlainHeaderSize {
		t.Fatalf("marshaled size = %d, want %d", len(h.Marshal()), PlainHeaderSize)
	}
}

func TestChunkedHeaderRoundTrip(t *testing.T) {
	h := ChunkedHeader{
		Version:            1,
		OriginalByteLength: 1000,
		TotalTokenCount:    84,
		ModelHash:          0x12345678,
		ChunkSize:          64,
		OverlapSize:        8,
		Offsets:            []uint32{25 + 6*3, 0, 0},
		TokenCounts:        []uint16{30, 35, 35},
	}
	// Recompute the standard offsets: header(25+18) + payload lengths.
	headerSize := ChunkedHeaderBaseSize + 6*3
	h.Offsets = []uint32{uint32(headerSize), uint32(headerSize) + 75, uint32(headerSize) + 175}

	data := h.Marshal()
	got, err := ParseChunkedHeader(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.ChunkCount() != 3 {
		t.Fatalf("chunk count = %d, want 3", got.ChunkCount())
	}
	if got.OriginalByteLength != h.OriginalByteLength || got.TotalTokenCount != h.TotalTokenCount ||
		got.ModelHash != h.ModelHash || got.ChunkSize != h.ChunkSize || got.OverlapSize != h.OverlapSize {
		t.Fatalf("scalar field mismatch: got %+v", got)
	}
	for i := range h.Offsets {
		if got.Offsets[i] != h.Offsets[i] {
			t.Fatalf("offset %d mismatch: got %d, want %d", i, got.Offsets[i], h.Offsets[i])
		}
		if got.TokenCounts[i] != h.TokenCounts[i] {
			t.Fatalf("token count %d mismatch: got %d, want %d", i, got.TokenCounts[i], h.TokenCounts[i])
		}
	}
}

func TestIsChunkedDiscrimination(t *testing.T) {
	plain := PlainHeader{Version: 1}.Marshal()
	if IsChunked(plain) {
		t.Fatalf("plain header misidentified as chunked")
	}
	chunked := ChunkedHeader{Version: 1, Offsets: []uint32{ChunkedHeaderBaseSize}, TokenCounts: []uint16{5}}.Marshal()
	if !IsChunked(chunked) {
		t.Fatalf("chunked header not identified as chunked")
	}
	if IsChunked([]byte{0, 1}) {
		t.Fatalf("short buffer misidentified as chunked")
	}
}

func TestParseRejectsBadMagic(t *testing.T) {
	// Full header length, so the parsers reach the magic check rather than
	// rejecting the input as truncated.
	bad := make([]byte, PlainHeaderSize)
	if _, err := ParsePlainHeader(bad); err == nil {
		t.Fatal("expected error for bad magic")
	}
	if _, err := ParseChunkedHeader(bad); err == nil {
		t.Fatal("expected error for bad magic")
	}
}

func TestParseRejectsFutureVersion(t *testing.T) {
	h := PlainHeader{Version: Version + 1}
	if _, err := ParsePlainHeader(h.Marshal()); err == nil {
		t.Fatal("expected error for unsupported version")
	}
}

func TestBuildChunkedContainerAndPayloadSlicing(t *testing.T) {
	payloads := [][]byte{
		{1, 2, 3},
		{4, 5, 6, 7},
		{8},
	}
	h := ChunkedHeader{
		Version:            1,
		OriginalByteLength: 100,
		TotalTokenCount:    9,
		ModelHash:          7,
		ChunkSize:          5,
		OverlapSize:        2,
		TokenCounts:        []uint16{5, 7, 3},
	}
	data := BuildChunkedContainer(h, payloads)

	parsed, err := ParseChunkedHeader(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.ChunkCount() != 3 {
		t.Fatalf("chunk count = %d, want 3", parsed.ChunkCount())
	}
	if int(parsed.Offsets[0]) != parsed.HeaderSize() {
		t.Fatalf("first offset %d != header size %d", parsed.Offsets[0], parsed.HeaderSize())
	}
	for i, want := range payloads {
		got, err := ChunkPayload(data, parsed, i)
		if err != nil {
			t.Fatalf("chunk %d: %v", i, err)
		}
		if string(got) != string(want) {
			t.Fatalf("chunk %d payload = %v, want %v", i, got, want)
		}
	}
}

func TestChunkPayloadOutOfBounds(t *testing.T) {
	h := ChunkedHeader{Version: 1, TokenCounts: []uint16{1}, Offsets: []uint32{ChunkedHeaderBaseSize}}
	data := h.Marshal()
	if _, err := ChunkPayload(data, h, 5); err == nil {
		t.Fatal("expected out-of-range error")
	}
}
