// Package container implements the on-disk framing for compressed output:
// a plain single-payload format and a chunked format whose offset table
// lets decompression be parallelized across chunks.
package container

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Format version. Decoders reject any version greater than this.
const Version = 1

// Magic numbers discriminating the two container variants.
var (
	MagicPlain   = [4]byte{0x4C, 0x4C, 0x4D, 0x43} // "LLMC"
	MagicChunked = [4]byte{0x4C, 0x4C, 0x4D, 0x50} // "LLMP"
)

const (
	// PlainHeaderSize is the fixed size in bytes of the plain container
	// header.
	PlainHeaderSize = 25
	// ChunkedHeaderBaseSize is the size of the chunked header before its
	// per-chunk offset and token-count tables.
	ChunkedHeaderBaseSize = 25
)

// ErrFormat reports a malformed or unrecognized container.
var ErrFormat = errors.New("container: format error")

// IsChunked reports whether data begins with the chunked magic. It does
// not validate the rest of the header.
func IsChunked(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	return data[0] == MagicChunked[0] && data[1] == MagicChunked[1] &&
		data[2] == MagicChunked[2] && data[3] == MagicChunked[3]
}

// PlainHeader is the 25-byte header preceding a single coded payload.
type PlainHeader struct {
	Version            uint8
	OriginalByteLength uint32
	TokenCount         uint32
	ModelHash          uint32
}

// Marshal serializes h into the fixed 25-byte plain header layout.
func (h PlainHeader) Marshal() []byte {
	buf := make([]byte, PlainHeaderSize)
	copy(buf[0:4], MagicPlain[:])
	buf[4] = h.Version
	binary.LittleEndian.PutUint32(buf[5:9], h.OriginalByteLength)
	binary.LittleEndian.PutUint32(buf[9:13], h.TokenCount)
	binary.LittleEndian.PutUint32(buf[13:17], h.ModelHash)
	// 8 reserved bytes, left zeroed.
	return buf
}

// ParsePlainHeader validates the magic and version and decodes the
// remaining fields.
func ParsePlainHeader(data []byte) (PlainHeader, error) {
	if len(data) < PlainHeaderSize {
		return PlainHeader{}, errors.Wrap(ErrFormat, "truncated plain header")
	}
	if data[0] != MagicPlain[0] || data[1] != MagicPlain[1] ||
		data[2] != MagicPlain[2] || data[3] != MagicPlain[3] {
		return PlainHeader{}, errors.Wrap(ErrFormat, "bad magic for plain container")
	}
	h := PlainHeader{
		Version:            data[4],
		OriginalByteLength: binary.LittleEndian.Uint32(data[5:9]),
		TokenCount:         binary.LittleEndian.Uint32(data[9:13]),
		ModelHash:          binary.LittleEndian.Uint32(data[13:17]),
	}
	if h.Version > Version {
		return PlainHeader{}, errors.Wrapf(ErrFormat, "unsupported version %d", h.Version)
	}
	return h, nil
}

// CombineHeaderAndPayload concatenates a marshaled plain header and its
// payload into one container.
func CombineHeaderAndPayload(h PlainHeader, payload []byte) []byte {
	buf := make([]byte, 0, PlainHeaderSize+len(payload))
	buf = append(buf, h.Marshal()...)
	buf = append(buf, payload...)
	return buf
}

// SplitHeaderAndPayload parses the leading plain header from data and
// returns it alongside the remaining payload bytes.
func SplitHeaderAndPayload(data []byte) (PlainHeader, []byte, error) {
	h, err := ParsePlainHeader(data)
	if err != nil {
		return PlainHeader{}, nil, err
	}
	return h, data[PlainHeaderSize:], nil
}

// ChunkedHeader is the header preceding the per-chunk offset/length tables
// and the concatenated chunk payloads.
type ChunkedHeader struct {
	Version            uint8
	OriginalByteLength uint32
	TotalTokenCount    uint32 // reconstructed token count, overlap excluded
	ModelHash          uint32
	ChunkSize          uint16 // configured chunk size
	OverlapSize        uint16
	Offsets            []uint32 // absolute byte offset of each chunk's payload
	TokenCounts        []uint16 // on-wire token count per chunk, overlap included
}

// ChunkCount returns the number of chunks K.
func (h ChunkedHeader) ChunkCount() int {
	return len(h.Offsets)
}

// HeaderSize returns the total size in bytes of the base header plus the
// offset and token-count tables: 25 + 6*K.
func (h ChunkedHeader) HeaderSize() int {
	return ChunkedHeaderBaseSize + 6*h.ChunkCount()
}

// Marshal serializes h, including its offset and token-count tables.
func (h ChunkedHeader) Marshal() []byte {
	k := h.ChunkCount()
	buf := make([]byte, h.HeaderSize())
	copy(buf[0:4], MagicChunked[:])
	buf[4] = h.Version
	binary.LittleEndian.PutUint32(buf[5:9], h.OriginalByteLength)
	binary.LittleEndian.PutUint32(buf[9:13], h.TotalTokenCount)
	binary.LittleEndian.PutUint32(buf[13:17], h.ModelHash)
	binary.LittleEndian.PutUint16(buf[17:19], uint16(k))
	binary.LittleEndian.PutUint16(buf[19:21], h.ChunkSize)
	binary.LittleEndian.PutUint16(buf[21:23], h.OverlapSize)
	// buf[23:25] reserved, left zeroed.

	off := ChunkedHeaderBaseSize
	for i := 0; i < k; i++ {
		binary.LittleEndian.PutUint32(buf[off:off+4], h.Offsets[i])
		off += 4
	}
	for i := 0; i < k; i++ {
		binary.LittleEndian.PutUint16(buf[off:off+2], h.TokenCounts[i])
		off += 2
	}
	return buf
}

// ParseChunkedHeader validates the magic, version, and chunk table bounds,
// and decodes the full header including its offset/token-count arrays.
func ParseChunkedHeader(data []byte) (ChunkedHeader, error) {
	if len(data) < ChunkedHeaderBaseSize {
		return ChunkedHeader{}, errors.Wrap(ErrFormat, "truncated chunked header")
	}
	if data[0] != MagicChunked[0] || data[1] != MagicChunked[1] ||
		data[2] != MagicChunked[2] || data[3] != MagicChunked[3] {
		return ChunkedHeader{}, errors.Wrap(ErrFormat, "bad magic for chunked container")
	}
	h := ChunkedHeader{
		Version:            data[4],
		OriginalByteLength: binary.LittleEndian.Uint32(data[5:9]),
		TotalTokenCount:    binary.LittleEndian.Uint32(data[9:13]),
		ModelHash:          binary.LittleEndian.Uint32(data[13:17]),
	}
	if h.Version > Version {
		return ChunkedHeader{}, errors.Wrapf(ErrFormat, "unsupported version %d", h.Version)
	}
	k := int(binary.LittleEndian.Uint16(data[17:19]))
	h.ChunkSize = binary.LittleEndian.Uint16(data[19:21])
	h.OverlapSize = binary.LittleEndian.Uint16(data[21:23])

	tableSize := 6 * k
	if len(data) < ChunkedHeaderBaseSize+tableSize {
		return ChunkedHeader{}, errors.Wrap(ErrFormat, "truncated chunk table")
	}

	h.Offsets = make([]uint32, k)
	h.TokenCounts = make([]uint16, k)
	off := ChunkedHeaderBaseSize
	for i := 0; i < k; i++ {
		h.Offsets[i] = binary.LittleEndian.Uint32(data[off : off+4])
		off += 4
	}
	for i := 0; i < k; i++ {
		h.TokenCounts[i] = binary.LittleEndian.Uint16(data[off : off+2])
		off += 2
	}

	for i := 1; i < k; i++ {
		if h.Offsets[i] <= h.Offsets[i-1] {
			return ChunkedHeader{}, errors.Wrap(ErrFormat, "chunk offsets not strictly increasing")
		}
	}
	if k > 0 && int(h.Offsets[0]) != h.HeaderSize() {
		return ChunkedHeader{}, errors.Wrap(ErrFormat, "first chunk offset does not match header size")
	}
	return h, nil
}

// ChunkPayload returns the payload slice of chunk i within the full
// container bytes, or an error if the offset is out of bounds.
func ChunkPayload(data []byte, h ChunkedHeader, i int) ([]byte, error) {
	k := h.ChunkCount()
	if i < 0 || i >= k {
		return nil, errors.Wrapf(ErrFormat, "chunk index %d out of range [0,%d)", i, k)
	}
	start := int(h.Offsets[i])
	var end int
	if i+1 < k {
		end = int(h.Offsets[i+1])
	} else {
		end = len(data)
	}
	if start < 0 || end > len(data) || start > end {
		return nil, errors.Wrapf(ErrFormat, "chunk %d offset out of bounds", i)
	}
	return data[start:end], nil
}

// BuildChunkedContainer assembles a full chunked container from its header
// fields (minus offsets, which are computed from payload lengths) and the
// ordered chunk payloads.
func BuildChunkedContainer(h ChunkedHeader, payloads [][]byte) []byte {
	k := len(payloads)
	offsets := make([]uint32, k)
	headerSize := ChunkedHeaderBaseSize + 6*k
	pos := headerSize
	for i, p := range payloads {
		offsets[i] = uint32(pos)
		pos += len(p)
	}
	h.Offsets = offsets

	buf := make([]byte, 0, pos)
	buf = append(buf, h.Marshal()...)
	for _, p := range payloads {
		buf = append(buf, p...)
	}
	return buf
}
