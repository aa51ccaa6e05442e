// Package coder implements a 32-bit renormalizing integer arithmetic coder
// in the classic Witten/Neal/Cleary "E1/E2/E3" style, generalized from a
// binary alphabet to the large (V ~ 50000) symbol alphabets that a neural
// language model's quantized cumulative table produces.
//
// Reference: Witten, Neal, Cleary, "Arithmetic Coding for Data Compression",
// CACM 30(6), 1987.
package coder

import (
	"github.com/fumin/llmc/internal/bitio"
	"github.com/fumin/llmc/internal/quantizer"
)

const (
	bits    = 32
	mask    = (uint64(1) << bits) - 1
	half    = uint64(1) << (bits - 1)
	quarter = uint64(1) << (bits - 2)
	threeQ  = 3 * quarter
)

// Encoder is a stateful arithmetic encoder writing to a bitio.Writer.
type Encoder struct {
	w       *bitio.Writer
	low     uint64
	high    uint64
	pending int
}

// NewEncoder returns an Encoder over a fresh interval, writing bits to w.
func NewEncoder(w *bitio.Writer) *Encoder {
	return &Encoder{w: w, low: 0, high: mask}
}

// emit writes bit b, followed by e.pending complementary bits, and clears
// the pending counter. This is the encoder's deferred-output mechanism for
// straddle (E3) renormalizations: once the MSB is resolved, all previously
// ambiguous bits resolve to the opposite of b.
func (e *Encoder) emit(b int) {
	e.w.WriteBit(b)
	comp := 1 - b
	for ; e.pending > 0; e.pending-- {
		e.w.WriteBit(comp)
	}
}

func (e *Encoder) renormalize() {
	for {
		switch {
		case e.high < half:
			e.emit(0)
		case e.low >= half:
			e.emit(1)
			e.low -= half
			e.high -= half
		case e.low >= quarter && e.high < threeQ:
			e.pending++
			e.low -= quarter
			e.high -= quarter
		default:
			return
		}
		e.low *= 2
		e.high = 2*e.high + 1
	}
}

// Encode narrows the current interval to the sub-range assigned to symbol s
// in table, then renormalizes, emitting any bits that have become certain.
func (e *Encoder) Encode(s int, table quantizer.Table) {
	cLo, cHi := table.Range(s)
	total := uint64(table.Total)
	rng := e.high - e.low + 1

	newLow := e.low + (rng*uint64(cLo))/total
	newHigh := e.low + (rng*uint64(cHi))/total - 1

	e.low = newLow
	e.high = newHigh
	e.renormalize()
}

// Finish flushes the final disambiguating bits and pads the underlying bit
// stream to a full byte. After Finish, the Encoder must not be reused.
func (e *Encoder) Finish() {
	e.pending++
	if e.low < quarter {
		e.emit(0)
	} else {
		e.emit(1)
	}
	e.w.Flush()
}

// Decoder is a stateful arithmetic decoder reading from a bitio.Reader.
type Decoder struct {
	r    *bitio.Reader
	low  uint64
	high uint64
	code uint64
}

// NewDecoder returns a Decoder over a fresh interval, priming its code
// register with the first 32 bits read from r.
func NewDecoder(r *bitio.Reader) *Decoder {
	d := &Decoder{r: r, low: 0, high: mask}
	d.code = uint64(r.ReadBits(bits))
	return d
}

func (d *Decoder) renormalize() {
	for {
		switch {
		case d.high < half:
			// fall through to shift
		case d.low >= half:
			d.low -= half
			d.high -= half
			d.code -= half
		case d.low >= quarter && d.high < threeQ:
			d.low -= quarter
			d.high -= quarter
			d.code -= quarter
		default:
			return
		}
		d.low *= 2
		d.high = 2*d.high + 1
		d.code = 2*d.code + uint64(d.r.ReadBit())
	}
}

// Decode locates and returns the symbol whose cumulative range contains the
// scaled code register, then narrows the interval and renormalizes exactly
// as Encode did for the matching symbol.
func (d *Decoder) Decode(table quantizer.Table) int {
	total := uint64(table.Total)
	rng := d.high - d.low + 1

	scaled := ((d.code-d.low+1)*total - 1) / rng
	s := table.Find(uint32(scaled))

	cLo, cHi := table.Range(s)
	newLow := d.low + (rng*uint64(cLo))/total
	newHigh := d.low + (rng*uint64(cHi))/total - 1

	d.low = newLow
	d.high = newHigh
	d.renormalize()
	return s
}
