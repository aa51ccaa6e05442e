package coder

import (
	"math/rand"
	"testing"

	"github.com/fumin/llmc/internal/bitio"
	"github.com/fumin/llmc/internal/quantizer"
)

func TestRoundTripFixedDistribution(t *testing.T) {
	probs := []float32{0.25, 0.25, 0.25, 0.25}
	table := quantizer.Build(probs)
	symbols := []int{0, 1, 2, 3, 0, 1}

	w := bitio.NewWriter()
	enc := NewEncoder(w)
	for _, s := range symbols {
		enc.Encode(s, table)
	}
	enc.Finish()

	r := bitio.NewReader(w.Bytes())
	dec := NewDecoder(r)
	for i, want := range symbols {
		if got := dec.Decode(table); got != want {
			t.Fatalf("symbol %d: got %d, want %d", i, got, want)
		}
	}
}

func TestRoundTripVaryingDistributions(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	const n = 500
	const v = 37

	symbols := make([]int, n)
	tables := make([]quantizer.Table, n)
	for i := 0; i < n; i++ {
		probs := make([]float32, v)
		var sum float32
		for j := range probs {
			probs[j] = rng.Float32() + 0.001
			sum += probs[j]
		}
		for j := range probs {
			probs[j] /= sum
		}
		tables[i] = quantizer.Build(probs)
		symbols[i] = rng.Intn(v)
	}

	w := bitio.NewWriter()
	enc := NewEncoder(w)
	for i, s := range symbols {
		enc.Encode(s, tables[i])
	}
	enc.Finish()

	r := bitio.NewReader(w.Bytes())
	dec := NewDecoder(r)
	for i, want := range symbols {
		if got := dec.Decode(tables[i]); got != want {
			t.Fatalf("symbol %d: got %d, want %d", i, got, want)
		}
	}
}

func TestEntropyApproach(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	probs := []float32{0.5, 0.25, 0.125, 0.125}
	table := quantizer.Build(probs)

	cumProb := []float64{0.5, 0.75, 0.875, 1.0}
	const n = 4000
	symbols := make([]int, n)
	for i := range symbols {
		x := rng.Float64()
		for s, c := range cumProb {
			if x < c {
				symbols[i] = s
				break
			}
		}
	}

	w := bitio.NewWriter()
	enc := NewEncoder(w)
	for _, s := range symbols {
		enc.Encode(s, table)
	}
	enc.Finish()

	bitsUsed := float64(len(w.Bytes()) * 8)
	// H = -sum p*log2(p) = 1.75 bits/symbol for this distribution.
	wantBitsPerSymbol := 1.75
	gotBitsPerSymbol := bitsUsed / n
	if gotBitsPerSymbol > wantBitsPerSymbol*1.10 {
		t.Fatalf("coder far from entropy: got %.4f bits/symbol, want <= %.4f", gotBitsPerSymbol, wantBitsPerSymbol*1.10)
	}
}

func TestSingleSymbolSequence(t *testing.T) {
	probs := []float32{0.01, 0.01, 0.98}
	table := quantizer.Build(probs)

	w := bitio.NewWriter()
	enc := NewEncoder(w)
	enc.Encode(2, table)
	enc.Finish()

	r := bitio.NewReader(w.Bytes())
	dec := NewDecoder(r)
	if got := dec.Decode(table); got != 2 {
		t.Fatalf("got %d, want 2", got)
	}
}
