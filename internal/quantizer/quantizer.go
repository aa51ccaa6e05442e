// Package quantizer turns a model's probability vector into the ascending
// cumulative count table that the arithmetic coder needs. The quantization
// is floor-based and runs index 0..V-1 in a fixed order so that, given
// 32-bit float inputs, two implementations produce bit-identical tables.
package quantizer

const (
	// Scale is the fixed-point precision used for quantized counts.
	Scale = 1 << 16
	// MinCount is the minimum count assigned to any symbol, guaranteeing
	// every symbol occupies a non-empty range and the coder always makes
	// progress.
	MinCount = 1
)

// Table is an ascending cumulative count table over V symbols: symbol i
// occupies the half-open range [Cum[i], Cum[i+1]). Cum has V+1 entries,
// Cum[0] == 0, and Cum[V] == Total.
type Table struct {
	Cum   []uint32
	Total uint32
}

// Build quantizes probs (length V, float32 for cross-platform bit
// exactness) into a Table. Every symbol receives a count of at least
// MinCount, so Total <= V*Scale, which always fits in a uint32 for the
// vocabulary sizes this format targets.
func Build(probs []float32) Table {
	v := len(probs)
	cum := make([]uint32, v+1)
	var total uint64
	for i := 0; i < v; i++ {
		c := uint64(probs[i] * Scale)
		if c < MinCount {
			c = MinCount
		}
		total += c
		cum[i+1] = uint32(total)
	}
	return Table{Cum: cum, Total: uint32(total)}
}

// Range returns the half-open count range [lo, hi) assigned to symbol s.
func (t Table) Range(s int) (lo, hi uint32) {
	return t.Cum[s], t.Cum[s+1]
}

// Find returns the unique symbol s such that Cum[s] <= target < Cum[s+1],
// via binary search over the invariant "largest s with Cum[s] <= target".
func (t Table) Find(target uint32) int {
	lo, hi := 0, len(t.Cum)-2 // symbols are 0..V-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if t.Cum[mid] <= target {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}
