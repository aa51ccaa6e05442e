package quantizer

import (
	"math/rand"
	"testing"
)

func TestBuildMonotonicAndBounded(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	const v = 1000
	probs := make([]float32, v)
	var sum float32
	for i := range probs {
		probs[i] = rng.Float32()
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}

	table := Build(probs)
	if len(table.Cum) != v+1 {
		t.Fatalf("len(Cum) = %d, want %d", len(table.Cum), v+1)
	}
	if table.Cum[0] != 0 {
		t.Fatalf("Cum[0] = %d, want 0", table.Cum[0])
	}
	for i := 0; i < v; i++ {
		if table.Cum[i+1] <= table.Cum[i] {
			t.Fatalf("Cum not strictly increasing at %d: %d <= %d", i, table.Cum[i+1], table.Cum[i])
		}
	}
	if table.Total != table.Cum[v] {
		t.Fatalf("Total = %d, want %d", table.Total, table.Cum[v])
	}
	if uint64(table.Total) > uint64(v)*Scale {
		t.Fatalf("Total = %d exceeds V*Scale = %d", table.Total, v*Scale)
	}
}

func TestBuildZeroProbabilityGetsMinCount(t *testing.T) {
	probs := []float32{0, 0.5, 0.5}
	table := Build(probs)
	lo, hi := table.Range(0)
	if hi-lo < MinCount {
		t.Fatalf("symbol with zero probability has empty range: [%d,%d)", lo, hi)
	}
}

func TestFindMatchesRange(t *testing.T) {
	probs := []float32{0.1, 0.2, 0.3, 0.4}
	table := Build(probs)
	for s := 0; s < len(probs); s++ {
		lo, hi := table.Range(s)
		for target := lo; target < hi; target++ {
			if got := table.Find(target); got != s {
				t.Fatalf("Find(%d) = %d, want %d", target, got, s)
			}
		}
	}
}

func TestDeterministicAcrossCalls(t *testing.T) {
	probs := []float32{0.01, 0.02, 0.03, 0.94}
	a := Build(probs)
	b := Build(probs)
	for i := range a.Cum {
		if a.Cum[i] != b.Cum[i] {
			t.Fatalf("non-deterministic table at %d: %d vs %d", i, a.Cum[i], b.Cum[i])
		}
	}
}
