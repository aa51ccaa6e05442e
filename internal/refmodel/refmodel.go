// Package refmodel provides a deterministic stand-in for the neural
// language model the compression core treats as a black box. It drives
// the full encode/decode pipeline identically to any other conforming
// model.Facade, which is all §1 of the format requires of a stub: its
// predictions are not meant to be good, only reproducible.
//
// The estimator is an adaptive order-0 frequency model, expressed as a
// binary trie of Krichevsky-Trofimov bit predictors — one node per prefix
// of a token ID's binary representation, exactly the "bit-tree" structure
// LZMA-style coders use to extend a binary range coder to byte (or here,
// token) alphabets. Each observe call walks the trie for one token and
// updates the KT zero/one counts along its path; each ProcessToken call
// expands the current trie into a full probability vector by multiplying
// per-bit conditional probabilities down every leaf's path.
package refmodel

import (
	"hash/fnv"
)

type node struct {
	zero, one uint32
}

// Model is a deterministic model.Facade implementation suitable for tests
// and for driving the pipeline in the absence of a real inference backend.
type Model struct {
	vocab int
	bits  int
	nodes []node
}

// New returns a Model over a vocabulary of the given size, freshly reset.
func New(vocabSize int) *Model {
	m := &Model{vocab: vocabSize, bits: bitsFor(vocabSize)}
	m.nodes = make([]node, 1<<uint(m.bits))
	return m
}

func bitsFor(vocab int) int {
	bits := 1
	for (1 << uint(bits)) < vocab {
		bits++
	}
	return bits
}

// Reset clears all accumulated trie counts, returning the model to its
// initial (uniform) state.
func (m *Model) Reset() {
	for i := range m.nodes {
		m.nodes[i] = node{}
	}
}

// observe walks the bit-trie for token, updating the KT zero/one count at
// each node along its path.
func (m *Model) observe(token uint32) {
	idx := 1
	for i := m.bits - 1; i >= 0; i-- {
		bit := (token >> uint(i)) & 1
		if bit == 0 {
			m.nodes[idx].zero++
		} else {
			m.nodes[idx].one++
		}
		idx = (idx << 1) | int(bit)
	}
}

// ProcessToken observes ctx, then returns the resulting distribution over
// the whole vocabulary: for each candidate token, the product of the
// trie's per-bit conditional probabilities along that token's path,
// renormalized over the (possibly non-power-of-two) vocabulary size.
func (m *Model) ProcessToken(ctx uint32) []float32 {
	m.observe(ctx)

	probs := make([]float32, m.vocab)
	var sum float64
	for leaf := 0; leaf < m.vocab; leaf++ {
		p := m.pathProbability(uint32(leaf))
		probs[leaf] = float32(p)
		sum += p
	}
	if sum > 0 {
		for i := range probs {
			probs[i] = float32(float64(probs[i]) / sum)
		}
	}
	return probs
}

func (m *Model) pathProbability(leaf uint32) float64 {
	idx := 1
	p := 1.0
	for i := m.bits - 1; i >= 0; i-- {
		bit := (leaf >> uint(i)) & 1
		n := m.nodes[idx]
		total := float64(n.zero+n.one) + 1.0
		pZero := (float64(n.zero) + 0.5) / total
		if bit == 0 {
			p *= pZero
		} else {
			p *= 1 - pZero
		}
		idx = (idx << 1) | int(bit)
	}
	return p
}

// ModelHash derives a stable identifier from the model's shape (vocabulary
// size and trie depth). As noted in the design notes, a shape-only hash
// cannot distinguish two differently-trained models of the same shape; a
// production backend should hash the weights file instead.
func (m *Model) ModelHash() uint32 {
	h := fnv.New32a()
	h.Write([]byte("llmc-refmodel-v1"))
	var buf [8]byte
	putUint32(buf[0:4], uint32(m.vocab))
	putUint32(buf[4:8], uint32(m.bits))
	h.Write(buf[:])
	return h.Sum32()
}

func putUint32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

// VocabSize returns V.
func (m *Model) VocabSize() int {
	return m.vocab
}
