// Package model defines the narrow facade through which the compression
// core consumes a neural language model. Inference itself — model file
// loading, execution-provider selection, and backend threading — is
// explicitly out of scope for the core; this package only describes the
// contract that any such backend, or a deterministic stub, must satisfy.
package model

// Facade is the black-box interface the compression driver uses to obtain
// per-step probability distributions. A conforming implementation's
// ProcessToken must be a deterministic, pure function of the sequence of
// context tokens fed in since the last Reset: identical resets and
// identical input sequences must return bit-identical probability vectors.
type Facade interface {
	// Reset returns the model to its initial state, as if newly
	// constructed. Every chunk in chunked mode, and the start of plain
	// mode, begins with a fresh reset.
	Reset()

	// ProcessToken conditions the model on ctx (the previously emitted or
	// seeded context token) and returns a freshly computed probability
	// vector of length VocabSize() for the next token. The returned slice
	// must not be reused or mutated by a later call without copying.
	ProcessToken(ctx uint32) []float32

	// ModelHash returns a stable identifier for the model variant. It is
	// embedded in the container header and checked (non-fatally) on
	// decompression.
	ModelHash() uint32

	// VocabSize returns V, the fixed length of every probability vector
	// ProcessToken returns.
	VocabSize() int
}
