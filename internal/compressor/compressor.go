// Package compressor implements the compression driver: tokenize, drive a
// model facade and an arithmetic coder token by token, and frame the
// result in either the plain or chunked container format. It is the one
// package that wires bitio, quantizer, coder, bpe, container, and model
// together into the end-to-end pipeline.
package compressor

import (
	"log/slog"
	"runtime"
	"sync"

	"github.com/pkg/errors"

	"github.com/fumin/llmc/internal/bitio"
	"github.com/fumin/llmc/internal/bpe"
	"github.com/fumin/llmc/internal/coder"
	"github.com/fumin/llmc/internal/container"
	"github.com/fumin/llmc/internal/model"
	"github.com/fumin/llmc/internal/quantizer"
)

// Default chunking policy, per the chunked container's external contract.
const (
	DefaultChunkSize   = 128
	DefaultOverlapSize = 16
)

// ModelFactory returns a freshly constructed, unreset model facade.
// Chunked compression and parallel decompression each need one private
// model instance per concurrently active chunk, so the driver is handed a
// factory rather than a single instance.
type ModelFactory func() model.Facade

// Compressor owns one tokenizer and one model factory for their lifetime.
// Chunk and coder state are transient, scoped to a single Compress or
// Decompress call.
type Compressor struct {
	tok         *bpe.Tokenizer
	newModel    ModelFactory
	chunkSize   int
	overlapSize int
}

// New returns a Compressor over tok and newModel, using the default
// chunking policy. Use WithChunking to override it.
func New(tok *bpe.Tokenizer, newModel ModelFactory) *Compressor {
	return &Compressor{
		tok:         tok,
		newModel:    newModel,
		chunkSize:   DefaultChunkSize,
		overlapSize: DefaultOverlapSize,
	}
}

// WithChunking returns a copy of c configured with the given chunk and
// overlap sizes, for use by CompressChunked.
func (c *Compressor) WithChunking(chunkSize, overlapSize int) *Compressor {
	cp := *c
	cp.chunkSize = chunkSize
	cp.overlapSize = overlapSize
	return &cp
}

// Result mirrors the informative compress() return shape: the framed
// container bytes plus bookkeeping a caller typically wants to report.
type Result struct {
	Data           []byte
	OriginalSize   int
	CompressedSize int
	Ratio          float64
	TokenCount     int
	ChunkCount     int
}

func newResult(data []byte, originalSize, tokenCount, chunkCount int) Result {
	r := Result{
		Data:           data,
		OriginalSize:   originalSize,
		CompressedSize: len(data),
		TokenCount:     tokenCount,
		ChunkCount:     chunkCount,
	}
	if originalSize > 0 {
		r.Ratio = float64(r.CompressedSize) / float64(originalSize)
	}
	return r
}

// Compress tokenizes text and produces a plain (non-chunked) container: one
// continuous coder and model state over the whole token stream.
func (c *Compressor) Compress(text string) (Result, error) {
	tokens := c.tok.Encode(text)
	m := c.newModel()

	if len(tokens) == 0 {
		h := container.PlainHeader{Version: container.Version, OriginalByteLength: uint32(len(text)), ModelHash: m.ModelHash()}
		data := container.CombineHeaderAndPayload(h, nil)
		return newResult(data, len(text), 0, 1), nil
	}

	m.Reset()
	w := bitio.NewWriter()
	enc := coder.NewEncoder(w)
	for i, tok := range tokens {
		ctx := prevToken(tokens, i)
		probs := m.ProcessToken(ctx)
		table := quantizer.Build(probs)
		enc.Encode(int(tok), table)
	}
	enc.Finish()

	h := container.PlainHeader{
		Version:            container.Version,
		OriginalByteLength: uint32(len(text)),
		TokenCount:         uint32(len(tokens)),
		ModelHash:          m.ModelHash(),
	}
	data := container.CombineHeaderAndPayload(h, w.Bytes())
	return newResult(data, len(text), len(tokens), 1), nil
}

// Decompress parses a container (plain or chunked, determined by magic)
// and recovers the original text. Chunked containers are decoded with up
// to runtime.NumCPU() workers; callers wanting a specific worker count
// (including 1, for strictly sequential decoding) should call
// DecompressWithWorkers directly.
func (c *Compressor) Decompress(data []byte) (string, error) {
	return c.DecompressWithWorkers(data, runtime.NumCPU())
}

// DecompressWithWorkers parses a container and recovers the original text,
// using workers as the chunk-decode worker budget when data is a chunked
// container (ignored for plain containers, which are always sequential).
func (c *Compressor) DecompressWithWorkers(data []byte, workers int) (string, error) {
	if container.IsChunked(data) {
		return c.DecompressChunked(data, workers)
	}
	return c.decompressPlain(data)
}

func (c *Compressor) decompressPlain(data []byte) (string, error) {
	h, payload, err := container.SplitHeaderAndPayload(data)
	if err != nil {
		return "", errors.Wrap(err, "parse plain header")
	}
	if h.TokenCount == 0 {
		return "", nil
	}

	m := c.newModel()
	warnModelMismatch(h.ModelHash, m.ModelHash())
	m.Reset()

	tokens, err := decodeStream(m, bitio.NewReader(payload), int(h.TokenCount))
	if err != nil {
		return "", err
	}
	return c.tok.Decode(tokens), nil
}

// decodeStream decodes count tokens sequentially from r, feeding each
// decoded token back in as the next step's context exactly as the encoder
// did.
func decodeStream(m model.Facade, r *bitio.Reader, count int) ([]bpe.Token, error) {
	dec := coder.NewDecoder(r)
	tokens := make([]bpe.Token, 0, count)
	for i := 0; i < count; i++ {
		ctx := prevToken(tokens, i)
		probs := m.ProcessToken(ctx)
		table := quantizer.Build(probs)
		s := dec.Decode(table)
		tokens = append(tokens, bpe.Token(s))
	}
	return tokens, nil
}

// prevToken returns the context token for step i: 0 for the first step,
// otherwise the token immediately before it.
func prevToken(tokens []bpe.Token, i int) uint32 {
	if i == 0 {
		return 0
	}
	return tokens[i-1]
}

// warnModelMismatch logs a non-fatal warning when the header's recorded
// model hash differs from the runtime model's. Decompression proceeds
// regardless, per the format's error-handling policy, though the output is
// then almost certain to be garbage.
func warnModelMismatch(want, got uint32) {
	if want != got {
		slog.Warn("compressor: model hash mismatch, output is unreliable", "header", want, "runtime", got)
	}
}

type chunkRange struct {
	start, end int
}

// splitChunks partitions N tokens into chunk ranges per the chunking
// policy: chunk 0 covers [0, min(chunkSize, N)); chunk i>=1 covers
// [max(0, i*chunkSize-overlapSize), min(i*chunkSize+chunkSize, N)).
func splitChunks(n, chunkSize, overlapSize int) []chunkRange {
	var ranges []chunkRange
	for i := 0; ; i++ {
		p := i * chunkSize
		if p >= n {
			break
		}
		start := 0
		if i > 0 {
			start = p - overlapSize
			if start < 0 {
				start = 0
			}
		}
		end := p + chunkSize
		if end > n {
			end = n
		}
		ranges = append(ranges, chunkRange{start: start, end: end})
	}
	return ranges
}

// CompressChunked tokenizes text and produces a chunked container: each
// chunk gets a fresh model and coder state and, for chunks after the
// first, a verbatim overlap prefix duplicated from the end of the
// previous chunk. Chunks are encoded sequentially, since a chunk's model
// state has no bearing on any other chunk's and the dominant cost is the
// per-token coder/model work rather than cross-chunk coordination.
func (c *Compressor) CompressChunked(text string) (Result, error) {
	tokens := c.tok.Encode(text)
	n := len(tokens)
	shapeModel := c.newModel()

	if n == 0 {
		h := container.ChunkedHeader{
			Version:            container.Version,
			OriginalByteLength: uint32(len(text)),
			ModelHash:          shapeModel.ModelHash(),
			ChunkSize:          uint16(c.chunkSize),
			OverlapSize:        uint16(c.overlapSize),
		}
		data := container.BuildChunkedContainer(h, nil)
		return newResult(data, len(text), 0, 0), nil
	}

	ranges := splitChunks(n, c.chunkSize, c.overlapSize)
	payloads := make([][]byte, len(ranges))
	tokenCounts := make([]uint16, len(ranges))
	for i, rng := range ranges {
		chunkTokens := tokens[rng.start:rng.end]
		payload := c.encodeChunk(chunkTokens)
		payloads[i] = payload
		tokenCounts[i] = uint16(len(chunkTokens))
	}

	h := container.ChunkedHeader{
		Version:            container.Version,
		OriginalByteLength: uint32(len(text)),
		TotalTokenCount:    uint32(n),
		ModelHash:          shapeModel.ModelHash(),
		ChunkSize:          uint16(c.chunkSize),
		OverlapSize:        uint16(c.overlapSize),
		TokenCounts:        tokenCounts,
	}
	data := container.BuildChunkedContainer(h, payloads)
	return newResult(data, len(text), n, len(ranges)), nil
}

// encodeChunk resets a fresh model and coder over chunkTokens and returns
// the finalized bit-stream payload.
func (c *Compressor) encodeChunk(chunkTokens []bpe.Token) []byte {
	m := c.newModel()
	m.Reset()
	w := bitio.NewWriter()
	enc := coder.NewEncoder(w)
	for i, tok := range chunkTokens {
		ctx := prevToken(chunkTokens, i)
		probs := m.ProcessToken(ctx)
		table := quantizer.Build(probs)
		enc.Encode(int(tok), table)
	}
	enc.Finish()
	return w.Bytes()
}

// decodeChunk resets a fresh model and decoder over chunk i's payload and
// decodes exactly the number of tokens recorded for it in h.
func (c *Compressor) decodeChunk(data []byte, h container.ChunkedHeader, i int) ([]bpe.Token, error) {
	payload, err := container.ChunkPayload(data, h, i)
	if err != nil {
		return nil, errors.Wrapf(err, "chunk %d payload", i)
	}
	m := c.newModel()
	m.Reset()
	return decodeStream(m, bitio.NewReader(payload), int(h.TokenCounts[i]))
}

// DecompressChunked parses a chunked container and decodes its chunks with
// up to workerBudget workers, each chunk with a fresh private model instance, merging
// results in ascending chunk order and dropping each non-first chunk's
// overlap prefix. A workerBudget of 1 (or a single chunk) decodes
// sequentially; any larger value is capped at the chunk count.
func (c *Compressor) DecompressChunked(data []byte, workerBudget int) (string, error) {
	h, err := container.ParseChunkedHeader(data)
	if err != nil {
		return "", errors.Wrap(err, "parse chunked header")
	}
	warnModelMismatch(h.ModelHash, c.newModel().ModelHash())

	k := h.ChunkCount()
	if k == 0 {
		return "", nil
	}

	decoded, err := c.decodeChunksConcurrently(data, h, workerBudget)
	if err != nil {
		return "", err
	}

	merged := decoded[0]
	overlap := int(h.OverlapSize)
	for i := 1; i < k; i++ {
		toks := decoded[i]
		if len(toks) > overlap {
			merged = append(merged, toks[overlap:]...)
		}
	}
	return c.tok.Decode(merged), nil
}

// decodeChunksConcurrently fans chunk indices out to a worker pool, using a
// kill channel to stop the job producer and a buffered error channel to
// capture the first worker error. Each
// worker claims chunk indices from a shared jobs channel and writes its
// decoded tokens to its own slot of results, so no two goroutines ever
// touch the same slot.
func (c *Compressor) decodeChunksConcurrently(data []byte, h container.ChunkedHeader, workerBudget int) ([][]bpe.Token, error) {
	k := h.ChunkCount()
	workers := workerBudget
	if workers <= 0 || workers > k {
		workers = k
	}

	results := make([][]bpe.Token, k)
	jobs := make(chan int)
	errc := make(chan error, workers)
	kill := make(chan struct{})

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				toks, err := c.decodeChunk(data, h, i)
				if err != nil {
					select {
					case errc <- err:
					default:
					}
					return
				}
				results[i] = toks
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := 0; i < k; i++ {
			select {
			case <-kill:
				return
			case jobs <- i:
			}
		}
	}()

	wg.Wait()
	close(errc)
	close(kill)
	if err := <-errc; err != nil {
		return nil, err
	}
	return results, nil
}
