// Package bpe implements a byte-level BPE tokenizer: it turns arbitrary
// UTF-8 text into a stream of vocabulary token IDs and back, losslessly,
// by mapping bytes through the fixed alphabet package and then greedily
// merging adjacent pieces by ascending merge rank.
package bpe

import (
	"encoding/json"
	"log/slog"
	"os"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"

	"github.com/fumin/llmc/internal/alphabet"
)

// Token is a vocabulary entry ID.
type Token = uint32

const encodeCacheSize = 65536

// AddedToken is an entry in the tokenizer config's added_tokens list.
// Entries with Special == true are recognized as atomic pieces, matched
// before ordinary BPE merging runs.
type AddedToken struct {
	ID      int    `json:"id"`
	Content string `json:"content"`
	Special bool   `json:"special"`
}

// modelSection mirrors the "model" object of the tokenizer config JSON:
// a piece->ID vocabulary and an ordered merge list whose position defines
// rank (0 = highest priority).
type modelSection struct {
	Vocab  map[string]int `json:"vocab"`
	Merges []string       `json:"merges"`
}

// config mirrors the on-disk tokenizer JSON document described in the
// external interfaces: model.vocab, model.merges, and an optional
// added_tokens list.
type config struct {
	Model       modelSection `json:"model"`
	AddedTokens []AddedToken `json:"added_tokens"`
}

// Tokenizer holds an immutable vocabulary and merge-rank table, safe for
// concurrent use by multiple goroutines once loaded; its encode cache is
// internally synchronized.
type Tokenizer struct {
	vocab   map[string]Token
	decoder map[Token]string
	ranks   map[string]int // "pieceA pieceB" -> rank, lower is higher priority
	specials []string       // sorted longest-first for greedy matching
	specialID map[string]Token

	cache *lru.Cache[string, []Token]
}

// Load reads a tokenizer configuration from the JSON document at path.
func Load(path string) (*Tokenizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read tokenizer config")
	}
	return LoadFromJSON(data)
}

// LoadFromJSON parses a tokenizer configuration from an in-memory JSON
// document, as described in the external interfaces.
func LoadFromJSON(data []byte) (*Tokenizer, error) {
	var cfg config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal tokenizer config")
	}

	vocab := make(map[string]Token, len(cfg.Model.Vocab))
	decoder := make(map[Token]string, len(cfg.Model.Vocab))
	for piece, id := range cfg.Model.Vocab {
		vocab[piece] = Token(id)
		decoder[Token(id)] = piece
	}

	ranks := make(map[string]int, len(cfg.Model.Merges))
	for rank, merge := range cfg.Model.Merges {
		ranks[merge] = rank
	}

	specialID := make(map[string]Token)
	var specials []string
	for _, at := range cfg.AddedTokens {
		if !at.Special {
			continue
		}
		specialID[at.Content] = Token(at.ID)
		specials = append(specials, at.Content)
		vocab[at.Content] = Token(at.ID)
		decoder[Token(at.ID)] = at.Content
	}
	sort.Slice(specials, func(i, j int) bool { return len(specials[i]) > len(specials[j]) })

	cache, err := lru.New[string, []Token](encodeCacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "create encode cache")
	}

	return &Tokenizer{
		vocab:     vocab,
		decoder:   decoder,
		ranks:     ranks,
		specials:  specials,
		specialID: specialID,
		cache:     cache,
	}, nil
}

// VocabSize returns the number of distinct token IDs in the vocabulary,
// including any special tokens.
func (t *Tokenizer) VocabSize() int {
	return len(t.decoder)
}

// Encode turns text into a token stream. It is a pure function of text and
// the tokenizer's immutable vocabulary/merge tables: two calls return
// identical sequences.
func (t *Tokenizer) Encode(text string) []Token {
	if text == "" {
		return nil
	}

	var tokens []Token
	for _, seg := range t.splitSpecials(text) {
		if id, ok := t.specialID[seg]; ok {
			tokens = append(tokens, id)
			continue
		}
		tokens = append(tokens, t.encodeSegment(seg)...)
	}
	return tokens
}

// splitSpecials splits text on occurrences of any special token, returning
// alternating ordinary and special segments in original order. Special
// tokens are matched longest-first so that one special token's content
// being a prefix of another's does not cause a wrong match.
func (t *Tokenizer) splitSpecials(text string) []string {
	if len(t.specials) == 0 {
		return []string{text}
	}
	var segs []string
	for len(text) > 0 {
		idx, matchLen := -1, 0
		for _, s := range t.specials {
			if i := strings.Index(text, s); i >= 0 && (idx == -1 || i < idx) {
				idx, matchLen = i, len(s)
			}
		}
		if idx == -1 {
			segs = append(segs, text)
			break
		}
		if idx > 0 {
			segs = append(segs, text[:idx])
		}
		segs = append(segs, text[idx:idx+matchLen])
		text = text[idx+matchLen:]
	}
	return segs
}

// encodeSegment runs byte-alphabet mapping and greedy BPE merging over one
// ordinary (non-special) text segment.
func (t *Tokenizer) encodeSegment(text string) []Token {
	if cached, ok := t.cache.Get(text); ok {
		return cached
	}

	encoded := alphabet.Encode([]byte(text))
	pieces := strings.Split(encoded, "")

	for len(pieces) > 1 {
		bestRank := -1
		bestIdx := -1
		for i := 0; i < len(pieces)-1; i++ {
			key := pieces[i] + " " + pieces[i+1]
			if r, ok := t.ranks[key]; ok && (bestRank == -1 || r < bestRank) {
				bestRank = r
				bestIdx = i
			}
		}
		if bestIdx == -1 {
			break
		}
		first, second := pieces[bestIdx], pieces[bestIdx+1]
		pieces = mergePair(pieces, first, second)
	}

	tokens := make([]Token, 0, len(pieces))
	for _, p := range pieces {
		if id, ok := t.vocab[p]; ok {
			tokens = append(tokens, id)
			continue
		}
		// Unknown piece: the vocabulary is malformed. Fall back to
		// per-codepoint lookup and log so the caller can notice.
		slog.Warn("bpe: unknown piece after merging, falling back to per-codepoint lookup", "piece", p)
		for _, r := range p {
			if id, ok := t.vocab[string(r)]; ok {
				tokens = append(tokens, id)
			}
		}
	}

	t.cache.Add(text, tokens)
	return tokens
}

// mergePair sweeps left to right over pieces, merging every non-overlapping
// occurrence of the exact adjacent pair (first, second) into one piece.
func mergePair(pieces []string, first, second string) []string {
	out := make([]string, 0, len(pieces))
	for i := 0; i < len(pieces); {
		if i < len(pieces)-1 && pieces[i] == first && pieces[i+1] == second {
			out = append(out, first+second)
			i += 2
		} else {
			out = append(out, pieces[i])
			i++
		}
	}
	return out
}

// Decode concatenates the piece strings for each token ID, maps the result
// back through the inverse byte alphabet, and returns the recovered UTF-8
// string. Special-token content is ordinary printable ASCII, which is
// self-mapped by the byte alphabet, so it survives the inverse mapping
// unchanged alongside ordinary decoded pieces.
func (t *Tokenizer) Decode(tokens []Token) string {
	var sb strings.Builder
	for _, tok := range tokens {
		if piece, ok := t.decoder[tok]; ok {
			sb.WriteString(piece)
		}
	}
	return string(alphabet.Decode(sb.String()))
}
