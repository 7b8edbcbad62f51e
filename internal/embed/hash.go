package embed

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

// HashEmbedder is a deterministic, offline embedder based on feature hashing
// of word tokens and character trigrams. It needs no API key and is meant
// for air-gapped installs and tests; similarity is lexical only.
type HashEmbedder struct {
	dimensions int
}

// NewHashEmbedder creates a hash embedder producing vectors of dims length.
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = 256
	}
	return &HashEmbedder{dimensions: dims}
}

// Embed generates embeddings for a batch of texts.
func (e *HashEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.vector(text)
	}
	return out, nil
}

func (e *HashEmbedder) vector(text string) []float32 {
	v := make([]float32, e.dimensions)
	for _, tok := range tokenize(text) {
		e.add(v, "w:"+tok, 1)
		padded := "#" + tok + "#"
		runes := []rune(padded)
		for i := 0; i+3 <= len(runes); i++ {
			e.add(v, "t:"+string(runes[i:i+3]), 0.5)
		}
	}
	Normalize(v)
	return v
}

func (e *HashEmbedder) add(v []float32, feature string, weight float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	idx := int(sum % uint64(e.dimensions))
	// The top bit picks the sign so colliding features tend to cancel out.
	if sum>>63 == 1 {
		weight = -weight
	}
	v[idx] += weight
}

// tokenize splits on anything that is not a letter or digit and lower-cases.
// snake_case identifiers are split into their parts as well.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Dimensions returns the output vector dimensionality.
func (e *HashEmbedder) Dimensions() int { return e.dimensions }

// Name returns the provider name.
func (e *HashEmbedder) Name() string { return "hash" }

// Model returns the model name.
func (e *HashEmbedder) Model() string { return "fnv-trigram" }
