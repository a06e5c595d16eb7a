package hashing

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"regexp"
	"strings"

	"docrag/internal/embedding"
	"docrag/internal/normalize"
)

// ErrNoTokens is returned for text without any indexable word.
var ErrNoTokens = errors.New("no tokens found in text")

// Embedder is an offline bag-of-words embedder using the hashing trick:
// every token is hashed into one of dimension buckets with a hash-derived
// sign, weighted by sublinear term frequency and L2-normalized.
// It needs no corpus preparation, so vectors are stable across ingestions.
type Embedder struct {
	dimension    int
	tokenPattern *regexp.Regexp
	stopwords    normalize.Set
}

// NewEmbedder creates a hashing embedder. A non-positive dimension selects
// embedding.DefaultDimension.
func NewEmbedder(dimension int) *Embedder {
	if dimension <= 0 {
		dimension = embedding.DefaultDimension
	}
	stop := normalize.NewSet()
	for w := range normalize.EnglishStopwords {
		stop[w] = struct{}{}
	}
	for w := range normalize.SinhalaStopwords {
		stop[w] = struct{}{}
	}
	return &Embedder{
		dimension: dimension,
		// Marks and ZWJ keep Sinhala conjuncts and vowel signs inside the word.
		tokenPattern: regexp.MustCompile(`[\p{L}\p{N}][\p{L}\p{M}\p{N}\x{200D}]*(?:['’][\p{L}\p{M}]+)*`),
		stopwords:    stop,
	}
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "hashing" }

// Dimension returns the dimensionality of the produced embedding vectors.
func (e *Embedder) Dimension() int { return e.dimension }

// Embed computes the hashed term-frequency vector for text.
func (e *Embedder) Embed(_ context.Context, text string) ([]float32, error) {
	tokens := e.tokenize(text)
	if len(tokens) == 0 {
		return nil, ErrNoTokens
	}
	// Accumulate in first-occurrence order so float rounding is reproducible.
	tf := make(map[string]int, len(tokens))
	order := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if tf[tok] == 0 {
			order = append(order, tok)
		}
		tf[tok]++
	}
	vec := make([]float32, e.dimension)
	for _, tok := range order {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum64()
		weight := float32(1 + math.Log(float64(tf[tok])))
		if sum>>63 == 1 {
			weight = -weight
		}
		vec[sum%uint64(e.dimension)] += weight
	}
	if embedding.Norm(vec) == 0 {
		return nil, ErrNoTokens
	}
	return embedding.Normalize(vec), nil
}

func (e *Embedder) tokenize(text string) []string {
	raw := e.tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if e.stopwords.Contains(t) {
			continue
		}
		out = append(out, t)
	}
	return out
}
