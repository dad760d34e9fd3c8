// Package local provides an offline, deterministic embedding service.
//
// Text is lower-cased, split into letter/digit words, and every word is
// decomposed into character n-grams. Each n-gram is hashed (FNV-1a) into a
// signed slot of the vector; word vectors are averaged and L2-normalised.
// Words sharing subwords land near each other, which is enough for lexical
// retrieval over filings without a network dependency.
package local

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/custodia-labs/tenk/internal/core/domain"
	"github.com/custodia-labs/tenk/internal/core/ports/driven"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Default configuration values.
const (
	DefaultDimensions = 384
	ModelName         = "hash-ngram"

	minNgram = 3
	maxNgram = 6
)

var (
	indexSeed = []byte("tenk-ngram-idx-v1::")
	signSeed  = []byte("tenk-ngram-sgn-v1::")
)

// EmbeddingService is the built-in hashing embedder.
type EmbeddingService struct {
	dims int
}

// NewEmbeddingService creates a hashing embedder. dims <= 0 uses DefaultDimensions.
func NewEmbeddingService(dims int) *EmbeddingService {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &EmbeddingService{dims: dims}
}

// Embed returns the vector for text. Text with no indexable words fails
// with domain.ErrEmptyInput.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float32, s.dims)
	words := 0
	for _, w := range tokenize(text) {
		if _, skip := stopwords[w]; skip {
			continue
		}
		s.addWord(vec, w)
		words++
	}
	if words == 0 {
		return nil, fmt.Errorf("%w: no indexable words", domain.ErrEmptyInput)
	}

	scale := 1 / float32(words)
	for i := range vec {
		vec[i] *= scale
	}
	normalise(vec)
	return vec, nil
}

// EmbedBatch embeds each text in turn.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := s.Embed(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("embed text %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dims
}

// ModelName returns the embedder name.
func (s *EmbeddingService) ModelName() string {
	return ModelName
}

// Ping always succeeds.
func (s *EmbeddingService) Ping(context.Context) error {
	return nil
}

// Close releases resources.
func (s *EmbeddingService) Close() error {
	return nil
}

func (s *EmbeddingService) addWord(vec []float32, word string) {
	bounded := []rune("<" + word + ">")
	addFeature(vec, string(bounded))
	for n := minNgram; n <= maxNgram && n <= len(bounded); n++ {
		for i := 0; i+n <= len(bounded); i++ {
			addFeature(vec, string(bounded[i:i+n]))
		}
	}
}

func addFeature(vec []float32, feature string) {
	idx := hash(indexSeed, feature) % uint64(len(vec))
	if hash(signSeed, feature)&1 == 1 {
		vec[idx]--
	} else {
		vec[idx]++
	}
}

func hash(seed []byte, s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write(seed)
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func normalise(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
}

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "by": {}, "for": {},
	"from": {}, "has": {}, "have": {}, "in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"or": {}, "our": {}, "that": {}, "the": {}, "their": {}, "this": {}, "to": {}, "was": {},
	"we": {}, "were": {}, "what": {}, "which": {}, "with": {},
}
