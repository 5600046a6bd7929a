// Package embedding provides an offline embedding capability for keyless
// deployments and tests.
package embedding

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

// DefaultDimensions is the vector size used when none is configured
const DefaultDimensions = 512

var ErrEmptyText = errors.New("text cannot be empty")

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}]+)*`)

// HashingEmbedder maps word tokens into a fixed number of buckets with
// feature hashing. No vocabulary is kept, so vectors are stable across runs
// and processes.
type HashingEmbedder struct {
	dimensions int
	stopwords  map[string]struct{}
}

// NewHashingEmbedder creates an embedder producing vectors of the given size.
func NewHashingEmbedder(dimensions int) *HashingEmbedder {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &HashingEmbedder{dimensions: dimensions, stopwords: defaultStopwords()}
}

// Dimensions returns the vector size
func (e *HashingEmbedder) Dimensions() int { return e.dimensions }

// Embed hashes the tokens of text into an L2 normalised vector.
func (e *HashingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if text == "" {
		return nil, ErrEmptyText
	}

	vec := make([]float64, e.dimensions)
	for _, tok := range e.tokenize(text) {
		h := fnv.New64a()
		h.Write([]byte(tok))
		sum := h.Sum64()
		idx := int(sum % uint64(e.dimensions))
		// the top bit picks the sign so colliding tokens tend to cancel
		if sum>>63 == 1 {
			vec[idx]--
		} else {
			vec[idx]++
		}
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	out := make([]float32, e.dimensions)
	if norm == 0 {
		return out, nil
	}
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out, nil
}

// EmbedBatch embeds each text in order.
func (e *HashingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *HashingEmbedder) tokenize(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	tokens := raw[:0]
	for _, tok := range raw {
		tok = strings.ReplaceAll(tok, "’", "'")
		if _, stop := e.stopwords[tok]; stop {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "and", "are", "as", "at", "be", "by", "for", "from", "has",
		"in", "is", "it", "its", "of", "on", "or", "that", "the", "to", "was",
		"were", "will", "with", "what", "which", "who", "how",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
