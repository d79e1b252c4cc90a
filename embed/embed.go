// Package embed defines how text becomes vectors.
//
// The database itself never interprets content; anything satisfying
// Embedder can back StoreText and RecallText. HashEmbedder is the built-in
// model-free implementation: deterministic, offline and cheap, good for
// tests and for callers that bring their own vectors anyway.
package embed

import (
	"context"
	"errors"
	"hash/fnv"
	"math"

	"github.com/hupe1980/engram/distance"
)

// Embedder converts text to vector embeddings.
type Embedder interface {
	// Embed converts a single text to an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}

// ErrDegenerateEmbedding is returned when an embedding has zero norm and
// cannot be placed on the unit sphere.
var ErrDegenerateEmbedding = errors.New("degenerate embedding with zero norm")

// HashEmbedder derives a unit vector from the fnv64a hash of the text. Two
// equal texts always embed identically; unequal texts land in unrelated
// directions. There is no semantic similarity, which is exactly what
// deterministic tests want.
type HashEmbedder struct {
	dimensions int
}

// NewHashEmbedder creates a hash embedder producing vectors of the given
// dimensionality.
func NewHashEmbedder(dimensions int) *HashEmbedder {
	return &HashEmbedder{dimensions: dimensions}
}

// Embed converts text into a deterministic unit vector.
func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.dimensions <= 0 {
		return nil, errors.New("embedder dimensions must be positive")
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(text))

	// The hash seeds an MMIX linear congruential generator; each step
	// yields one coordinate in [-1, 1].
	seed := h.Sum64()
	vec := make([]float32, e.dimensions)
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}

	if !distance.NormalizeL2InPlace(vec) {
		return nil, ErrDegenerateEmbedding
	}

	return vec, nil
}

// Dimensions returns the embedding vector size.
func (e *HashEmbedder) Dimensions() int {
	return e.dimensions
}
