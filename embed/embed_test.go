package embed

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashEmbedder_Deterministic(t *testing.T) {
	ctx := context.Background()
	e := NewHashEmbedder(64)

	a, err := e.Embed(ctx, "the cat sat on the mat")
	require.NoError(t, err)
	require.Len(t, a, 64)

	b, err := e.Embed(ctx, "the cat sat on the mat")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := e.Embed(ctx, "an entirely different sentence")
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestHashEmbedder_UnitNorm(t *testing.T) {
	ctx := context.Background()
	e := NewHashEmbedder(128)

	for _, text := range []string{"", "x", "a longer piece of remembered text"} {
		vec, err := e.Embed(ctx, text)
		require.NoError(t, err)

		var norm float64
		for _, v := range vec {
			norm += float64(v) * float64(v)
		}
		assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
	}
}

func TestHashEmbedder_Dimensions(t *testing.T) {
	assert.Equal(t, 384, NewHashEmbedder(384).Dimensions())

	_, err := NewHashEmbedder(0).Embed(context.Background(), "text")
	require.Error(t, err)
}

func TestHashEmbedder_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewHashEmbedder(8).Embed(ctx, "text")
	require.ErrorIs(t, err, context.Canceled)
}

func TestHashEmbedder_ImplementsEmbedder(t *testing.T) {
	var _ Embedder = NewHashEmbedder(8)
}
