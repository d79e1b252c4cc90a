package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/engram/distance"
)

func TestUniformVectors(t *testing.T) {
	rng := NewRNG(4711)

	v := rng.UniformVectors(8, 32)

	assert.Equal(t, 8, len(v))
	assert.Equal(t, 32, len(v[0]))
	assert.LessOrEqual(t, v[0][0], float32(1.0))
	assert.GreaterOrEqual(t, v[1][0], float32(0.0))
}

func TestUnitVectors(t *testing.T) {
	rng := NewRNG(4711)

	v := rng.UnitVectors(8, 32)

	assert.Equal(t, 8, len(v))
	assert.Equal(t, 32, len(v[0]))

	// Check normalization
	for _, vec := range v {
		assert.InDelta(t, 1.0, Norm(vec), 1e-5)
	}
}

func TestClusteredVectors(t *testing.T) {
	rng := NewRNG(4711)

	v := rng.ClusteredVectors(100, 32, 5, 0.1)

	assert.Equal(t, 100, len(v))
	assert.Equal(t, 32, len(v[0]))

	// Members of the same cluster sit closer together than members of
	// different clusters.
	same := distance.SquaredL2(v[0], v[5])
	other := distance.SquaredL2(v[0], v[1])
	assert.Less(t, same, other)
}

func TestReset(t *testing.T) {
	rng := NewRNG(4711)
	v1 := rng.UniformVectors(1, 10)

	rng.Reset()
	v2 := rng.UniformVectors(1, 10)

	assert.Equal(t, v1, v2)
}

func TestBruteForceSearch(t *testing.T) {
	vectors := [][]float32{
		{0, 0},
		{3, 0},
		{1, 0},
		{2, 0},
	}

	results := BruteForceSearch(vectors, []float32{0, 0}, 3, distance.SquaredL2)

	assert.Equal(t, 3, len(results))
	assert.Equal(t, uint64(0), results[0].ID)
	assert.Equal(t, uint64(2), results[1].ID)
	assert.Equal(t, uint64(3), results[2].ID)
}

func TestBruteForceSearchTieBreak(t *testing.T) {
	// Equidistant vectors must order by id.
	vectors := [][]float32{
		{1, 0},
		{0, 1},
		{-1, 0},
	}

	results := BruteForceSearch(vectors, []float32{0, 0}, 3, distance.SquaredL2)

	assert.Equal(t, uint64(0), results[0].ID)
	assert.Equal(t, uint64(1), results[1].ID)
	assert.Equal(t, uint64(2), results[2].ID)
}

func TestComputeRecall(t *testing.T) {
	truth := []SearchResult{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}}

	assert.Equal(t, 1.0, ComputeRecall(truth, truth))
	assert.Equal(t, 0.5, ComputeRecall(truth, []SearchResult{{ID: 1}, {ID: 2}, {ID: 7}, {ID: 8}}))
	assert.Equal(t, 0.0, ComputeRecall(truth, []SearchResult{{ID: 9}, {ID: 10}, {ID: 11}, {ID: 12}}))
	assert.Equal(t, 1.0, ComputeRecall(nil, nil))
	assert.Equal(t, 0.0, ComputeRecall(truth, nil))
}
