package hnsw

import (
	"errors"
	"fmt"

	"github.com/hupe1980/engram/distance"
)

const (
	// layerNormalizationBase is the base constant for the exponential layer
	// probability distribution.
	layerNormalizationBase = 1.0

	// mmax0Multiplier is the multiplier for the link cap at layer 0.
	mmax0Multiplier = 2

	// minimumM is the minimum valid value for M.
	minimumM = 2

	// DefaultM is the default number of bidirectional links.
	DefaultM = 32

	// DefaultEFConstruction is the default beam width while linking a new node.
	DefaultEFConstruction = 200

	// DefaultEFSearch is the default beam width for queries.
	DefaultEFSearch = 100
)

var (
	ErrEmptyVector = errors.New("vector cannot be empty")
	ErrZeroVector  = errors.New("cannot normalize zero vector")
	ErrInvalidK    = errors.New("k must be positive")
)

// InvalidDimensionError reports an unusable Options.Dimension.
type InvalidDimensionError struct {
	Dimension int
}

func (e *InvalidDimensionError) Error() string {
	return fmt.Sprintf("invalid dimension: %d", e.Dimension)
}

// DimensionMismatchError reports a vector whose length does not match the
// index dimension.
type DimensionMismatchError struct {
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Options represents the options for configuring the index.
type Options struct {
	// Dimension is the vector dimensionality. Required.
	Dimension int

	// M is the number of bidirectional links per node on the upper layers.
	M int

	// MMax0 caps links at layer 0. Defaults to 2*M.
	MMax0 int

	// EFConstruction is the beam width while linking a new node.
	EFConstruction int

	// EFSearch is the default beam width for queries, overridable per search.
	EFSearch int

	// Heuristic enables diversity-aware neighbor selection.
	Heuristic bool

	// Metric selects the distance ordering. Cosine normalizes vectors on
	// the way in.
	Metric distance.Metric
}

// DefaultOptions contains the default options for the index.
var DefaultOptions = Options{
	M:              DefaultM,
	EFConstruction: DefaultEFConstruction,
	EFSearch:       DefaultEFSearch,
	Heuristic:      true,
	Metric:         distance.MetricCosine,
}

// FilterFunc restricts search results to ids it accepts. Rejected nodes are
// still crossed during navigation.
type FilterFunc func(id uint64) bool

// SearchOptions tunes a single search.
type SearchOptions struct {
	// EF overrides the index default beam width. Values below k are
	// raised to k.
	EF int

	// Filter, when set, keeps only accepted ids in the result set.
	Filter FilterFunc
}

// Result is one search hit. Lower distance is better.
type Result struct {
	ID       uint64
	Distance float32
}

// LevelStats describes one graph layer.
type LevelStats struct {
	Level int
	Nodes int
	Links int
}

// Stats summarizes the graph shape.
type Stats struct {
	Nodes      int
	Live       int
	Tombstones int
	MaxLevel   int
	Levels     []LevelStats
}
