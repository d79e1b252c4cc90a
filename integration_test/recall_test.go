package integration_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/engram"
	"github.com/hupe1980/engram/distance"
	"github.com/hupe1980/engram/metadata"
	"github.com/hupe1980/engram/testutil"
)

// toIndexSpace maps database results back to positions in the source vector
// slice. Ids are assigned in insertion order starting at one.
func toIndexSpace(results []engram.RecallResult) []testutil.SearchResult {
	out := make([]testutil.SearchResult, len(results))
	for i, r := range results {
		out[i] = testutil.SearchResult{ID: r.ID - 1, Distance: r.Distance}
	}
	return out
}

func storeAll(t *testing.T, db *engram.DB, vectors [][]float32, meta func(i int) metadata.Document) {
	t.Helper()
	ctx := context.Background()
	for i, vec := range vectors {
		var doc metadata.Document
		if meta != nil {
			doc = meta(i)
		}
		_, err := db.Store(ctx, fmt.Sprintf("memory-%d", i), doc, vec)
		require.NoError(t, err)
	}
}

func TestRecall_ClusteredQuality(t *testing.T) {
	const (
		dim     = 32
		size    = 600
		queries = 25
		k       = 10
	)

	ctx := context.Background()
	vectors := testutil.NewRNG(42).ClusteredVectors(size, dim, 8, 0.15)

	db, err := engram.Open(ctx, t.TempDir(), dim, engram.WithMetric(distance.MetricL2))
	require.NoError(t, err)
	defer db.Close()

	storeAll(t, db, vectors, nil)

	var total float64
	for q := 0; q < queries; q++ {
		query := vectors[q*(size/queries)]

		truth := testutil.BruteForceSearch(vectors, query, k, distance.SquaredL2)
		got, err := db.Recall(ctx, query, k)
		require.NoError(t, err)
		require.Len(t, got, k)

		total += testutil.ComputeRecall(truth, toIndexSpace(got))
	}

	avg := total / queries
	require.GreaterOrEqual(t, avg, 0.9, "average recall@%d too low", k)
}

func TestRecall_WiderBeamFindsMore(t *testing.T) {
	const (
		dim  = 32
		size = 400
		k    = 10
	)

	ctx := context.Background()
	vectors := testutil.NewRNG(17).ClusteredVectors(size, dim, 6, 0.2)

	db, err := engram.Open(ctx, t.TempDir(), dim, engram.WithMetric(distance.MetricL2))
	require.NoError(t, err)
	defer db.Close()

	storeAll(t, db, vectors, nil)

	recallAt := func(ef int) float64 {
		var total float64
		for q := 0; q < 20; q++ {
			query := vectors[q*20]
			truth := testutil.BruteForceSearch(vectors, query, k, distance.SquaredL2)
			got, err := db.Recall(ctx, query, k, engram.WithEF(ef))
			require.NoError(t, err)
			total += testutil.ComputeRecall(truth, toIndexSpace(got))
		}
		return total / 20
	}

	narrow := recallAt(k)
	wide := recallAt(256)

	require.GreaterOrEqual(t, wide, narrow, "wider beam lost quality")
	require.GreaterOrEqual(t, wide, 0.95, "recall@%d with ef=256 too low", k)
}

func TestRecall_CosineSelfHit(t *testing.T) {
	const (
		dim  = 24
		size = 300
	)

	ctx := context.Background()
	vectors := testutil.NewRNG(5).UnitVectors(size, dim)

	db, err := engram.Open(ctx, t.TempDir(), dim)
	require.NoError(t, err)
	defer db.Close()

	storeAll(t, db, vectors, nil)

	// Querying a stored vector must return it first, at distance zero.
	for _, i := range []int{0, 57, 184, 299} {
		got, err := db.Recall(ctx, vectors[i], 3)
		require.NoError(t, err)
		require.NotEmpty(t, got)
		require.Equal(t, uint64(i+1), got[0].ID, "query %d: self not first", i)
		require.InDelta(t, 0.0, got[0].Distance, 1e-5)
	}
}

func TestRecall_FilteredByCluster(t *testing.T) {
	const (
		dim      = 16
		size     = 200
		clusters = 4
		k        = 10
	)

	ctx := context.Background()
	vectors := testutil.NewRNG(3).ClusteredVectors(size, dim, clusters, 0.15)

	db, err := engram.Open(ctx, t.TempDir(), dim, engram.WithMetric(distance.MetricL2))
	require.NoError(t, err)
	defer db.Close()

	storeAll(t, db, vectors, func(i int) metadata.Document {
		return metadata.Document{"cluster": metadata.Int(int64(i % clusters))}
	})

	for c := 0; c < clusters; c++ {
		filters := metadata.NewFilterSet(metadata.Eq("cluster", metadata.Int(int64(c))))

		got, err := db.Recall(ctx, vectors[c], k, engram.WithFilters(filters))
		require.NoError(t, err)
		require.Len(t, got, k, "cluster %d: not enough filtered results", c)

		// The queried vector belongs to the cluster, so it leads.
		require.Equal(t, uint64(c+1), got[0].ID)
		for _, r := range got {
			require.Equal(t, metadata.Int(int64(c)), r.Metadata["cluster"],
				"cluster %d: foreign result %d", c, r.ID)
		}
	}
}
