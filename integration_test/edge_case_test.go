package integration_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/engram"
	"github.com/hupe1980/engram/distance"
	"github.com/hupe1980/engram/testutil"
)

func TestEdgeCase_EmptyDatabase(t *testing.T) {
	ctx := context.Background()

	db, err := engram.Open(ctx, t.TempDir(), 4)
	require.NoError(t, err)
	defer db.Close()

	res, err := db.Recall(ctx, []float32{1, 0, 0, 0}, 5)
	require.NoError(t, err)
	require.Empty(t, res)

	_, ok := db.Get(1)
	require.False(t, ok)
	require.Zero(t, db.Count())

	_, err = db.Query([]float32{1, 0, 0, 0}).First(ctx)
	require.ErrorIs(t, err, engram.ErrNotFound)
}

func TestEdgeCase_LargeContent(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	db, err := engram.Open(ctx, dir, 4)
	require.NoError(t, err)

	// One compressible payload, one that stays raw because block
	// compression cannot shrink it.
	compressible := strings.Repeat("the agent remembered the meeting notes. ", 2500)

	rng := testutil.NewRNG(13)
	raw := make([]byte, 100_000)
	for i := range raw {
		raw[i] = byte(rng.Intn(256))
	}
	incompressible := string(raw)

	id1, err := db.Store(ctx, compressible, nil, []float32{1, 0, 0, 0})
	require.NoError(t, err)
	id2, err := db.Store(ctx, incompressible, nil, []float32{0, 1, 0, 0})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = engram.Open(ctx, dir, 4)
	require.NoError(t, err)
	defer db.Close()

	rec, ok := db.Get(id1)
	require.True(t, ok)
	require.Equal(t, compressible, rec.Content)

	rec, ok = db.Get(id2)
	require.True(t, ok)
	require.Equal(t, incompressible, rec.Content)
}

func TestEdgeCase_MostlyTombstones(t *testing.T) {
	const (
		dim  = 8
		size = 100
		keep = 10
	)

	ctx := context.Background()
	dir := t.TempDir()
	vectors := testutil.NewRNG(29).UnitVectors(size, dim)

	db, err := engram.Open(ctx, dir, dim)
	require.NoError(t, err)

	ids := make([]uint64, size)
	for i, vec := range vectors {
		ids[i], err = db.Store(ctx, fmt.Sprintf("memory-%d", i), nil, vec)
		require.NoError(t, err)
	}
	for i := 0; i < size-keep; i++ {
		require.NoError(t, db.Delete(ctx, ids[i]))
	}

	wantLive := map[uint64]bool{}
	for i := size - keep; i < size; i++ {
		wantLive[ids[i]] = true
	}

	check := func(db *engram.DB) {
		res, err := db.Recall(ctx, vectors[size-1], 2*keep)
		require.NoError(t, err)
		require.Len(t, res, keep)
		for _, r := range res {
			require.True(t, wantLive[r.ID], "tombstoned id %d returned", r.ID)
		}
	}

	check(db)
	require.NoError(t, db.Close())

	db, err = engram.Open(ctx, dir, dim)
	require.NoError(t, err)
	defer db.Close()
	check(db)
}

func TestEdgeCase_ExpiryVisibility(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	db, err := engram.Open(ctx, dir, 4)
	require.NoError(t, err)

	id, err := db.Store(ctx, "short lived", nil, []float32{1, 0, 0, 0},
		engram.WithTTL(60*time.Millisecond))
	require.NoError(t, err)

	_, ok := db.Get(id)
	require.True(t, ok, "fresh record must be visible")

	time.Sleep(150 * time.Millisecond)

	_, ok = db.Get(id)
	require.False(t, ok, "expired record still visible")
	require.Zero(t, db.Count())

	res, err := db.Recall(ctx, []float32{1, 0, 0, 0}, 5)
	require.NoError(t, err)
	require.Empty(t, res)

	// Deleting an expired record is not an error; the tombstone drops the
	// node that would otherwise idle in the graph.
	require.NoError(t, db.Delete(ctx, id))
	require.NoError(t, db.Close())

	db, err = engram.Open(ctx, dir, 4)
	require.NoError(t, err)
	defer db.Close()

	_, ok = db.Get(id)
	require.False(t, ok)
	require.Zero(t, db.Count())
}

func TestEdgeCase_DimensionOne(t *testing.T) {
	ctx := context.Background()

	db, err := engram.Open(ctx, t.TempDir(), 1, engram.WithMetric(distance.MetricL2))
	require.NoError(t, err)
	defer db.Close()

	for _, v := range []float32{1, 2, 5} {
		_, err := db.Store(ctx, fmt.Sprintf("%v", v), nil, []float32{v})
		require.NoError(t, err)
	}

	res, err := db.Recall(ctx, []float32{1.4}, 2)
	require.NoError(t, err)
	require.Len(t, res, 2)
	require.Equal(t, uint64(1), res[0].ID)
	require.Equal(t, uint64(2), res[1].ID)
}

func TestEdgeCase_DuplicateVectors(t *testing.T) {
	const copies = 5

	ctx := context.Background()
	db, err := engram.Open(ctx, t.TempDir(), 4)
	require.NoError(t, err)
	defer db.Close()

	vec := []float32{0.5, 0.5, 0, 0}
	for i := 1; i <= copies; i++ {
		_, err := db.Store(ctx, fmt.Sprintf("copy-%d", i), nil, vec)
		require.NoError(t, err)
	}

	// Identical vectors tie at distance zero; ties order by id.
	res, err := db.Recall(ctx, vec, copies)
	require.NoError(t, err)
	require.Len(t, res, copies)
	for i, r := range res {
		require.Equal(t, uint64(i+1), r.ID)
		require.Equal(t, fmt.Sprintf("copy-%d", i+1), r.Content)
		require.InDelta(t, 0.0, r.Distance, 1e-6)
	}
}

func TestEdgeCase_StoreAfterClose(t *testing.T) {
	ctx := context.Background()

	db, err := engram.Open(ctx, t.TempDir(), 4)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = db.Store(ctx, "too late", nil, []float32{1, 0, 0, 0})
	require.True(t, errors.Is(err, engram.ErrClosed))

	_, err = db.Recall(ctx, []float32{1, 0, 0, 0}, 1)
	require.True(t, errors.Is(err, engram.ErrClosed))
}
