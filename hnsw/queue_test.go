package hnsw

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriorityQueue_MinOrder(t *testing.T) {
	pq := newPriorityQueue(false)

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 100; i++ {
		pq.push(queueItem{id: uint64(i), dist: rng.Float32()})
	}

	prev, ok := pq.pop()
	require.True(t, ok)

	for pq.Len() > 0 {
		curr, ok := pq.pop()
		require.True(t, ok)
		assert.LessOrEqual(t, prev.dist, curr.dist)
		prev = curr
	}
}

func TestPriorityQueue_MaxOrder(t *testing.T) {
	pq := newPriorityQueue(true)

	rng := rand.New(rand.NewSource(2))
	for i := 0; i < 100; i++ {
		pq.push(queueItem{id: uint64(i), dist: rng.Float32()})
	}

	prev, ok := pq.pop()
	require.True(t, ok)

	for pq.Len() > 0 {
		curr, ok := pq.pop()
		require.True(t, ok)
		assert.GreaterOrEqual(t, prev.dist, curr.dist)
		prev = curr
	}
}

func TestPriorityQueue_TieBreak(t *testing.T) {
	t.Run("min heap pops smaller id first", func(t *testing.T) {
		pq := newPriorityQueue(false)
		pq.push(queueItem{id: 9, dist: 1})
		pq.push(queueItem{id: 3, dist: 1})
		pq.push(queueItem{id: 6, dist: 1})

		for _, want := range []uint64{3, 6, 9} {
			item, ok := pq.pop()
			require.True(t, ok)
			assert.Equal(t, want, item.id)
		}
	})

	t.Run("max heap pops larger id first", func(t *testing.T) {
		pq := newPriorityQueue(true)
		pq.push(queueItem{id: 9, dist: 1})
		pq.push(queueItem{id: 3, dist: 1})
		pq.push(queueItem{id: 6, dist: 1})

		for _, want := range []uint64{9, 6, 3} {
			item, ok := pq.pop()
			require.True(t, ok)
			assert.Equal(t, want, item.id)
		}
	})
}

func TestPriorityQueue_PushBounded(t *testing.T) {
	pq := newPriorityQueue(true)

	pq.pushBounded(queueItem{id: 1, dist: 1}, 3)
	pq.pushBounded(queueItem{id: 2, dist: 2}, 3)
	pq.pushBounded(queueItem{id: 3, dist: 3}, 3)
	require.Equal(t, 3, pq.Len())

	// Worse than the current worst: dropped.
	pq.pushBounded(queueItem{id: 4, dist: 5}, 3)
	require.Equal(t, 3, pq.Len())
	top, ok := pq.top()
	require.True(t, ok)
	assert.Equal(t, float32(3), top.dist)

	// Better: replaces the worst.
	pq.pushBounded(queueItem{id: 5, dist: 2.5}, 3)
	require.Equal(t, 3, pq.Len())

	var ids []uint64
	for pq.Len() > 0 {
		item, _ := pq.pop()
		ids = append(ids, item.id)
	}
	assert.Equal(t, []uint64{5, 2, 1}, ids)
}

func TestPriorityQueue_MinItem(t *testing.T) {
	pq := newPriorityQueue(true)

	_, ok := pq.minItem()
	assert.False(t, ok)

	pq.push(queueItem{id: 1, dist: 3})
	pq.push(queueItem{id: 2, dist: 1})
	pq.push(queueItem{id: 3, dist: 2})
	pq.push(queueItem{id: 4, dist: 1})

	// Ties resolve to the smaller id.
	item, ok := pq.minItem()
	require.True(t, ok)
	assert.Equal(t, uint64(2), item.id)
	assert.Equal(t, float32(1), item.dist)
}

func TestPriorityQueue_Reset(t *testing.T) {
	pq := newPriorityQueue(false)
	pq.push(queueItem{id: 1, dist: 1})
	pq.push(queueItem{id: 2, dist: 2})

	pq.reset()
	assert.Equal(t, 0, pq.Len())

	_, ok := pq.pop()
	assert.False(t, ok)

	pq.push(queueItem{id: 3, dist: 3})
	item, ok := pq.pop()
	require.True(t, ok)
	assert.Equal(t, uint64(3), item.id)
}
