package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexSetGetDelete(t *testing.T) {
	ix := NewIndex()

	ix.Set(1, Document{"category": String("tech")})
	ix.Set(2, Document{"category": String("news")})

	doc, ok := ix.Get(1)
	require.True(t, ok)
	assert.Equal(t, String("tech"), doc["category"])

	assert.Equal(t, 2, ix.Len())

	ix.Delete(1)
	_, ok = ix.Get(1)
	assert.False(t, ok)
	assert.Equal(t, 1, ix.Len())

	// Deleting again is a no-op
	ix.Delete(1)
	assert.Equal(t, 1, ix.Len())
}

func TestIndexSetReplaces(t *testing.T) {
	ix := NewIndex()

	ix.Set(1, Document{"category": String("tech")})
	ix.Set(1, Document{"category": String("news")})

	// Old posting list no longer contains the id
	bitmap := ix.CompileFilter(NewFilterSet(Eq("category", String("tech"))))
	require.NotNil(t, bitmap)
	assert.True(t, bitmap.IsEmpty())

	bitmap = ix.CompileFilter(NewFilterSet(Eq("category", String("news"))))
	require.NotNil(t, bitmap)
	assert.True(t, bitmap.Contains(1))
}

func TestIndexCompileFilter(t *testing.T) {
	ix := NewIndex()

	ix.Set(1, Document{"category": String("tech"), "year": Int(2023)})
	ix.Set(2, Document{"category": String("tech"), "year": Int(2024)})
	ix.Set(3, Document{"category": String("news"), "year": Int(2024)})

	t.Run("Equal", func(t *testing.T) {
		bitmap := ix.CompileFilter(NewFilterSet(Eq("category", String("tech"))))
		require.NotNil(t, bitmap)
		assert.ElementsMatch(t, []uint64{1, 2}, bitmap.ToArray())
	})

	t.Run("And intersection", func(t *testing.T) {
		bitmap := ix.CompileFilter(NewFilterSet(
			Eq("category", String("tech")),
			Eq("year", Int(2024)),
		))
		require.NotNil(t, bitmap)
		assert.Equal(t, []uint64{2}, bitmap.ToArray())
	})

	t.Run("In union", func(t *testing.T) {
		bitmap := ix.CompileFilter(NewFilterSet(
			In("category", String("tech"), String("news")),
		))
		require.NotNil(t, bitmap)
		assert.ElementsMatch(t, []uint64{1, 2, 3}, bitmap.ToArray())
	})

	t.Run("No matches", func(t *testing.T) {
		bitmap := ix.CompileFilter(NewFilterSet(Eq("category", String("sports"))))
		require.NotNil(t, bitmap)
		assert.True(t, bitmap.IsEmpty())
	})

	t.Run("Range falls back to scan", func(t *testing.T) {
		bitmap := ix.CompileFilter(NewFilterSet(Gt("year", Int(2023))))
		assert.Nil(t, bitmap)
	})

	t.Run("Nil set", func(t *testing.T) {
		assert.Nil(t, ix.CompileFilter(nil))
		assert.Nil(t, ix.CompileFilter(NewFilterSet()))
	})
}

func TestIndexCreateFilterFunc(t *testing.T) {
	ix := NewIndex()

	ix.Set(1, Document{"category": String("tech"), "year": Int(2023)})
	ix.Set(2, Document{"category": String("news"), "year": Int(2024)})

	t.Run("Nil for empty set", func(t *testing.T) {
		assert.Nil(t, ix.CreateFilterFunc(nil))
		assert.Nil(t, ix.CreateFilterFunc(NewFilterSet()))
	})

	t.Run("Bitmap fast path", func(t *testing.T) {
		fn := ix.CreateFilterFunc(NewFilterSet(Eq("category", String("tech"))))
		require.NotNil(t, fn)
		assert.True(t, fn(1))
		assert.False(t, fn(2))
		assert.False(t, fn(99))
	})

	t.Run("Scan fallback for ranges", func(t *testing.T) {
		fn := ix.CreateFilterFunc(NewFilterSet(Gte("year", Int(2024))))
		require.NotNil(t, fn)
		assert.False(t, fn(1))
		assert.True(t, fn(2))
		assert.False(t, fn(99))
	})
}

func TestIndexStats(t *testing.T) {
	ix := NewIndex()

	ix.Set(1, Document{"category": String("tech")})
	ix.Set(2, Document{"category": String("tech")})
	ix.Set(3, Document{"category": String("news")})

	stats := ix.GetStats()
	assert.Equal(t, 3, stats.DocumentCount)
	assert.Equal(t, 1, stats.FieldCount)
	assert.Equal(t, 2, stats.BitmapCount)
	assert.Equal(t, uint64(3), stats.TotalCardinality)
}

func TestIndexLargeIDs(t *testing.T) {
	ix := NewIndex()

	// Ids beyond 32 bits must survive the posting lists.
	const bigID = uint64(1) << 40

	ix.Set(bigID, Document{"category": String("tech")})

	fn := ix.CreateFilterFunc(NewFilterSet(Eq("category", String("tech"))))
	require.NotNil(t, fn)
	assert.True(t, fn(bigID))
}
