package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValueKey(t *testing.T) {
	tests := []struct {
		name     string
		value    Value
		expected string
	}{
		{"Null", Null(), "null"},
		{"Int", Int(42), "i:42"},
		{"Negative int", Int(-7), "i:-7"},
		{"String", String("tech"), "s:tech"},
		{"Bool true", Bool(true), "b:1"},
		{"Bool false", Bool(false), "b:0"},
		{"Empty array", Array(nil), "a:"},
		{"Array", Array([]Value{Int(1), String("x")}), "a:i:1\x1fs:x"},
		{"Invalid", Value{}, "invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.value.Key())
		})
	}

	t.Run("Float is bit-stable", func(t *testing.T) {
		assert.Equal(t, Float(3.14).Key(), Float(3.14).Key())
		assert.NotEqual(t, Float(3.14).Key(), Float(3.15).Key())
	})
}

func TestValueAccessors(t *testing.T) {
	i, ok := Int(7).AsInt64()
	assert.True(t, ok)
	assert.Equal(t, int64(7), i)

	_, ok = Int(7).AsFloat64()
	assert.False(t, ok)

	f, ok := Float(2.5).AsFloat64()
	assert.True(t, ok)
	assert.Equal(t, 2.5, f)

	s, ok := String("hello").AsString()
	assert.True(t, ok)
	assert.Equal(t, "hello", s)

	b, ok := Bool(true).AsBool()
	assert.True(t, ok)
	assert.True(t, b)

	arr, ok := Strings("a", "b").AsArray()
	assert.True(t, ok)
	assert.Len(t, arr, 2)
	assert.Equal(t, "a", arr[0].S)
}

func TestDocumentClone(t *testing.T) {
	t.Run("Nil", func(t *testing.T) {
		var d Document
		assert.Nil(t, d.Clone())
	})

	t.Run("Deep copy of arrays", func(t *testing.T) {
		original := Document{
			"tags": Array([]Value{String("a"), String("b")}),
			"year": Int(2024),
		}

		clone := original.Clone()
		clone["tags"].A[0] = String("mutated")

		assert.Equal(t, "a", original["tags"].A[0].S)
		assert.Equal(t, "mutated", clone["tags"].A[0].S)
	})

	t.Run("CloneIfNeeded skips empty", func(t *testing.T) {
		assert.Nil(t, CloneIfNeeded(nil))
		assert.Nil(t, CloneIfNeeded(Document{}))
		assert.NotNil(t, CloneIfNeeded(Document{"k": Int(1)}))
	})
}

func TestFromStringMap(t *testing.T) {
	assert.Nil(t, FromStringMap(nil))

	doc := FromStringMap(map[string]string{"source": "wiki", "chunk": "3"})
	assert.Len(t, doc, 2)
	assert.Equal(t, String("wiki"), doc["source"])
	assert.Equal(t, String("3"), doc["chunk"])
}
