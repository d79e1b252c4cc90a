package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterMatches(t *testing.T) {
	doc := Document{
		"category": String("tech"),
		"year":     Int(2024),
		"score":    Float(0.75),
		"active":   Bool(true),
		"title":    String("introduction to graphs"),
	}

	tests := []struct {
		name     string
		filter   Filter
		expected bool
	}{
		{"Eq match", Eq("category", String("tech")), true},
		{"Eq mismatch", Eq("category", String("news")), false},
		{"Eq missing key", Eq("missing", String("x")), false},
		{"Neq", Neq("category", String("news")), true},
		{"Int vs float equality", Eq("year", Float(2024)), true},
		{"Gt", Gt("year", Int(2020)), true},
		{"Gt false", Gt("year", Int(2024)), false},
		{"Gte boundary", Gte("year", Int(2024)), true},
		{"Lt", Lt("score", Float(1.0)), true},
		{"Lte boundary", Lte("score", Float(0.75)), true},
		{"Gt on string is false", Gt("category", String("a")), false},
		{"In match", In("category", String("news"), String("tech")), true},
		{"In miss", In("category", String("news"), String("sports")), false},
		{"Contains", Contains("title", String("graphs")), true},
		{"Contains miss", Contains("title", String("trees")), false},
		{"Contains non-string", Contains("year", String("20")), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.filter.Matches(doc))
		})
	}
}

func TestFilterSetMatches(t *testing.T) {
	doc := Document{
		"category": String("tech"),
		"year":     Int(2024),
	}

	t.Run("All match", func(t *testing.T) {
		fs := NewFilterSet(
			Eq("category", String("tech")),
			Gte("year", Int(2020)),
		)
		assert.True(t, fs.Matches(doc))
	})

	t.Run("One fails", func(t *testing.T) {
		fs := NewFilterSet(
			Eq("category", String("tech")),
			Lt("year", Int(2000)),
		)
		assert.False(t, fs.Matches(doc))
	})

	t.Run("Empty set matches everything", func(t *testing.T) {
		assert.True(t, NewFilterSet().Matches(doc))
	})
}

func TestCompareEqualNulls(t *testing.T) {
	assert.True(t, compareEqual(Null(), Null()))
	assert.False(t, compareEqual(Null(), Int(0)))
	assert.False(t, compareEqual(String(""), Null()))
}
