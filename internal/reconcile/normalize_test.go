package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercases", "Pepperoni Pizza", "pepperoni pizza"},
		{"strips new marker", "NEW Pepperoni Pizza", "pepperoni pizza"},
		{"strips brand prefix", "Panago Caesar Salad", "caesar salad"},
		{"strips stacked prefixes", "NEW Panago Caesar Salad", "caesar salad"},
		{"hyphens to spaces", "7-Up", "7 up"},
		{"collapses whitespace", "  Spicy   Hawaiian  ", "spicy hawaiian"},
		{"empty", "", ""},
		{"prefix word alone survives", "New", "new"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeName(tt.input))
		})
	}
}

func TestNormalizeName_Stability(t *testing.T) {
	assert.Equal(t, NormalizeName("NEW Pepperoni Pizza"), NormalizeName("pepperoni pizza"))
	assert.Equal(t, NormalizeName("7-Up"), NormalizeName("7 Up"))
}

func TestNamesSimilar(t *testing.T) {
	assert.True(t, namesSimilar("pepperoni pizza", "peperoni pizza", 0.95))
	assert.False(t, namesSimilar("pepperoni pizza", "veggie mediterranean", 0.95))
	assert.False(t, namesSimilar("", "pepperoni pizza", 0.95))
}
