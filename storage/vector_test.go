package storage

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeVector(t *testing.T) {
	tests := []struct {
		name  string
		input []float32
		want  []float32
	}{
		{"unit vector unchanged", []float32{1, 0, 0}, []float32{1, 0, 0}},
		{"3-4-5 triangle", []float32{3, 4}, []float32{0.6, 0.8}},
		{"zero vector", []float32{0, 0, 0}, []float32{0, 0, 0}},
		{"empty vector", []float32{}, []float32{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeVector(tt.input)
			require.Len(t, got, len(tt.want))
			for i := range got {
				assert.InDelta(t, tt.want[i], got[i], 1e-6)
			}
		})
	}
}

func TestNormalizeVector_DoesNotModifyInput(t *testing.T) {
	input := []float32{3, 4}
	_ = NormalizeVector(input)
	assert.Equal(t, []float32{3, 4}, input)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-3, 0}), 1e-9)
	assert.Equal(t, 0.0, CosineSimilarity([]float32{0, 0}, []float32{1, 1}))
}

func TestSelectMMR(t *testing.T) {
	query := []float32{1, 0.3}
	// 0 and 1 are near duplicates close to the query; 2 points elsewhere.
	candidates := [][]float32{
		{1, 0.25},
		{1, 0.2},
		{0.3, 1},
	}

	t.Run("pure relevance keeps similarity order", func(t *testing.T) {
		got := SelectMMR(query, candidates, 3, 1)
		assert.Equal(t, []int{0, 1, 2}, got)
	})

	t.Run("balanced lambda skips the near duplicate", func(t *testing.T) {
		got := SelectMMR(query, candidates, 2, 0.5)
		assert.Equal(t, []int{0, 2}, got)
	})

	t.Run("k larger than candidates", func(t *testing.T) {
		got := SelectMMR(query, candidates, 10, 0.5)
		assert.Len(t, got, 3)
		assert.ElementsMatch(t, []int{0, 1, 2}, got)
	})

	t.Run("deterministic", func(t *testing.T) {
		first := SelectMMR(query, candidates, 3, 0.3)
		for i := 0; i < 5; i++ {
			assert.Equal(t, first, SelectMMR(query, candidates, 3, 0.3))
		}
	})

	t.Run("ties go to earlier candidate", func(t *testing.T) {
		same := [][]float32{{1, 0.3}, {1, 0.3}, {1, 0.3}}
		assert.Equal(t, []int{0}, SelectMMR(query, same, 1, 0.5))
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Nil(t, SelectMMR(query, nil, 3, 0.5))
		assert.Nil(t, SelectMMR(query, candidates, 0, 0.5))
	})
}

func TestSelectMMR_ScoresAreFinite(t *testing.T) {
	got := SelectMMR([]float32{0, 0}, [][]float32{{0, 0}, {1, 1}}, 2, 0.5)
	assert.Len(t, got, 2)
	assert.False(t, math.IsNaN(CosineSimilarity([]float32{0, 0}, []float32{0, 0})))
}
