package rag

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 0}, []float32{1, 0}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, 0.7071, CosineSimilarity([]float32{1, 0}, []float32{0.7071, 0.7071}), 1e-4)
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
}

func TestCosineSimilarity_TotalFunction(t *testing.T) {
	// ゼロノルムと次元不一致は例外ではなく類似度0として扱う
	assert.Equal(t, 0.0, CosineSimilarity([]float32{0, 0}, []float32{1, 0}))
	assert.Equal(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 0}))
	assert.Equal(t, 0.0, CosineSimilarity([]float32{1, 0, 0}, []float32{1, 0}))
	assert.Equal(t, 0.0, CosineSimilarity(nil, nil))
}

func TestRank_OrdersByDescendingSimilarity(t *testing.T) {
	chunks := []*Chunk{
		{ChunkIndex: 0, ChunkText: "orthogonal", Vector: []float32{0, 1}},
		{ChunkIndex: 1, ChunkText: "diagonal", Vector: []float32{0.7071, 0.7071}},
		{ChunkIndex: 2, ChunkText: "identical", Vector: []float32{1, 0}},
	}

	ranked := Rank([]float32{1, 0}, chunks)

	require.Len(t, ranked, 3)
	assert.Equal(t, "identical", ranked[0].ChunkText)
	assert.Equal(t, "diagonal", ranked[1].ChunkText)
	assert.Equal(t, "orthogonal", ranked[2].ChunkText)
}

func TestRank_TieBrokenByChunkIndex(t *testing.T) {
	chunks := []*Chunk{
		{ChunkIndex: 2, Vector: []float32{1, 0}},
		{ChunkIndex: 0, Vector: []float32{1, 0}},
		{ChunkIndex: 1, Vector: []float32{1, 0}},
	}

	ranked := Rank([]float32{1, 0}, chunks)

	require.Len(t, ranked, 3)
	assert.Equal(t, 0, ranked[0].ChunkIndex)
	assert.Equal(t, 1, ranked[1].ChunkIndex)
	assert.Equal(t, 2, ranked[2].ChunkIndex)
}

func TestRank_DoesNotMutateInput(t *testing.T) {
	chunks := []*Chunk{
		{ChunkIndex: 0, Vector: []float32{0, 1}},
		{ChunkIndex: 1, Vector: []float32{1, 0}},
	}

	Rank([]float32{1, 0}, chunks)

	assert.Equal(t, 0, chunks[0].ChunkIndex)
	assert.Equal(t, 1, chunks[1].ChunkIndex)
}

func TestNormalizeVector(t *testing.T) {
	normalized := NormalizeVector([]float32{3, 4})

	require.Len(t, normalized, 2)
	assert.InDelta(t, 0.6, normalized[0], 1e-6)
	assert.InDelta(t, 0.8, normalized[1], 1e-6)

	var norm float64
	for _, v := range normalized {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-6)
}

func TestNormalizeVector_ZeroVectorStaysZero(t *testing.T) {
	normalized := NormalizeVector([]float32{0, 0, 0})

	assert.Equal(t, []float32{0, 0, 0}, normalized)
}
