package rag

import (
	"math"
	"sort"
)

// CosineSimilarity は2つのベクトルのコサイン類似度を返す
// どちらかのノルムが0、または次元が一致しない場合は0を返す。
// エラーや NaN を返さない全域関数として定義することで、ランキングが
// 常に結果を返せるようにしている
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Rank はチャンクをクエリベクトルとのコサイン類似度降順に並べ替えて返す
// 類似度が同点の場合は ChunkIndex 昇順で安定的に順序付けし、
// 入力スライスは変更しない。純粋関数
func Rank(queryVector []float32, chunks []*Chunk) []*Chunk {
	ranked := make([]*Chunk, len(chunks))
	copy(ranked, chunks)

	scores := make(map[*Chunk]float64, len(ranked))
	for _, c := range ranked {
		scores[c] = CosineSimilarity(queryVector, c.Vector)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		si, sj := scores[ranked[i]], scores[ranked[j]]
		if si != sj {
			return si > sj
		}
		return ranked[i].ChunkIndex < ranked[j].ChunkIndex
	})

	return ranked
}

// NormalizeVector はベクトルを L2 正規化した新しいスライスを返す
// ノルムが0の場合はゼロベクトルのコピーをそのまま返す
func NormalizeVector(vector []float32) []float32 {
	normalized := make([]float32, len(vector))

	var norm float64
	for _, v := range vector {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)

	if norm == 0 {
		copy(normalized, vector)
		return normalized
	}

	for i, v := range vector {
		normalized[i] = float32(float64(v) / norm)
	}
	return normalized
}
