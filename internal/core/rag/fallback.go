package rag

import (
	"context"
	"hash/fnv"
)

// HashEmbedder は外部モデルに依存しない決定的なEmbedder実装
// 文字バイグラムを FNV-1a で固定長のバケットへハッシュし、L2 正規化した
// ベクトルを返す。BestEffortFallback ポリシー時の代替と、外部APIを
// 使わないテスト・ローカル開発のために存在する。意味的な類似度は
// 本物のEmbeddingモデルに遠く及ばない
type HashEmbedder struct {
	dimension int
}

// NewHashEmbedder は新しい HashEmbedder を作成する
func NewHashEmbedder(dimension int) *HashEmbedder {
	if dimension <= 0 {
		dimension = 384
	}
	return &HashEmbedder{dimension: dimension}
}

// Embed はテキストから決定的なベクトルを生成する
// 同じテキストからは常に同じベクトルが得られ、失敗しない
func (e *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vector := make([]float32, e.dimension)

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		h := fnv.New32a()
		h.Write([]byte(string(runes[i])))
		if i+1 < len(runes) {
			h.Write([]byte(string(runes[i+1])))
		}
		vector[h.Sum32()%uint32(e.dimension)]++
	}

	return NormalizeVector(vector), nil
}

// Dimension はベクトルの次元数を返す
func (e *HashEmbedder) Dimension() int {
	return e.dimension
}

// インターフェース実装の確認
var _ Embedder = (*HashEmbedder)(nil)
