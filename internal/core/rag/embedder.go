package rag

import "context"

// Embedder はテキストをベクトル表現に変換するインターフェース
// 実装はプロバイダ固有のレスポンス形状を吸収し、必ず単一のフラットな
// 数値ベクトルへ正規化してから返す責務を負う。リトライは呼び出し元の
// 責任であり、実装内部では行わない
type Embedder interface {
	// Embed は単一テキストのEmbeddingを生成する
	// 失敗時は ErrEmbeddingUnavailable をラップしたエラーを返す
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimension はEmbeddingベクトルの次元数を返す
	Dimension() int
}

// FailurePolicy はEmbedding失敗時の振る舞いを表す
type FailurePolicy string

const (
	// FailClosed は失敗をそのまま呼び出し元へ伝播する（デフォルト）
	FailClosed FailurePolicy = "fail-closed"

	// BestEffortFallback は決定的なフォールバックベクトルで処理を継続する
	// 検索品質は低下するがパイプラインは停止しない
	BestEffortFallback FailurePolicy = "best-effort-fallback"
)
