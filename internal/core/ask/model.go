package ask

import "github.com/google/uuid"

// AskParams は質問応答のパラメータを表す
type AskParams struct {
	ArticleID  uuid.UUID // 対象記事のID
	Query      string    // ユーザーの質問文
	ChunkLimit int       // コンテキストに含めるチャンク数の上限（デフォルト: 5）
}

// AskResult は質問応答の結果を表す
type AskResult struct {
	Answer string `json:"answer"`

	// ContextChunks は回答の根拠として使われたチャンクテキスト
	// 取得に失敗した場合や未チャンク記事の場合は空になる
	ContextChunks []string `json:"contextChunks,omitempty"`
}
