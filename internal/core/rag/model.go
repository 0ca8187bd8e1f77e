package rag

import (
	"time"

	"github.com/google/uuid"
)

// Article は記事を表す
// コンテンツ本体は外部の記事ストアが所有し、本パッケージは
// id / content / chunkCount のみを読み書きする
type Article struct {
	ID         uuid.UUID `json:"id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	ChunkCount int       `json:"chunkCount"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Chunked は記事がチャンク化済みかどうかを返す
func (a *Article) Chunked() bool {
	return a.ChunkCount > 0
}

// Chunk は記事を分割したチャンクを表す
// (ArticleID, ChunkIndex) はシステム全体で一意であり、ChunkIndex は
// 0 始まりで連続する。ベクトルは保存前に必ず L2 正規化される
type Chunk struct {
	ID         uuid.UUID `json:"id"`
	ArticleID  uuid.UUID `json:"articleID"`
	ChunkIndex int       `json:"chunkIndex"`
	ChunkText  string    `json:"chunkText"`
	Vector     []float32 `json:"vector"`
	CreatedAt  time.Time `json:"createdAt"`
}

// SyncResult は EnsureChunks の実行結果を表す
type SyncResult struct {
	ArticleID uuid.UUID `json:"articleID"`

	// Created は実際に永続化されたチャンク数
	Created int `json:"created"`

	// SkippedExisting は既存チャンクが存在したため何もしなかった場合に true
	SkippedExisting bool `json:"skippedExisting"`

	// RowErrors は行単位フォールバック挿入で失敗した行のエラー
	RowErrors []error `json:"-"`
}

// SyncOptions は EnsureChunks の動作を制御するオプション
type SyncOptions struct {
	// Force が true の場合、既存チャンクを全削除してから再作成する
	Force bool

	// ChunkSize / Overlap が 0 の場合はサービス側のデフォルトを使用する
	ChunkSize int
	Overlap   int
}

// ArticleSyncResult は一括同期における記事単位の結果を表す
type ArticleSyncResult struct {
	ArticleID uuid.UUID   `json:"articleID"`
	Result    *SyncResult `json:"result,omitempty"`
	Err       error       `json:"-"`
}
