package rag

import (
	"context"

	"github.com/google/uuid"
)

// Repository は記事ストアとチャンクコレクションへのデータアクセスを
// 統合するインターフェース。テスト時のモック用に消費者側で定義
type Repository interface {
	// GetArticleByID は ID で記事を取得する
	// 存在しない場合は ErrArticleNotFound をラップしたエラーを返す
	GetArticleByID(ctx context.Context, id uuid.UUID) (*Article, error)

	// ListArticleIDs は全記事の ID を返す（一括同期用）
	ListArticleIDs(ctx context.Context) ([]uuid.UUID, error)

	// CreateArticle は記事を作成する
	CreateArticle(ctx context.Context, title, content string) (*Article, error)

	// CountChunks は記事に紐づくチャンク数を返す
	CountChunks(ctx context.Context, articleID uuid.UUID) (int, error)

	// ListChunksByArticle は記事のチャンクを ChunkIndex 昇順で返す
	ListChunksByArticle(ctx context.Context, articleID uuid.UUID) ([]*Chunk, error)

	// DeleteChunks は記事に紐づく全チャンクを削除する
	DeleteChunks(ctx context.Context, articleID uuid.UUID) error

	// InsertChunks はチャンクを一括挿入する
	// ストアがバッチを拒否した場合は行単位挿入へフォールバックし、
	// 成功件数と失敗行のエラーを返す。(articleID, chunkIndex) の
	// 一意制約違反はここでエラーとして表面化する
	InsertChunks(ctx context.Context, chunks []*Chunk) (int, []error)

	// UpdateArticleChunkCount は記事の非正規化チャンク数を更新する
	// 実際に永続化された件数のみを反映しなければならない
	UpdateArticleChunkCount(ctx context.Context, articleID uuid.UUID, count int) error
}
