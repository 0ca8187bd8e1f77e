package rag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// DefaultRetrievalLimit は取得するチャンク数のデフォルト値
const DefaultRetrievalLimit = 5

// RetrievalService は記事IDと自由記述クエリから、意味的に関連の高い
// チャンクテキストの上位K件を返す。チャンクコレクションに対しては
// 読み取り専用であり、異なる記事・クエリに対して並行実行しても安全
type RetrievalService struct {
	repo     Repository
	embedder Embedder
	graceful bool
	logger   *slog.Logger
}

// RetrievalServiceOption は RetrievalService のオプション設定
type RetrievalServiceOption func(*RetrievalService)

// WithRetrievalLogger はロガーを設定する
func WithRetrievalLogger(logger *slog.Logger) RetrievalServiceOption {
	return func(s *RetrievalService) {
		s.logger = logger
	}
}

// WithGracefulDegradation はEmbedding失敗時にエラーではなく空結果を
// 返すモードを有効にする。チャットUIのように「コンテキストなしの劣化
// 回答」を優先する呼び出し元向けの明示的な設定であり、障害は Warn
// ログに必ず残る。デフォルトは無効（エラーを伝播する）
func WithGracefulDegradation() RetrievalServiceOption {
	return func(s *RetrievalService) {
		s.graceful = true
	}
}

// NewRetrievalService は新しい RetrievalService を作成する
func NewRetrievalService(repo Repository, embedder Embedder, opts ...RetrievalServiceOption) *RetrievalService {
	svc := &RetrievalService{
		repo:     repo,
		embedder: embedder,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(svc)
	}

	return svc
}

// FindRelevantChunks はクエリに最も関連するチャンクテキストを
// 類似度降順で最大 limit 件返す
// チャンク未作成の記事に対しては空の結果を返す（正常系）。
// 記事自体が存在しない場合は ErrArticleNotFound を返す。
// limit <= 0 の場合はランキングを実行せず空の結果を返す
// （デフォルト件数 DefaultRetrievalLimit の適用は呼び出し元の責任）
func (s *RetrievalService) FindRelevantChunks(ctx context.Context, articleID uuid.UUID, query string, limit int) ([]string, error) {
	if articleID == uuid.Nil {
		return nil, fmt.Errorf("%w: articleID is required", ErrInvalidInput)
	}
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidInput)
	}
	if limit <= 0 {
		return []string{}, nil
	}

	if _, err := s.repo.GetArticleByID(ctx, articleID); err != nil {
		return nil, fmt.Errorf("failed to get article: %w", err)
	}

	queryVector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		if s.graceful {
			s.logger.Warn("query embedding failed, degrading to empty result",
				"articleID", articleID,
				"error", err,
			)
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	chunks, err := s.repo.ListChunksByArticle(ctx, articleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	if len(chunks) == 0 {
		// チャンク化に失敗した記事や未処理の記事。エラーではない
		return []string{}, nil
	}

	ranked := Rank(queryVector, chunks)
	if limit > len(ranked) {
		limit = len(ranked)
	}

	texts := make([]string, 0, limit)
	for _, chunk := range ranked[:limit] {
		texts = append(texts, chunk.ChunkText)
	}

	s.logger.Info("relevant chunks retrieved",
		"articleID", articleID,
		"candidates", len(chunks),
		"returned", len(texts),
	)

	return texts, nil
}
