package ask

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/jinford/news-rag/internal/core/rag"
)

// LLMClient はLLM通信インターフェース
type LLMClient interface {
	GenerateCompletion(ctx context.Context, prompt string) (string, error)
}

// ChunkRetriever は記事から関連チャンクテキストを取得するインターフェース
// rag.RetrievalService が実装する
type ChunkRetriever interface {
	FindRelevantChunks(ctx context.Context, articleID uuid.UUID, query string, limit int) ([]string, error)
}

// AskService は記事に関する質問応答のビジネスロジックを提供する
type AskService struct {
	retriever ChunkRetriever
	llm       LLMClient
	logger    *slog.Logger
}

// AskServiceOption は AskService のオプション設定
type AskServiceOption func(*AskService)

// WithAskLogger は AskService にロガーを設定する
func WithAskLogger(logger *slog.Logger) AskServiceOption {
	return func(s *AskService) {
		s.logger = logger
	}
}

// NewAskService は新しいAskServiceを作成する
func NewAskService(retriever ChunkRetriever, llm LLMClient, opts ...AskServiceOption) *AskService {
	svc := &AskService{
		retriever: retriever,
		llm:       llm,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(svc)
	}

	return svc
}

// Ask は質問に対してRAGベースで回答を生成する
// チャンク取得に失敗してもクラッシュはさせず、コンテキストなしの
// 劣化回答へフォールバックする（障害は Warn ログに残る）
func (s *AskService) Ask(ctx context.Context, params AskParams) (*AskResult, error) {
	if params.Query == "" {
		return nil, fmt.Errorf("query is required")
	}
	if params.ArticleID == uuid.Nil {
		return nil, fmt.Errorf("articleID is required")
	}

	chunkLimit := params.ChunkLimit
	if chunkLimit <= 0 {
		chunkLimit = rag.DefaultRetrievalLimit
	}

	chunks, err := s.retriever.FindRelevantChunks(ctx, params.ArticleID, params.Query, chunkLimit)
	if err != nil {
		s.logger.Warn("chunk retrieval failed, answering without article context",
			"articleID", params.ArticleID,
			"error", err,
		)
		chunks = nil
	}

	prompt := BuildAskPrompt(params.Query, chunks)

	s.logger.Info("generating answer with LLM",
		"articleID", params.ArticleID,
		"contextChunks", len(chunks),
	)

	answer, err := s.llm.GenerateCompletion(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	return &AskResult{
		Answer:        answer,
		ContextChunks: chunks,
	}, nil
}
