package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jinford/news-rag/internal/core/ask"
	"github.com/jinford/news-rag/internal/core/rag"
	openaiinfra "github.com/jinford/news-rag/internal/infra/openai"
	"github.com/jinford/news-rag/internal/infra/postgres"
	"github.com/jinford/news-rag/internal/platform/config"
	"github.com/jinford/news-rag/internal/platform/logger"
	"github.com/jinford/news-rag/pkg/db"
)

// AppContext はコマンド実行に必要な共通コンテキストを保持する
type AppContext struct {
	Config    *config.Config
	Database  *db.DB
	Repo      *postgres.ArticleRepository
	Embedder  rag.Embedder
	Sync      *rag.SyncService
	Retrieval *rag.RetrievalService
	Ask       *ask.AskService
	Logger    *slog.Logger
}

// NewAppContext は設定ファイルを読み込み、DBに接続して AppContext を作成する
func NewAppContext(ctx context.Context, envFile string) (*AppContext, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, fmt.Errorf("設定の読み込みに失敗: %w", err)
	}

	appLogger := logger.New(logger.Config{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
	})

	database, err := db.New(ctx, db.ConnectionParams{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	embedder, err := openaiinfra.NewEmbedder(
		cfg.OpenAI.APIKey,
		openaiinfra.WithEmbeddingModel(cfg.OpenAI.EmbeddingModel),
		openaiinfra.WithEmbeddingDimension(cfg.OpenAI.EmbeddingDimension),
		openaiinfra.WithEmbedderLogger(appLogger),
	)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("Embedderの初期化に失敗: %w", err)
	}

	chatClient, err := openaiinfra.NewClient(
		cfg.OpenAI.APIKey,
		openaiinfra.WithChatModel(cfg.OpenAI.ChatModel),
		openaiinfra.WithTemperature(cfg.OpenAI.ChatTemperature),
		openaiinfra.WithMaxTokens(cfg.OpenAI.ChatMaxTokens),
	)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("LLMクライアントの初期化に失敗: %w", err)
	}

	repo := postgres.NewArticleRepository(database.Pool)

	syncOpts := []rag.SyncServiceOption{
		rag.WithSyncLogger(appLogger),
		rag.WithChunkDefaults(cfg.RAG.ChunkSize, cfg.RAG.Overlap),
		rag.WithMaxConcurrentEmbeds(cfg.RAG.MaxConcurrentEmbeds),
	}
	if cfg.RAG.EmbeddingFailurePolicy == "best_effort" {
		syncOpts = append(syncOpts, rag.WithFailurePolicy(rag.BestEffortFallback))
	}
	syncService := rag.NewSyncService(repo, embedder, syncOpts...)

	retrievalService := rag.NewRetrievalService(repo, embedder, rag.WithRetrievalLogger(appLogger))

	askService := ask.NewAskService(retrievalService, chatClient, ask.WithAskLogger(appLogger))

	return &AppContext{
		Config:    cfg,
		Database:  database,
		Repo:      repo,
		Embedder:  embedder,
		Sync:      syncService,
		Retrieval: retrievalService,
		Ask:       askService,
		Logger:    appLogger,
	}, nil
}

// Close はAppContextが保持するリソースをクリーンアップする
func (ac *AppContext) Close() {
	if ac.Database != nil {
		ac.Database.Close()
	}
}
