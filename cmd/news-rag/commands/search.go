package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"
)

// SearchAction は記事内の関連チャンクを検索するコマンドのアクション
func SearchAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	articleIDStr := cmd.String("article-id")
	query := cmd.String("query")
	limit := cmd.Int("limit")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	articleID, err := uuid.Parse(articleIDStr)
	if err != nil {
		return fmt.Errorf("invalid article id %q: %w", articleIDStr, err)
	}

	if limit <= 0 {
		limit = appCtx.Config.RAG.RetrievalLimit
	}

	slog.Info("チャンク検索を開始", "articleID", articleID, "query", query, "limit", limit)

	texts, err := appCtx.Retrieval.FindRelevantChunks(ctx, articleID, query, limit)
	if err != nil {
		slog.Error("チャンク検索に失敗しました", "error", err)
		return err
	}

	if len(texts) == 0 {
		fmt.Println("No relevant chunks found")
		return nil
	}

	for i, text := range texts {
		fmt.Printf("--- [%d] ---\n%s\n\n", i+1, text)
	}
	return nil
}
