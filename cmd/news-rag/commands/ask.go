package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/jinford/news-rag/internal/core/ask"
)

// AskAction は記事に対する質問に回答するコマンドのアクション
func AskAction(ctx context.Context, cmd *cli.Command) error {
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

	slog.Info("質問応答を開始", "articleID", articleID, "query", query)

	result, err := appCtx.Ask.Ask(ctx, ask.AskParams{
		ArticleID:  articleID,
		Query:      query,
		ChunkLimit: limit,
	})
	if err != nil {
		slog.Error("質問応答に失敗しました", "error", err)
		return err
	}

	fmt.Println(result.Answer)

	if cmd.Bool("show-context") {
		fmt.Printf("\n--- context (%d chunks) ---\n", len(result.ContextChunks))
		for i, chunk := range result.ContextChunks {
			fmt.Printf("[%d] %s\n", i+1, chunk)
		}
	}
	return nil
}
