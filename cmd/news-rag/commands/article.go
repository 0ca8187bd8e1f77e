package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/jinford/news-rag/internal/core/rag"
)

// ArticleAddAction は記事を登録し、続けてチャンクを作成するコマンドのアクション
func ArticleAddAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	title := cmd.String("title")
	contentFile := cmd.String("file")
	skipSync := cmd.Bool("skip-sync")

	content, err := os.ReadFile(contentFile)
	if err != nil {
		return fmt.Errorf("failed to read content file: %w", err)
	}

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	article, err := appCtx.Repo.CreateArticle(ctx, title, string(content))
	if err != nil {
		slog.Error("記事の登録に失敗しました", "title", title, "error", err)
		return err
	}

	slog.Info("記事を登録しました", "articleID", article.ID, "title", article.Title)
	fmt.Printf("Created article %s\n", article.ID)

	if skipSync {
		return nil
	}

	result, err := appCtx.Sync.EnsureChunks(ctx, article.ID, rag.SyncOptions{})
	if err != nil {
		slog.Error("チャンク同期に失敗しました", "articleID", article.ID, "error", err)
		return err
	}

	printSyncResult(result)
	return nil
}
