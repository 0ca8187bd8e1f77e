package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/jinford/news-rag/internal/core/rag"
)

// ChunkSyncAction は記事のチャンクを作成するコマンドのアクション。
// --all 指定時は全記事を順に同期し、作成済みの記事はスキップされる。
func ChunkSyncAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	articleIDStr := cmd.String("article-id")
	all := cmd.Bool("all")

	if articleIDStr == "" && !all {
		return fmt.Errorf("either --article-id or --all is required")
	}

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	if all {
		return syncAllArticles(ctx, appCtx, rag.SyncOptions{})
	}

	articleID, err := uuid.Parse(articleIDStr)
	if err != nil {
		return fmt.Errorf("invalid article id %q: %w", articleIDStr, err)
	}

	slog.Info("チャンク同期を開始", "articleID", articleID)

	result, err := appCtx.Sync.EnsureChunks(ctx, articleID, rag.SyncOptions{})
	if err != nil {
		slog.Error("チャンク同期に失敗しました", "articleID", articleID, "error", err)
		return err
	}

	printSyncResult(result)
	return nil
}

// ChunkRebuildAction は既存チャンクを破棄して再作成するコマンドのアクション
func ChunkRebuildAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	articleIDStr := cmd.String("article-id")
	all := cmd.Bool("all")

	if articleIDStr == "" && !all {
		return fmt.Errorf("either --article-id or --all is required")
	}

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	if all {
		return syncAllArticles(ctx, appCtx, rag.SyncOptions{Force: true})
	}

	articleID, err := uuid.Parse(articleIDStr)
	if err != nil {
		return fmt.Errorf("invalid article id %q: %w", articleIDStr, err)
	}

	slog.Info("チャンク再構築を開始", "articleID", articleID)

	result, err := appCtx.Sync.EnsureChunks(ctx, articleID, rag.SyncOptions{Force: true})
	if err != nil {
		slog.Error("チャンク再構築に失敗しました", "articleID", articleID, "error", err)
		return err
	}

	printSyncResult(result)
	return nil
}

// ChunkStatusAction は記事のチャンク化状況を表示するコマンドのアクション
func ChunkStatusAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	articleIDStr := cmd.String("article-id")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	articleID, err := uuid.Parse(articleIDStr)
	if err != nil {
		return fmt.Errorf("invalid article id %q: %w", articleIDStr, err)
	}

	article, err := appCtx.Repo.GetArticleByID(ctx, articleID)
	if err != nil {
		return err
	}

	count, err := appCtx.Repo.CountChunks(ctx, articleID)
	if err != nil {
		return err
	}

	fmt.Printf("Article:    %s\n", article.ID)
	fmt.Printf("Title:      %s\n", article.Title)
	fmt.Printf("Chunked:    %t\n", count > 0)
	fmt.Printf("Chunks:     %d\n", count)
	fmt.Printf("Updated at: %s\n", article.UpdatedAt.Format("2006-01-02 15:04:05"))

	return nil
}

// syncAllArticles は全記事を同期し、記事ごとの結果を表示する
func syncAllArticles(ctx context.Context, appCtx *AppContext, opts rag.SyncOptions) error {
	slog.Info("全記事のチャンク同期を開始", "force", opts.Force)

	results, err := appCtx.Sync.SyncAll(ctx, opts)
	if err != nil {
		return err
	}

	var failed int
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Printf("NG %s: %v\n", r.ArticleID, r.Err)
			continue
		}
		if r.Result.SkippedExisting {
			fmt.Printf("OK %s: skipped (already chunked)\n", r.ArticleID)
			continue
		}
		fmt.Printf("OK %s: %d chunks created\n", r.ArticleID, r.Result.Created)
	}

	slog.Info("全記事のチャンク同期が完了しました", "total", len(results), "failed", failed)

	if failed > 0 {
		return fmt.Errorf("%d of %d articles failed to sync", failed, len(results))
	}
	return nil
}

func printSyncResult(result *rag.SyncResult) {
	if result.SkippedExisting {
		fmt.Printf("Article %s is already chunked, nothing to do\n", result.ArticleID)
		return
	}
	fmt.Printf("Created %d chunks for article %s\n", result.Created, result.ArticleID)
	for _, rowErr := range result.RowErrors {
		fmt.Printf("  row error: %v\n", rowErr)
	}
}
