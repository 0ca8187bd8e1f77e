package memory

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/news-rag/internal/core/rag"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRepository_UniqueConstraintOnArticleChunkIndex(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()

	article, err := repo.CreateArticle(ctx, "title", "content")
	require.NoError(t, err)

	first := &rag.Chunk{ID: uuid.New(), ArticleID: article.ID, ChunkIndex: 0, ChunkText: "a", Vector: []float32{1}}
	inserted, rowErrs := repo.InsertChunks(ctx, []*rag.Chunk{first})
	require.Equal(t, 1, inserted)
	require.Empty(t, rowErrs)

	// 同じ (articleID, chunkIndex) の再挿入は行エラーになる
	dup := &rag.Chunk{ID: uuid.New(), ArticleID: article.ID, ChunkIndex: 0, ChunkText: "b", Vector: []float32{1}}
	next := &rag.Chunk{ID: uuid.New(), ArticleID: article.ID, ChunkIndex: 1, ChunkText: "c", Vector: []float32{1}}
	inserted, rowErrs = repo.InsertChunks(ctx, []*rag.Chunk{dup, next})

	assert.Equal(t, 1, inserted)
	require.Len(t, rowErrs, 1)
	assert.Contains(t, rowErrs[0].Error(), "unique constraint")
}

func TestRepository_GetArticleNotFound(t *testing.T) {
	repo := NewRepository()

	_, err := repo.GetArticleByID(context.Background(), uuid.New())

	require.Error(t, err)
	assert.ErrorIs(t, err, rag.ErrArticleNotFound)
}

// パイプライン全体の結合テスト: 分割 → Embedding → 永続化 → 検索
func TestPipeline_SyncThenRetrieve(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()

	content := strings.Join([]string{
		strings.Repeat("The central bank held interest rates steady this quarter. ", 30),
		strings.Repeat("The football championship final ended in a draw. ", 30),
		strings.Repeat("New exhibitions opened at the modern art museum. ", 30),
	}, "\n\n")

	article, err := repo.CreateArticle(ctx, "weekly digest", content)
	require.NoError(t, err)

	embedder := rag.NewHashEmbedder(384)
	syncSvc := rag.NewSyncService(repo, embedder, rag.WithSyncLogger(testLogger()))

	result, err := syncSvc.EnsureChunks(ctx, article.ID, rag.SyncOptions{})
	require.NoError(t, err)
	require.Greater(t, result.Created, 1)

	updated, err := repo.GetArticleByID(ctx, article.ID)
	require.NoError(t, err)
	assert.Equal(t, result.Created, updated.ChunkCount)

	retrieval := rag.NewRetrievalService(repo, embedder, rag.WithRetrievalLogger(testLogger()))
	texts, err := retrieval.FindRelevantChunks(ctx, article.ID, "interest rates", 3)
	require.NoError(t, err)
	require.NotEmpty(t, texts)
	assert.LessOrEqual(t, len(texts), 3)

	// HashEmbedder は語彙の重なりに反応するため、金利の段落が最上位に来る
	assert.Contains(t, texts[0], "interest rates")
}
