package rag

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedChunks は角度を少しずつずらした単位ベクトル付きのチャンクを登録する
// クエリ [1,0] に対する類似度はインデックスが小さいほど高い
func seedChunks(repo *stubRepo, articleID uuid.UUID, n int) {
	for i := 0; i < n; i++ {
		angle := float64(i) / float64(n)
		repo.chunks[articleID] = append(repo.chunks[articleID], &Chunk{
			ID:         uuid.New(),
			ArticleID:  articleID,
			ChunkIndex: i,
			ChunkText:  fmt.Sprintf("chunk-%d", i),
			Vector:     NormalizeVector([]float32{float32(1 - angle), float32(angle)}),
		})
	}
}

func TestRetrievalService_TopKInRankedOrder(t *testing.T) {
	article := &Article{ID: uuid.New(), Content: "irrelevant", ChunkCount: 10}
	repo := newStubRepo(article)
	seedChunks(repo, article.ID, 10)
	embedder := &stubEmbedder{vector: []float32{1, 0}}
	svc := NewRetrievalService(repo, embedder, WithRetrievalLogger(testLogger()))

	texts, err := svc.FindRelevantChunks(context.Background(), article.ID, "economy news", 3)

	require.NoError(t, err)
	assert.Equal(t, []string{"chunk-0", "chunk-1", "chunk-2"}, texts)
}

func TestRetrievalService_LimitLargerThanChunkCount(t *testing.T) {
	article := &Article{ID: uuid.New(), ChunkCount: 2}
	repo := newStubRepo(article)
	seedChunks(repo, article.ID, 2)
	svc := NewRetrievalService(repo, &stubEmbedder{vector: []float32{1, 0}}, WithRetrievalLogger(testLogger()))

	texts, err := svc.FindRelevantChunks(context.Background(), article.ID, "query", 5)

	require.NoError(t, err)
	assert.Len(t, texts, 2)
}

func TestRetrievalService_UnchunkedArticleIsEmptyResult(t *testing.T) {
	article := &Article{ID: uuid.New(), Content: "never processed"}
	repo := newStubRepo(article)
	svc := NewRetrievalService(repo, &stubEmbedder{vector: []float32{1, 0}}, WithRetrievalLogger(testLogger()))

	texts, err := svc.FindRelevantChunks(context.Background(), article.ID, "query", 5)

	require.NoError(t, err)
	assert.Empty(t, texts)
}

func TestRetrievalService_UnknownArticleIsNotFound(t *testing.T) {
	repo := newStubRepo()
	svc := NewRetrievalService(repo, &stubEmbedder{vector: []float32{1, 0}}, WithRetrievalLogger(testLogger()))

	_, err := svc.FindRelevantChunks(context.Background(), uuid.New(), "query", 5)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrArticleNotFound)
}

func TestRetrievalService_NonPositiveLimitIsEmpty(t *testing.T) {
	article := &Article{ID: uuid.New(), ChunkCount: 3}
	repo := newStubRepo(article)
	seedChunks(repo, article.ID, 3)
	embedder := &stubEmbedder{vector: []float32{1, 0}}
	svc := NewRetrievalService(repo, embedder, WithRetrievalLogger(testLogger()))

	texts, err := svc.FindRelevantChunks(context.Background(), article.ID, "query", 0)

	require.NoError(t, err)
	assert.Empty(t, texts)
	assert.Zero(t, embedder.calls, "no embedding call for non-positive limit")
}

func TestRetrievalService_EmbeddingFailurePropagatesByDefault(t *testing.T) {
	article := &Article{ID: uuid.New(), ChunkCount: 3}
	repo := newStubRepo(article)
	seedChunks(repo, article.ID, 3)
	embedder := &stubEmbedder{err: fmt.Errorf("%w: timeout", ErrEmbeddingUnavailable)}
	svc := NewRetrievalService(repo, embedder, WithRetrievalLogger(testLogger()))

	_, err := svc.FindRelevantChunks(context.Background(), article.ID, "query", 5)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmbeddingUnavailable)
}

func TestRetrievalService_GracefulDegradation(t *testing.T) {
	article := &Article{ID: uuid.New(), ChunkCount: 3}
	repo := newStubRepo(article)
	seedChunks(repo, article.ID, 3)
	embedder := &stubEmbedder{err: fmt.Errorf("%w: timeout", ErrEmbeddingUnavailable)}
	svc := NewRetrievalService(repo, embedder,
		WithRetrievalLogger(testLogger()),
		WithGracefulDegradation(),
	)

	texts, err := svc.FindRelevantChunks(context.Background(), article.ID, "query", 5)

	require.NoError(t, err)
	assert.Empty(t, texts)
}

func TestRetrievalService_EmptyQueryIsInvalid(t *testing.T) {
	repo := newStubRepo()
	svc := NewRetrievalService(repo, &stubEmbedder{}, WithRetrievalLogger(testLogger()))

	_, err := svc.FindRelevantChunks(context.Background(), uuid.New(), "", 5)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)
}
