package rag

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEmbedder struct {
	dimension int
	calls     int
	err       error
	vector    []float32
}

func (e *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	if e.vector != nil {
		out := make([]float32, len(e.vector))
		copy(out, e.vector)
		return out, nil
	}
	vector := make([]float32, e.Dimension())
	vector[0] = 3
	vector[1] = 4
	return vector, nil
}

func (e *stubEmbedder) Dimension() int {
	if e.dimension > 0 {
		return e.dimension
	}
	return 4
}

type stubRepo struct {
	articles map[uuid.UUID]*Article
	chunks   map[uuid.UUID][]*Chunk

	insertFn    func(chunks []*Chunk) (int, []error)
	deleteCalls int
	insertCalls int
}

func newStubRepo(articles ...*Article) *stubRepo {
	r := &stubRepo{
		articles: make(map[uuid.UUID]*Article),
		chunks:   make(map[uuid.UUID][]*Chunk),
	}
	for _, a := range articles {
		r.articles[a.ID] = a
	}
	return r
}

func (r *stubRepo) GetArticleByID(ctx context.Context, id uuid.UUID) (*Article, error) {
	article, ok := r.articles[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrArticleNotFound, id)
	}
	return article, nil
}

func (r *stubRepo) ListArticleIDs(ctx context.Context) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(r.articles))
	for id := range r.articles {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

func (r *stubRepo) CreateArticle(ctx context.Context, title, content string) (*Article, error) {
	article := &Article{ID: uuid.New(), Title: title, Content: content}
	r.articles[article.ID] = article
	return article, nil
}

func (r *stubRepo) CountChunks(ctx context.Context, articleID uuid.UUID) (int, error) {
	return len(r.chunks[articleID]), nil
}

func (r *stubRepo) ListChunksByArticle(ctx context.Context, articleID uuid.UUID) ([]*Chunk, error) {
	chunks := r.chunks[articleID]
	sorted := make([]*Chunk, len(chunks))
	copy(sorted, chunks)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ChunkIndex < sorted[j].ChunkIndex })
	return sorted, nil
}

func (r *stubRepo) DeleteChunks(ctx context.Context, articleID uuid.UUID) error {
	r.deleteCalls++
	delete(r.chunks, articleID)
	return nil
}

func (r *stubRepo) InsertChunks(ctx context.Context, chunks []*Chunk) (int, []error) {
	r.insertCalls++
	if r.insertFn != nil {
		return r.insertFn(chunks)
	}
	for _, c := range chunks {
		r.chunks[c.ArticleID] = append(r.chunks[c.ArticleID], c)
	}
	return len(chunks), nil
}

func (r *stubRepo) UpdateArticleChunkCount(ctx context.Context, articleID uuid.UUID, count int) error {
	if article, ok := r.articles[articleID]; ok {
		article.ChunkCount = count
	}
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func longContent() string {
	paras := make([]string, 6)
	for i := range paras {
		paras[i] = strings.Repeat(fmt.Sprintf("paragraph %d text ", i), 40)
	}
	return strings.Join(paras, "\n\n")
}

func TestSyncService_EnsureChunks_CreatesChunks(t *testing.T) {
	article := &Article{ID: uuid.New(), Content: longContent()}
	repo := newStubRepo(article)
	embedder := &stubEmbedder{}
	svc := NewSyncService(repo, embedder, WithSyncLogger(testLogger()))

	result, err := svc.EnsureChunks(context.Background(), article.ID, SyncOptions{})

	require.NoError(t, err)
	assert.False(t, result.SkippedExisting)
	assert.Greater(t, result.Created, 0)
	assert.Equal(t, result.Created, article.ChunkCount)
	assert.Equal(t, result.Created, embedder.calls)

	// チャンクインデックスは0始まりで連続
	chunks, _ := repo.ListChunksByArticle(context.Background(), article.ID)
	require.Len(t, chunks, result.Created)
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.ChunkIndex)
		assert.NotEmpty(t, chunk.ChunkText)
	}
}

func TestSyncService_EnsureChunks_Idempotent(t *testing.T) {
	article := &Article{ID: uuid.New(), Content: longContent()}
	repo := newStubRepo(article)
	embedder := &stubEmbedder{}
	svc := NewSyncService(repo, embedder, WithSyncLogger(testLogger()))

	first, err := svc.EnsureChunks(context.Background(), article.ID, SyncOptions{})
	require.NoError(t, err)
	callsAfterFirst := embedder.calls

	second, err := svc.EnsureChunks(context.Background(), article.ID, SyncOptions{})
	require.NoError(t, err)

	assert.True(t, second.SkippedExisting)
	assert.Zero(t, second.Created)
	assert.Equal(t, callsAfterFirst, embedder.calls, "no embedding calls on skip")
	assert.Equal(t, first.Created, article.ChunkCount)
}

func TestSyncService_EnsureChunks_EmptyContent(t *testing.T) {
	article := &Article{ID: uuid.New(), Content: "   \n  "}
	repo := newStubRepo(article)
	embedder := &stubEmbedder{}
	svc := NewSyncService(repo, embedder, WithSyncLogger(testLogger()))

	result, err := svc.EnsureChunks(context.Background(), article.ID, SyncOptions{})

	require.NoError(t, err)
	assert.Zero(t, result.Created)
	assert.False(t, result.SkippedExisting)
	assert.Zero(t, article.ChunkCount)
	assert.Zero(t, repo.insertCalls, "storage must not be touched")
	assert.Zero(t, embedder.calls)
}

func TestSyncService_EnsureChunks_ForceRebuild(t *testing.T) {
	article := &Article{ID: uuid.New(), Content: longContent(), ChunkCount: 5}
	repo := newStubRepo(article)
	for i := 0; i < 5; i++ {
		repo.chunks[article.ID] = append(repo.chunks[article.ID], &Chunk{
			ID:         uuid.New(),
			ArticleID:  article.ID,
			ChunkIndex: i,
			ChunkText:  "stale",
			Vector:     []float32{1, 0, 0, 0},
		})
	}
	embedder := &stubEmbedder{}
	svc := NewSyncService(repo, embedder, WithSyncLogger(testLogger()))

	result, err := svc.EnsureChunks(context.Background(), article.ID, SyncOptions{Force: true})

	require.NoError(t, err)
	assert.Equal(t, 1, repo.deleteCalls)
	assert.False(t, result.SkippedExisting)
	assert.Equal(t, result.Created, article.ChunkCount)

	// 旧チャンクは完全に消え、新チャンクのみが残る
	chunks, _ := repo.ListChunksByArticle(context.Background(), article.ID)
	require.Len(t, chunks, result.Created)
	for _, chunk := range chunks {
		assert.NotEqual(t, "stale", chunk.ChunkText)
	}
}

func TestSyncService_EnsureChunks_FailClosed(t *testing.T) {
	article := &Article{ID: uuid.New(), Content: longContent()}
	repo := newStubRepo(article)
	embedder := &stubEmbedder{err: fmt.Errorf("%w: provider unreachable", ErrEmbeddingUnavailable)}
	svc := NewSyncService(repo, embedder, WithSyncLogger(testLogger()))

	result, err := svc.EnsureChunks(context.Background(), article.ID, SyncOptions{})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmbeddingUnavailable)
	assert.Nil(t, result)
	assert.Zero(t, repo.insertCalls, "nothing may be persisted on failure")
	assert.Zero(t, article.ChunkCount)
}

func TestSyncService_EnsureChunks_BestEffortFallback(t *testing.T) {
	article := &Article{ID: uuid.New(), Content: longContent()}
	repo := newStubRepo(article)
	embedder := &stubEmbedder{err: fmt.Errorf("%w: provider unreachable", ErrEmbeddingUnavailable)}
	svc := NewSyncService(repo, embedder,
		WithSyncLogger(testLogger()),
		WithFailurePolicy(BestEffortFallback),
	)

	result, err := svc.EnsureChunks(context.Background(), article.ID, SyncOptions{})

	require.NoError(t, err)
	assert.Greater(t, result.Created, 0)

	chunks, _ := repo.ListChunksByArticle(context.Background(), article.ID)
	for _, chunk := range chunks {
		assert.Len(t, chunk.Vector, embedder.Dimension())
	}
}

func TestSyncService_EnsureChunks_VectorsNormalized(t *testing.T) {
	article := &Article{ID: uuid.New(), Content: "short article body"}
	repo := newStubRepo(article)
	embedder := &stubEmbedder{vector: []float32{3, 4}}
	svc := NewSyncService(repo, embedder, WithSyncLogger(testLogger()))

	_, err := svc.EnsureChunks(context.Background(), article.ID, SyncOptions{})
	require.NoError(t, err)

	chunks, _ := repo.ListChunksByArticle(context.Background(), article.ID)
	require.Len(t, chunks, 1)
	assert.InDelta(t, 0.6, chunks[0].Vector[0], 1e-6)
	assert.InDelta(t, 0.8, chunks[0].Vector[1], 1e-6)
}

func TestSyncService_EnsureChunks_PartialInsertReported(t *testing.T) {
	article := &Article{ID: uuid.New(), Content: longContent()}
	repo := newStubRepo(article)
	rowErr := errors.New("row rejected")
	repo.insertFn = func(chunks []*Chunk) (int, []error) {
		for _, c := range chunks[:len(chunks)-1] {
			repo.chunks[c.ArticleID] = append(repo.chunks[c.ArticleID], c)
		}
		return len(chunks) - 1, []error{rowErr}
	}
	svc := NewSyncService(repo, &stubEmbedder{}, WithSyncLogger(testLogger()))

	result, err := svc.EnsureChunks(context.Background(), article.ID, SyncOptions{})

	require.NoError(t, err)
	require.Len(t, result.RowErrors, 1)
	assert.ErrorIs(t, result.RowErrors[0], rowErr)

	// chunkCount は実際に永続化された件数のみを反映する
	assert.Equal(t, result.Created, article.ChunkCount)
	chunks, _ := repo.ListChunksByArticle(context.Background(), article.ID)
	assert.Len(t, chunks, result.Created)
}

func TestSyncService_EnsureChunks_AllRowsFailed(t *testing.T) {
	article := &Article{ID: uuid.New(), Content: "short body"}
	repo := newStubRepo(article)
	repo.insertFn = func(chunks []*Chunk) (int, []error) {
		errs := make([]error, len(chunks))
		for i := range errs {
			errs[i] = errors.New("row rejected")
		}
		return 0, errs
	}
	svc := NewSyncService(repo, &stubEmbedder{}, WithSyncLogger(testLogger()))

	result, err := svc.EnsureChunks(context.Background(), article.ID, SyncOptions{})

	require.Error(t, err)
	assert.Nil(t, result)

	var persistErr *PersistenceError
	require.ErrorAs(t, err, &persistErr)
	assert.Zero(t, persistErr.Succeeded)
	assert.Equal(t, 1, persistErr.Failed)
}

func TestSyncService_EnsureChunks_ArticleNotFound(t *testing.T) {
	repo := newStubRepo()
	svc := NewSyncService(repo, &stubEmbedder{}, WithSyncLogger(testLogger()))

	_, err := svc.EnsureChunks(context.Background(), uuid.New(), SyncOptions{})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrArticleNotFound)
}

func TestSyncService_EnsureChunks_NilArticleID(t *testing.T) {
	repo := newStubRepo()
	svc := NewSyncService(repo, &stubEmbedder{}, WithSyncLogger(testLogger()))

	_, err := svc.EnsureChunks(context.Background(), uuid.Nil, SyncOptions{})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSyncService_EnsureChunks_Canceled(t *testing.T) {
	article := &Article{ID: uuid.New(), Content: longContent()}
	repo := newStubRepo(article)
	svc := NewSyncService(repo, &stubEmbedder{}, WithSyncLogger(testLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.EnsureChunks(ctx, article.ID, SyncOptions{})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, repo.insertCalls)
}

func TestSyncService_SyncAll_PerArticleResults(t *testing.T) {
	healthy := &Article{ID: uuid.New(), Content: "healthy article body"}
	empty := &Article{ID: uuid.New(), Content: ""}
	repo := newStubRepo(healthy, empty)
	svc := NewSyncService(repo, &stubEmbedder{}, WithSyncLogger(testLogger()))

	results, err := svc.SyncAll(context.Background(), SyncOptions{})

	require.NoError(t, err)
	require.Len(t, results, 2)

	byID := make(map[uuid.UUID]ArticleSyncResult)
	for _, r := range results {
		byID[r.ArticleID] = r
	}
	assert.Equal(t, 1, byID[healthy.ID].Result.Created)
	assert.Zero(t, byID[empty.ID].Result.Created)
}
