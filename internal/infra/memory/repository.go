package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jinford/news-rag/internal/core/rag"
)

// Repository は rag.Repository のインメモリ実装
// 外部データベースなしでパイプライン全体を動かすための実装で、
// ローカル開発と統合テストに使う。(articleID, chunkIndex) の一意性を
// PostgreSQL 実装と同じくエラーとして表面化させる
type Repository struct {
	mu       sync.RWMutex
	articles map[uuid.UUID]*rag.Article
	chunks   map[uuid.UUID][]*rag.Chunk
}

// NewRepository は新しいインメモリリポジトリを作成する
func NewRepository() *Repository {
	return &Repository{
		articles: make(map[uuid.UUID]*rag.Article),
		chunks:   make(map[uuid.UUID][]*rag.Chunk),
	}
}

var _ rag.Repository = (*Repository)(nil)

// GetArticleByID は ID で記事を取得する
func (r *Repository) GetArticleByID(_ context.Context, id uuid.UUID) (*rag.Article, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	article, ok := r.articles[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", rag.ErrArticleNotFound, id)
	}

	clone := *article
	return &clone, nil
}

// ListArticleIDs は全記事のIDを作成日時順で返す
func (r *Repository) ListArticleIDs(_ context.Context) ([]uuid.UUID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	articles := make([]*rag.Article, 0, len(r.articles))
	for _, a := range r.articles {
		articles = append(articles, a)
	}
	sort.Slice(articles, func(i, j int) bool {
		return articles[i].CreatedAt.Before(articles[j].CreatedAt)
	})

	ids := make([]uuid.UUID, 0, len(articles))
	for _, a := range articles {
		ids = append(ids, a.ID)
	}
	return ids, nil
}

// CreateArticle は記事を作成する
func (r *Repository) CreateArticle(_ context.Context, title, content string) (*rag.Article, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	article := &rag.Article{
		ID:        uuid.New(),
		Title:     title,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.articles[article.ID] = article

	clone := *article
	return &clone, nil
}

// CountChunks は記事に紐づくチャンク数を返す
func (r *Repository) CountChunks(_ context.Context, articleID uuid.UUID) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.chunks[articleID]), nil
}

// ListChunksByArticle は記事のチャンクを ChunkIndex 昇順で返す
func (r *Repository) ListChunksByArticle(_ context.Context, articleID uuid.UUID) ([]*rag.Chunk, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored := r.chunks[articleID]
	chunks := make([]*rag.Chunk, len(stored))
	copy(chunks, stored)
	sort.Slice(chunks, func(i, j int) bool {
		return chunks[i].ChunkIndex < chunks[j].ChunkIndex
	})
	return chunks, nil
}

// DeleteChunks は記事に紐づく全チャンクを削除する
func (r *Repository) DeleteChunks(_ context.Context, articleID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.chunks, articleID)
	return nil
}

// InsertChunks はチャンクを一括挿入する
// 既存の (articleID, chunkIndex) と衝突する行は一意制約違反として
// 行単位のエラーになり、残りの行は挿入される
func (r *Repository) InsertChunks(_ context.Context, chunks []*rag.Chunk) (int, []error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	inserted := 0
	var rowErrs []error
	for _, chunk := range chunks {
		if r.chunkIndexExists(chunk.ArticleID, chunk.ChunkIndex) {
			rowErrs = append(rowErrs, fmt.Errorf(
				"chunk %d: duplicate key value violates unique constraint on (article_id, chunk_index)",
				chunk.ChunkIndex))
			continue
		}

		clone := *chunk
		clone.Vector = append([]float32(nil), chunk.Vector...)
		if clone.CreatedAt.IsZero() {
			clone.CreatedAt = time.Now()
		}
		r.chunks[chunk.ArticleID] = append(r.chunks[chunk.ArticleID], &clone)
		inserted++
	}

	return inserted, rowErrs
}

func (r *Repository) chunkIndexExists(articleID uuid.UUID, index int) bool {
	for _, c := range r.chunks[articleID] {
		if c.ChunkIndex == index {
			return true
		}
	}
	return false
}

// UpdateArticleChunkCount は記事の非正規化チャンク数を更新する
func (r *Repository) UpdateArticleChunkCount(_ context.Context, articleID uuid.UUID, count int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	article, ok := r.articles[articleID]
	if !ok {
		return fmt.Errorf("%w: %s", rag.ErrArticleNotFound, articleID)
	}
	article.ChunkCount = count
	article.UpdatedAt = time.Now()
	return nil
}
