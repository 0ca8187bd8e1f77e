package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/jinford/news-rag/internal/core/rag"
	"github.com/jinford/news-rag/pkg/db"
)

// ArticleRepository は rag.Repository を実装する PostgreSQL リポジトリ
// チャンクのベクトル列には pgvector を使用する
type ArticleRepository struct {
	pool *pgxpool.Pool
}

// NewArticleRepository は新しい ArticleRepository を返す
func NewArticleRepository(pool *pgxpool.Pool) *ArticleRepository {
	return &ArticleRepository{pool: pool}
}

var _ rag.Repository = (*ArticleRepository)(nil)

// GetArticleByID は ID で記事を取得する
func (r *ArticleRepository) GetArticleByID(ctx context.Context, id uuid.UUID) (*rag.Article, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, title, content, chunk_count, created_at, updated_at
		 FROM articles WHERE id = $1`, id)

	var article rag.Article
	err := row.Scan(&article.ID, &article.Title, &article.Content,
		&article.ChunkCount, &article.CreatedAt, &article.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", rag.ErrArticleNotFound, id)
		}
		return nil, fmt.Errorf("failed to get article: %w", err)
	}

	return &article, nil
}

// ListArticleIDs は全記事のIDを作成日時順で返す
func (r *ArticleRepository) ListArticleIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM articles ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan article id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate articles: %w", err)
	}

	return ids, nil
}

// CreateArticle は記事を作成する
func (r *ArticleRepository) CreateArticle(ctx context.Context, title, content string) (*rag.Article, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO articles (title, content)
		 VALUES ($1, $2)
		 RETURNING id, title, content, chunk_count, created_at, updated_at`,
		title, content)

	var article rag.Article
	err := row.Scan(&article.ID, &article.Title, &article.Content,
		&article.ChunkCount, &article.CreatedAt, &article.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create article: %w", err)
	}

	return &article, nil
}

// CountChunks は記事に紐づくチャンク数を返す
func (r *ArticleRepository) CountChunks(ctx context.Context, articleID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM chunks WHERE article_id = $1`, articleID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return count, nil
}

// ListChunksByArticle は記事のチャンクを chunk_index 昇順で返す
func (r *ArticleRepository) ListChunksByArticle(ctx context.Context, articleID uuid.UUID) ([]*rag.Chunk, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, article_id, chunk_index, chunk_text, vector_embedding, created_at
		 FROM chunks WHERE article_id = $1 ORDER BY chunk_index`, articleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	defer rows.Close()

	var chunks []*rag.Chunk
	for rows.Next() {
		var chunk rag.Chunk
		var vector pgvector.Vector
		err := rows.Scan(&chunk.ID, &chunk.ArticleID, &chunk.ChunkIndex,
			&chunk.ChunkText, &vector, &chunk.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		chunk.Vector = vector.Slice()
		chunks = append(chunks, &chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chunks: %w", err)
	}

	return chunks, nil
}

// DeleteChunks は記事に紐づく全チャンクを削除する
func (r *ArticleRepository) DeleteChunks(ctx context.Context, articleID uuid.UUID) error {
	if _, err := r.pool.Exec(ctx,
		`DELETE FROM chunks WHERE article_id = $1`, articleID); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}

const insertChunkSQL = `INSERT INTO chunks (id, article_id, chunk_index, chunk_text, vector_embedding)
VALUES ($1, $2, $3, $4, $5)`

// InsertChunks はチャンクをトランザクション内で一括挿入する
// バッチ全体が拒否された場合は行単位の挿入へフォールバックし、
// 個々の失敗を越えて続行して成功件数と失敗行のエラーを返す。
// (article_id, chunk_index) の一意制約違反はここで表面化する
func (r *ArticleRepository) InsertChunks(ctx context.Context, chunks []*rag.Chunk) (int, []error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	if err := r.insertChunksBatch(ctx, chunks); err == nil {
		return len(chunks), nil
	}

	return r.insertChunksOneByOne(ctx, chunks)
}

func (r *ArticleRepository) insertChunksBatch(ctx context.Context, chunks []*rag.Chunk) error {
	_, err := db.Transact(ctx, r.pool, func(tx pgx.Tx) (struct{}, error) {
		// 同一記事への並行書き込みをプロセス横断で直列化する
		if err := acquireArticleLock(ctx, tx, chunks[0].ArticleID); err != nil {
			return struct{}{}, err
		}

		batch := &pgx.Batch{}
		for _, chunk := range chunks {
			batch.Queue(insertChunkSQL,
				chunk.ID, chunk.ArticleID, chunk.ChunkIndex,
				chunk.ChunkText, pgvector.NewVector(chunk.Vector))
		}

		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return struct{}{}, fmt.Errorf("failed to batch insert chunks: %w", err)
		}

		return struct{}{}, nil
	})
	return err
}

func (r *ArticleRepository) insertChunksOneByOne(ctx context.Context, chunks []*rag.Chunk) (int, []error) {
	inserted := 0
	var rowErrs []error

	for _, chunk := range chunks {
		_, err := r.pool.Exec(ctx, insertChunkSQL,
			chunk.ID, chunk.ArticleID, chunk.ChunkIndex,
			chunk.ChunkText, pgvector.NewVector(chunk.Vector))
		if err != nil {
			rowErrs = append(rowErrs, fmt.Errorf("chunk %d: %w", chunk.ChunkIndex, err))
			continue
		}
		inserted++
	}

	return inserted, rowErrs
}

// UpdateArticleChunkCount は記事の非正規化チャンク数を更新する
func (r *ArticleRepository) UpdateArticleChunkCount(ctx context.Context, articleID uuid.UUID, count int) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE articles SET chunk_count = $2, updated_at = now() WHERE id = $1`,
		articleID, count)
	if err != nil {
		return fmt.Errorf("failed to update chunk count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", rag.ErrArticleNotFound, articleID)
	}
	return nil
}

// SearchChunks は pgvector のコサイン距離演算子でベクトル検索を実行する
// 取得後のインメモリランキングを経由しない近傍検索が必要な場合に使う
func (r *ArticleRepository) SearchChunks(ctx context.Context, articleID uuid.UUID, queryVector []float32, limit int) ([]*rag.Chunk, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, article_id, chunk_index, chunk_text, vector_embedding, created_at
		 FROM chunks
		 WHERE article_id = $1
		 ORDER BY vector_embedding <=> $2, chunk_index
		 LIMIT $3`,
		articleID, pgvector.NewVector(queryVector), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	defer rows.Close()

	var chunks []*rag.Chunk
	for rows.Next() {
		var chunk rag.Chunk
		var vector pgvector.Vector
		err := rows.Scan(&chunk.ID, &chunk.ArticleID, &chunk.ChunkIndex,
			&chunk.ChunkText, &vector, &chunk.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		chunk.Vector = vector.Slice()
		chunks = append(chunks, &chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chunks: %w", err)
	}

	return chunks, nil
}
