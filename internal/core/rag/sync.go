package rag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// SyncService は「記事にチャンクが存在しなければ 分割+Embedding+永続化 を
// 行う」ユースケースを冪等に提供する。チャンクコレクションの唯一の
// ライターであり、同一記事への同時呼び出しは singleflight で直列化される
// （Postgres 実装は (article_id, chunk_index) の一意制約でも保護する）
type SyncService struct {
	repo          Repository
	embedder      Embedder
	fallback      Embedder
	policy        FailurePolicy
	chunkSize     int
	overlap       int
	maxConcurrent int
	logger        *slog.Logger

	group singleflight.Group
}

// SyncServiceOption は SyncService のオプション設定
type SyncServiceOption func(*SyncService)

// WithSyncLogger はロガーを設定する
func WithSyncLogger(logger *slog.Logger) SyncServiceOption {
	return func(s *SyncService) {
		s.logger = logger
	}
}

// WithFailurePolicy はEmbedding失敗時のポリシーを設定する
// BestEffortFallback を選ぶと、失敗したチャンクには HashEmbedder による
// 決定的なフォールバックベクトルが使われる。検索品質は低下するが
// 同期処理自体は停止しない
func WithFailurePolicy(policy FailurePolicy) SyncServiceOption {
	return func(s *SyncService) {
		s.policy = policy
	}
}

// WithChunkDefaults は分割パラメータのデフォルト値を設定する
func WithChunkDefaults(chunkSize, overlap int) SyncServiceOption {
	return func(s *SyncService) {
		s.chunkSize = chunkSize
		s.overlap = overlap
	}
}

// WithMaxConcurrentEmbeds はEmbedding呼び出しの最大並列数を設定する
// デフォルトは1（逐次実行）。外部プロバイダのレート制限に合わせて
// 明示的に引き上げた場合のみ並列化される
func WithMaxConcurrentEmbeds(n int) SyncServiceOption {
	return func(s *SyncService) {
		if n > 0 {
			s.maxConcurrent = n
		}
	}
}

// NewSyncService は新しい SyncService を作成する
func NewSyncService(repo Repository, embedder Embedder, opts ...SyncServiceOption) *SyncService {
	svc := &SyncService{
		repo:          repo,
		embedder:      embedder,
		policy:        FailClosed,
		chunkSize:     DefaultChunkSize,
		overlap:       DefaultOverlap,
		maxConcurrent: 1,
		logger:        slog.Default(),
	}

	for _, opt := range opts {
		opt(svc)
	}

	svc.fallback = NewHashEmbedder(embedder.Dimension())

	return svc
}

// EnsureChunks は記事のチャンク集合を保証する
// 既にチャンクが存在し Force が指定されていなければ、Embedding 呼び出しを
// 一切行わずに SkippedExisting を返す（冪等性の保証）。Force 指定時は
// 既存チャンクを全削除してから作り直す。部分的なマージは行わない
func (s *SyncService) EnsureChunks(ctx context.Context, articleID uuid.UUID, opts SyncOptions) (*SyncResult, error) {
	if articleID == uuid.Nil {
		return nil, fmt.Errorf("%w: articleID is required", ErrInvalidInput)
	}

	result, err, _ := s.group.Do(articleID.String(), func() (any, error) {
		return s.ensureChunks(ctx, articleID, opts)
	})
	if err != nil {
		return nil, err
	}

	return result.(*SyncResult), nil
}

func (s *SyncService) ensureChunks(ctx context.Context, articleID uuid.UUID, opts SyncOptions) (*SyncResult, error) {
	article, err := s.repo.GetArticleByID(ctx, articleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get article: %w", err)
	}

	count, err := s.repo.CountChunks(ctx, articleID)
	if err != nil {
		return nil, fmt.Errorf("failed to count chunks: %w", err)
	}

	if count > 0 {
		if !opts.Force {
			return &SyncResult{ArticleID: articleID, SkippedExisting: true}, nil
		}

		if err := s.repo.DeleteChunks(ctx, articleID); err != nil {
			return nil, fmt.Errorf("failed to delete existing chunks: %w", err)
		}
		if err := s.repo.UpdateArticleChunkCount(ctx, articleID, 0); err != nil {
			return nil, fmt.Errorf("failed to reset chunk count: %w", err)
		}

		s.logger.Info("deleted existing chunks for rebuild",
			"articleID", articleID,
			"deleted", count,
		)
	}

	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = s.chunkSize
	}
	overlap := opts.Overlap
	if overlap <= 0 {
		overlap = s.overlap
	}

	texts := NewSplitter(chunkSize, overlap).Split(article.Content)
	if len(texts) == 0 {
		s.logger.Info("article has no content to chunk", "articleID", articleID)
		return &SyncResult{ArticleID: articleID}, nil
	}

	vectors, err := s.embedTexts(ctx, texts)
	if err != nil {
		return nil, err
	}

	chunks := make([]*Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = &Chunk{
			ID:         uuid.New(),
			ArticleID:  articleID,
			ChunkIndex: i,
			ChunkText:  text,
			Vector:     NormalizeVector(vectors[i]),
		}
	}

	inserted, rowErrs := s.repo.InsertChunks(ctx, chunks)
	if inserted == 0 && len(rowErrs) > 0 {
		return nil, &PersistenceError{Succeeded: 0, Failed: len(rowErrs), RowErrors: rowErrs}
	}

	// chunkCount は実際に永続化された件数のみを反映する
	if err := s.repo.UpdateArticleChunkCount(ctx, articleID, inserted); err != nil {
		return nil, fmt.Errorf("failed to update chunk count: %w", err)
	}

	s.logger.Info("chunks created",
		"articleID", articleID,
		"created", inserted,
		"rowErrors", len(rowErrs),
	)

	return &SyncResult{
		ArticleID: articleID,
		Created:   inserted,
		RowErrors: rowErrs,
	}, nil
}

// embedTexts は各チャンクテキストのEmbeddingを順序を保って生成する
// デフォルトでは1件ずつ逐次呼び出し、各呼び出しの前にキャンセルを
// 確認する。この時点では何も永続化されていないため、中断された作業は
// そのまま破棄される
func (s *SyncService) embedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))

	if s.maxConcurrent > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.maxConcurrent)
		for i, text := range texts {
			g.Go(func() error {
				vector, err := s.embedOne(gctx, text)
				if err != nil {
					return err
				}
				vectors[i] = vector
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return vectors, nil
	}

	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("chunk embedding canceled: %w", err)
		}

		vector, err := s.embedOne(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = vector
	}

	return vectors, nil
}

func (s *SyncService) embedOne(ctx context.Context, text string) ([]float32, error) {
	vector, err := s.embedder.Embed(ctx, text)
	if err == nil {
		return vector, nil
	}

	if s.policy != BestEffortFallback {
		return nil, fmt.Errorf("failed to embed chunk: %w", err)
	}

	s.logger.Warn("embedding failed, using deterministic fallback vector",
		"error", err,
	)
	return s.fallback.Embed(ctx, text)
}

// SyncAll は全記事に対して EnsureChunks を実行し、記事単位の結果を返す
// 個々の記事の失敗は記録して処理を継続する。運用者には集計された
// 合否ではなく記事ごとの成功・失敗が見える
func (s *SyncService) SyncAll(ctx context.Context, opts SyncOptions) ([]ArticleSyncResult, error) {
	ids, err := s.repo.ListArticleIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}

	results := make([]ArticleSyncResult, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return results, fmt.Errorf("bulk sync canceled: %w", err)
		}

		result, err := s.EnsureChunks(ctx, id, opts)
		if err != nil {
			s.logger.Error("article sync failed", "articleID", id, "error", err)
		}
		results = append(results, ArticleSyncResult{ArticleID: id, Result: result, Err: err})
	}

	return results, nil
}
