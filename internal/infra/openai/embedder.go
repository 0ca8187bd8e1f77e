package openai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/pkoukk/tiktoken-go"

	"github.com/jinford/news-rag/internal/core/rag"
)

const (
	// DefaultEmbeddingModel はモデル未指定時のデフォルトモデル
	DefaultEmbeddingModel = "text-embedding-3-small"

	// DefaultEmbeddingDimension はOpenAI推奨のデフォルト次元
	DefaultEmbeddingDimension = 1536

	// DefaultMaxInputTokens はEmbedding APIへ送る最大トークン数
	// text-embedding-3-small の上限は8191トークン
	DefaultMaxInputTokens = 8191

	// encodingName は text-embedding-3 系と互換のエンコーディング
	encodingName = "cl100k_base"
)

// Embedder は OpenAI Embeddings API を使用してテキストをベクトルに変換する
// プロバイダのレスポンス形状を吸収し、L2 正規化済みの単一のフラットな
// ベクトルへ正規化して返す。リトライは行わない（呼び出し元の責任）
type Embedder struct {
	client    openai.Client
	encoder   *tiktoken.Tiktoken
	model     string
	dimension int
	maxTokens int
	logger    *slog.Logger
}

type embedderOptions struct {
	model     string
	dimension int
	maxTokens int
	logger    *slog.Logger
}

// EmbedderOption は Embedder のオプション設定
type EmbedderOption func(*embedderOptions)

// WithEmbeddingModel はモデル名を上書きする
func WithEmbeddingModel(model string) EmbedderOption {
	return func(o *embedderOptions) {
		o.model = model
	}
}

// WithEmbeddingDimension はベクトル次元を上書きする
func WithEmbeddingDimension(dimension int) EmbedderOption {
	return func(o *embedderOptions) {
		o.dimension = dimension
	}
}

// WithMaxInputTokens は入力の切り詰め境界を上書きする
func WithMaxInputTokens(maxTokens int) EmbedderOption {
	return func(o *embedderOptions) {
		o.maxTokens = maxTokens
	}
}

// WithEmbedderLogger はロガーを設定する
func WithEmbedderLogger(logger *slog.Logger) EmbedderOption {
	return func(o *embedderOptions) {
		o.logger = logger
	}
}

// NewEmbedder は新しい Embedder を作成する
func NewEmbedder(apiKey string, opts ...EmbedderOption) (*Embedder, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	options := embedderOptions{
		model:     DefaultEmbeddingModel,
		dimension: DefaultEmbeddingDimension,
		maxTokens: DefaultMaxInputTokens,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}

	encoder, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("failed to get tiktoken encoder: %w", err)
	}

	return &Embedder{
		client:    openai.NewClient(option.WithAPIKey(apiKey)),
		encoder:   encoder,
		model:     options.model,
		dimension: options.dimension,
		maxTokens: options.maxTokens,
		logger:    options.logger,
	}, nil
}

// Embed は単一テキストのEmbeddingを生成する
// モデルの上限を超える入力は黙って切り詰める（エラーではないが
// 観測可能性のため Warn ログを残す）。プロバイダ呼び出しの失敗は
// rag.ErrEmbeddingUnavailable をラップして返す
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	text = e.truncate(text)

	params := openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(e.model),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(text),
		},
	}

	// dimensionパラメータはtext-embedding-3系でのみ有効
	if e.dimension > 0 {
		params.Dimensions = openai.Int(int64(e.dimension))
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", rag.ErrEmbeddingUnavailable, err)
	}

	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: no embeddings in response", rag.ErrEmbeddingUnavailable)
	}

	raw := resp.Data[0].Embedding
	vector := make([]float32, len(raw))
	for i, v := range raw {
		vector[i] = float32(v)
	}

	if len(vector) != e.dimension {
		return nil, fmt.Errorf("%w: expected dimension %d, got %d",
			rag.ErrEmbeddingUnavailable, e.dimension, len(vector))
	}

	return rag.NormalizeVector(vector), nil
}

// Dimension はEmbeddingベクトルの次元数を返す
func (e *Embedder) Dimension() int {
	return e.dimension
}

// ModelName はモデル名を返す
func (e *Embedder) ModelName() string {
	return e.model
}

// truncate は入力をトークン上限まで切り詰める
func (e *Embedder) truncate(text string) string {
	tokens := e.encoder.Encode(text, nil, nil)
	if len(tokens) <= e.maxTokens {
		return text
	}

	e.logger.Warn("input truncated to embedding token budget",
		"tokens", len(tokens),
		"maxTokens", e.maxTokens,
	)
	return e.encoder.Decode(tokens[:e.maxTokens])
}

// インターフェース実装の確認
var _ rag.Embedder = (*Embedder)(nil)
