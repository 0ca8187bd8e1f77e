package rag

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput はパラメータが不正な場合のエラー
	// I/O を行う前に同期的に返される
	ErrInvalidInput = errors.New("invalid input")

	// ErrEmbeddingUnavailable はEmbeddingプロバイダに到達できない、
	// または利用不能なレスポンスを返した場合のエラー
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")

	// ErrArticleNotFound は記事が存在しない場合のエラー
	// チャンク未作成の記事に対する検索はエラーではなく空結果を返す
	ErrArticleNotFound = errors.New("article not found")
)

// PersistenceError はチャンク永続化の部分的な失敗を表す
// バッチ挿入が拒否され行単位フォールバックでも一部の行が失敗した場合に、
// 成功件数と行ごとのエラーを保持したまま呼び出し元へ返される
type PersistenceError struct {
	Succeeded int
	Failed    int
	RowErrors []error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist chunks: %d succeeded, %d failed", e.Succeeded, e.Failed)
}

// Unwrap は行ごとのエラーを返し、errors.Is / errors.As による検査を可能にする
func (e *PersistenceError) Unwrap() []error {
	return e.RowErrors
}
