package postgres

import (
	"context"
	"crypto/sha256"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// articleLockID は記事IDからアドバイザリロックIDを導出する
// ハッシュの最初の8バイトをint64として使用する
func articleLockID(articleID uuid.UUID) int64 {
	h := sha256.New()
	h.Write([]byte("chunks:"))
	h.Write([]byte(articleID.String()))
	hash := h.Sum(nil)

	var id int64
	for i := range 8 {
		id = (id << 8) | int64(hash[i])
	}

	return id
}

// acquireArticleLock はトランザクションスコープのPostgreSQLアドバイザリ
// ロックを取得する（pg_advisory_xact_lock）。トランザクション終了時に
// 自動的に解放されるため、明示的な解放は不要。
// 同一記事に対する削除＋一括挿入の組をプロセス横断で直列化し、
// 強制再チャンク中の空白期間を他の書き込みから観測不能にする
func acquireArticleLock(ctx context.Context, tx pgx.Tx, articleID uuid.UUID) error {
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", articleLockID(articleID)); err != nil {
		return fmt.Errorf("failed to acquire advisory lock: %w", err)
	}
	return nil
}
