package lock

import (
	"context"
	"crypto/sha256"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AdvisoryLock はPostgreSQLのセッションスコープのアドバイザリロックです。
// ワーカープロセスの単一起動を保証するために使います。ロックは専用の
// コネクションに紐づき、Releaseまたはプロセス終了で解放されます。
type AdvisoryLock struct {
	conn   *pgxpool.Conn
	lockID int64
}

// GenerateLockID は文字列からロックIDを生成します
func GenerateLockID(parts ...string) int64 {
	h := sha256.New()
	for _, part := range parts {
		h.Write([]byte(part))
	}
	hash := h.Sum(nil)

	// ハッシュの最初の8バイトをint64として使用
	var id int64
	for i := range 8 {
		id = (id << 8) | int64(hash[i])
	}

	return id
}

// TryAcquire はアドバイザリロックの取得を試みます。
// 他のプロセスが保持している場合は(nil, false, nil)を返します。
// 取得したロックはReleaseするまでプールのコネクションを1本占有します。
func TryAcquire(ctx context.Context, pool *pgxpool.Pool, lockID int64) (*AdvisoryLock, bool, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire connection for lock: %w", err)
	}

	var locked bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", lockID).Scan(&locked); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("failed to acquire advisory lock: %w", err)
	}
	if !locked {
		conn.Release()
		return nil, false, nil
	}

	return &AdvisoryLock{conn: conn, lockID: lockID}, true, nil
}

// Release はアドバイザリロックを解放し、コネクションをプールへ返します
func (l *AdvisoryLock) Release(ctx context.Context) error {
	if l.conn == nil {
		return nil
	}
	_, err := l.conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", l.lockID)
	l.conn.Release()
	l.conn = nil
	if err != nil {
		return fmt.Errorf("failed to release advisory lock: %w", err)
	}
	return nil
}
