package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jinford/livechat/internal/core/ingest"
)

// MessageRepository はingest.MessageRepositoryを実装するPostgreSQLリポジトリ
type MessageRepository struct {
	pool *pgxpool.Pool
}

// NewMessageRepository は新しいMessageRepositoryを作成します
func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

var _ ingest.MessageRepository = (*MessageRepository)(nil)

// InsertIfAbsent はメッセージを挿入します。
// ID衝突は取り込み再実行の正常系で、falseを返すだけです。
func (r *MessageRepository) InsertIfAbsent(ctx context.Context, m *ingest.Message) (bool, error) {
	query := `
		INSERT INTO msg (id, type, video, channel, timestamp, timecode, text)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`

	tag, err := r.pool.Exec(ctx, query,
		m.ID,
		m.Type,
		m.Video,
		m.Channel,
		m.Timestamp,
		m.Timecode,
		m.Text,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert message: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
