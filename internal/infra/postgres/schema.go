package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaStatements はスキーマ定義です。全て冪等で、起動のたびに適用できます。
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS channel (
		id           text PRIMARY KEY,
		name_native  text NOT NULL,
		name_all     text NOT NULL,
		thumbnail    text NOT NULL,
		upload_list  text NOT NULL,
		tags         jsonb NOT NULL DEFAULT '{}'::jsonb,
		active       boolean NOT NULL DEFAULT true,
		last_stream  timestamptz
	)`,
	`CREATE TABLE IF NOT EXISTS job (
		type         text NOT NULL,
		video        text NOT NULL,
		channel      text,
		state        text,
		last_update  timestamptz NOT NULL DEFAULT now(),
		meta         jsonb,
		error        text,
		PRIMARY KEY (type, video)
	)`,
	`CREATE TABLE IF NOT EXISTS msg (
		id         text PRIMARY KEY,
		type       text NOT NULL,
		video      text NOT NULL,
		channel    text NOT NULL,
		timestamp  timestamptz NOT NULL,
		timecode   integer NOT NULL,
		text       text NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_msg_text_fts
		ON msg USING gin (to_tsvector('simple', text))`,
	`CREATE INDEX IF NOT EXISTS idx_msg_timestamp ON msg (timestamp)`,
	`CREATE INDEX IF NOT EXISTS idx_msg_video ON msg (video)`,
	`CREATE INDEX IF NOT EXISTS idx_job_state ON job (state)`,
	`CREATE INDEX IF NOT EXISTS idx_channel_tags ON channel USING gin (tags)`,
}

// Migrate はスキーマを適用します。ワーカー起動時とmigrateコマンドから
// 呼ばれます。
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
