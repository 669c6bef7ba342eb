package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jinford/livechat/internal/core/apperr"
	"github.com/jinford/livechat/internal/core/channel"
)

// ChannelRepository はchannel.Repositoryを実装するPostgreSQLリポジトリ
type ChannelRepository struct {
	pool *pgxpool.Pool
}

// NewChannelRepository は新しいChannelRepositoryを作成します
func NewChannelRepository(pool *pgxpool.Pool) *ChannelRepository {
	return &ChannelRepository{pool: pool}
}

var _ channel.Repository = (*ChannelRepository)(nil)

// Upsert はチャンネルを挿入またはマージ更新します。
// Tags / Active がnilの場合、既存行の値を保持します。
func (r *ChannelRepository) Upsert(ctx context.Context, params channel.UpsertParams) error {
	var tagsJSON []byte
	if params.Tags != nil {
		b, err := json.Marshal(params.Tags)
		if err != nil {
			return fmt.Errorf("failed to marshal tags: %w", err)
		}
		tagsJSON = b
	}

	query := `
		INSERT INTO channel (id, name_native, name_all, thumbnail, upload_list, tags, active)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6::jsonb, '{}'::jsonb), COALESCE($7, true))
		ON CONFLICT (id) DO UPDATE SET
			name_native = EXCLUDED.name_native,
			name_all    = EXCLUDED.name_all,
			thumbnail   = EXCLUDED.thumbnail,
			upload_list = EXCLUDED.upload_list,
			tags        = COALESCE($6::jsonb, channel.tags),
			active      = COALESCE($7, channel.active)`

	_, err := r.pool.Exec(ctx, query,
		params.Info.ID,
		params.Info.NameNative,
		params.Info.NameAll,
		params.Info.Thumbnail,
		params.Info.UploadsHandle,
		tagsJSON,
		params.Active,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert channel: %w", err)
	}
	return nil
}

// GetByID はIDでチャンネルを取得します
func (r *ChannelRepository) GetByID(ctx context.Context, id string) (*channel.Channel, error) {
	query := `
		SELECT id, name_native, name_all, thumbnail, upload_list, tags, active, last_stream
		FROM channel
		WHERE id = $1`

	ch, err := scanChannel(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &apperr.NotFoundError{Kind: "channel", ID: id}
		}
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}
	return ch, nil
}

// List は全チャンネルをnameNative順で取得します
func (r *ChannelRepository) List(ctx context.Context) ([]*channel.Channel, error) {
	query := `
		SELECT id, name_native, name_all, thumbnail, upload_list, tags, active, last_stream
		FROM channel
		ORDER BY name_native`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}
	defer rows.Close()

	var channels []*channel.Channel
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan channel: %w", err)
		}
		channels = append(channels, ch)
	}
	return channels, rows.Err()
}

// OldestActive はlastStreamが最も古いアクティブチャンネルを返します。
// 未クロール（lastStreamがNULL）のチャンネルを最優先します。
func (r *ChannelRepository) OldestActive(ctx context.Context) (*channel.Channel, error) {
	query := `
		SELECT id, name_native, name_all, thumbnail, upload_list, tags, active, last_stream
		FROM channel
		WHERE active
		ORDER BY last_stream ASC NULLS FIRST
		LIMIT 1`

	ch, err := scanChannel(r.pool.QueryRow(ctx, query))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to pick oldest channel: %w", err)
	}
	return ch, nil
}

// AdvanceLastStream はlastStreamを単調に前進させます。
// 並行する更新があっても、より新しい値のみが残ります。
func (r *ChannelRepository) AdvanceLastStream(ctx context.Context, id string, t time.Time) error {
	query := `
		UPDATE channel
		SET last_stream = $2
		WHERE id = $1 AND (last_stream IS NULL OR last_stream < $2)`

	_, err := r.pool.Exec(ctx, query, id, t)
	if err != nil {
		return fmt.Errorf("failed to advance last_stream: %w", err)
	}
	return nil
}

// scanChannel は1行をchannel.Channelへ変換します
func scanChannel(row pgx.Row) (*channel.Channel, error) {
	var (
		ch         channel.Channel
		tagsJSON   []byte
		lastStream *time.Time
	)
	if err := row.Scan(
		&ch.ID,
		&ch.NameNative,
		&ch.NameAll,
		&ch.Thumbnail,
		&ch.UploadsHandle,
		&tagsJSON,
		&ch.Active,
		&lastStream,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(tagsJSON, &ch.Tags); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
	}
	ch.LastStream = lastStream
	return &ch, nil
}
