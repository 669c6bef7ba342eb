package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jinford/livechat/internal/core/search"
)

// SearchRepository はsearch.Repositoryを実装するPostgreSQLリポジトリ
type SearchRepository struct {
	pool *pgxpool.Pool
}

// NewSearchRepository は新しいSearchRepositoryを作成します
func NewSearchRepository(pool *pgxpool.Pool) *SearchRepository {
	return &SearchRepository{pool: pool}
}

var _ search.Repository = (*SearchRepository)(nil)

// SearchMessages は時間窓内のメッセージを全文検索します。
// チャンネル指定が最優先で、なければタグの全一致フィルターを適用します。
func (r *SearchRepository) SearchMessages(ctx context.Context, params search.MessageSearchParams) ([]*search.MessageResult, error) {
	query := `
		SELECT m.type, m.video, m.channel, m.timecode, m.text, m.timestamp
		FROM msg m`
	args := []any{params.Q, params.Window.Start, params.Window.End}

	where := `
		WHERE to_tsvector('simple', m.text) @@ websearch_to_tsquery('simple', $1)
		  AND m.timestamp >= $2 AND m.timestamp < $3`

	switch {
	case params.Channel != "":
		args = append(args, params.Channel)
		where += fmt.Sprintf(` AND m.channel = $%d`, len(args))
	case len(params.Tags) > 0:
		query += ` JOIN channel c ON m.channel = c.id`
		args = append(args, params.Tags)
		where += fmt.Sprintf(` AND c.tags ?& $%d`, len(args))
	}

	args = append(args, params.Limit, params.Offset)
	query += where + fmt.Sprintf(`
		ORDER BY m.timestamp DESC
		LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}
	defer rows.Close()

	results := make([]*search.MessageResult, 0)
	for rows.Next() {
		var m search.MessageResult
		if err := rows.Scan(&m.Type, &m.Video, &m.Channel, &m.Timecode, &m.Text, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		results = append(results, &m)
	}
	return results, rows.Err()
}

// SearchChannels はチャンネルのタイプアヘッド検索を実行します。
// ページングを安定させるためnameNative順で返します。
func (r *SearchRepository) SearchChannels(ctx context.Context, params search.ChannelSearchParams) ([]*search.ChannelResult, error) {
	query := `
		SELECT id, name_native, thumbnail, tags, active
		FROM channel`
	args := []any{}

	if params.Q != "" {
		args = append(args, "%"+params.Q+"%")
		query += fmt.Sprintf(` WHERE name_all ILIKE $%d`, len(args))
	}

	args = append(args, params.Limit, params.Offset)
	query += fmt.Sprintf(`
		ORDER BY name_native
		LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search channels: %w", err)
	}
	defer rows.Close()

	results := make([]*search.ChannelResult, 0)
	for rows.Next() {
		var (
			c        search.ChannelResult
			tagsJSON []byte
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Thumbnail, &tagsJSON, &c.Active); err != nil {
			return nil, fmt.Errorf("failed to scan channel: %w", err)
		}
		if err := json.Unmarshal(tagsJSON, &c.Tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
		}
		results = append(results, &c)
	}
	return results, rows.Err()
}

// AllTags は全チャンネルのタグキーを集約して返します
func (r *SearchRepository) AllTags(ctx context.Context) ([]string, error) {
	query := `
		SELECT DISTINCT k
		FROM channel, jsonb_object_keys(tags) AS k
		ORDER BY k`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate tags: %w", err)
	}
	defer rows.Close()

	tags := make([]string, 0)
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// Stats はテーブルの行数とデータベースサイズを返します。
// jobとmsgの行数はプランナー統計由来の概算です。
func (r *SearchRepository) Stats(ctx context.Context) (*search.Stats, error) {
	var stats search.Stats

	err := r.pool.QueryRow(ctx, `SELECT pg_database_size(current_database())`).Scan(&stats.DBSize)
	if err != nil {
		return nil, fmt.Errorf("failed to get database size: %w", err)
	}

	err = r.pool.QueryRow(ctx, `SELECT count(*) FROM channel`).Scan(&stats.ChannelCount)
	if err != nil {
		return nil, fmt.Errorf("failed to count channels: %w", err)
	}

	err = r.pool.QueryRow(ctx,
		`SELECT GREATEST(reltuples::bigint, 0) FROM pg_class WHERE oid = to_regclass('public.job')`,
	).Scan(&stats.JobCount)
	if err != nil {
		return nil, fmt.Errorf("failed to estimate job count: %w", err)
	}

	err = r.pool.QueryRow(ctx,
		`SELECT GREATEST(reltuples::bigint, 0) FROM pg_class WHERE oid = to_regclass('public.msg')`,
	).Scan(&stats.MessageCount)
	if err != nil {
		return nil, fmt.Errorf("failed to estimate message count: %w", err)
	}

	return &stats, nil
}
