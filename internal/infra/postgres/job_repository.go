package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jinford/livechat/internal/core/job"
)

// JobRepository はjob.Repositoryを実装するPostgreSQLリポジトリ。
// queued状態はstateカラムのNULLで表現します。
type JobRepository struct {
	pool *pgxpool.Pool
}

// NewJobRepository は新しいJobRepositoryを作成します
func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{pool: pool}
}

var _ job.Repository = (*JobRepository)(nil)

// InsertIfAbsent は(type, video)のジョブ行を挿入します。
// 既存行とのコンフリクトは正常系で、falseを返すだけです。
func (r *JobRepository) InsertIfAbsent(ctx context.Context, j *job.Job) (bool, error) {
	metaJSON, err := marshalMeta(j.Meta)
	if err != nil {
		return false, err
	}

	query := `
		INSERT INTO job (type, video, channel, state, meta)
		VALUES ($1, $2, $3, NULL, $4)
		ON CONFLICT (type, video) DO NOTHING`

	tag, err := r.pool.Exec(ctx, query, string(j.Type), j.Video, nullableText(j.Channel), metaJSON)
	if err != nil {
		return false, fmt.Errorf("failed to insert job: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Get は(type, video)のジョブを取得します。存在しない場合はnilを返します。
func (r *JobRepository) Get(ctx context.Context, typ job.Type, video string) (*job.Job, error) {
	query := `
		SELECT type, video, channel, state, last_update, meta, error
		FROM job
		WHERE type = $1 AND video = $2`

	j, err := scanJob(r.pool.QueryRow(ctx, query, string(typ), video))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return j, nil
}

// Exists は(type, video)のジョブ行の有無を返します
func (r *JobRepository) Exists(ctx context.Context, typ job.Type, video string) (bool, error) {
	var one int
	err := r.pool.QueryRow(ctx,
		`SELECT 1 FROM job WHERE type = $1 AND video = $2`,
		string(typ), video,
	).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check job existence: %w", err)
	}
	return true, nil
}

// UpdateState はfromからtoへの遷移をCAS的に適用します
func (r *JobRepository) UpdateState(ctx context.Context, typ job.Type, video string, from, to job.State) (bool, error) {
	query := `
		UPDATE job
		SET state = $3, last_update = now()
		WHERE type = $1 AND video = $2 AND state IS NOT DISTINCT FROM $4`

	tag, err := r.pool.Exec(ctx, query, string(typ), video, stateToColumn(to), stateToColumn(from))
	if err != nil {
		return false, fmt.Errorf("failed to update job state: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// RecordFailure はfailedへ遷移させ、error / metaを記録します
func (r *JobRepository) RecordFailure(ctx context.Context, typ job.Type, video string, errMsg string, meta job.Meta) error {
	metaJSON, err := marshalMeta(meta)
	if err != nil {
		return err
	}

	query := `
		UPDATE job
		SET state = 'failed', error = $3, meta = COALESCE($4, meta), last_update = now()
		WHERE type = $1 AND video = $2`

	if _, err := r.pool.Exec(ctx, query, string(typ), video, errMsg, metaJSON); err != nil {
		return fmt.Errorf("failed to record job failure: %w", err)
	}
	return nil
}

// DueQueued は実行時期の来たqueuedジョブを古い順に返します。
// meta.scheduledが設定されている場合、その時刻を過ぎるまで対象外です。
func (r *JobRepository) DueQueued(ctx context.Context, now time.Time, limit int) ([]*job.Job, error) {
	query := `
		SELECT type, video, channel, state, last_update, meta, error
		FROM job
		WHERE state IS NULL
		  AND (meta->>'scheduled' IS NULL OR (meta->>'scheduled')::timestamptz <= $1)
		ORDER BY last_update ASC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list due jobs: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// CountQueued はqueuedジョブの件数を返します
func (r *JobRepository) CountQueued(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM job WHERE state IS NULL`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count queued jobs: %w", err)
	}
	return count, nil
}

// ListByState は指定状態のジョブをlast_update降順で返します。
// queuedのみ古い順（投入順に近い）で返します。limit 0は無制限です。
func (r *JobRepository) ListByState(ctx context.Context, state job.State, limit int) ([]*job.Job, error) {
	order := "DESC"
	if state == job.StateQueued {
		order = "ASC"
	}
	query := fmt.Sprintf(`
		SELECT type, video, channel, state, last_update, meta, error
		FROM job
		WHERE state IS NOT DISTINCT FROM $1
		ORDER BY last_update %s`, order)
	args := []any{stateToColumn(state)}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// stateToColumn はqueuedをNULLへ写像します
func stateToColumn(s job.State) *string {
	if s == job.StateQueued {
		return nil
	}
	v := string(s)
	return &v
}

// nullableText は空文字列をNULLへ写像します
func nullableText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func marshalMeta(meta job.Meta) ([]byte, error) {
	if meta == nil {
		return nil, nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal meta: %w", err)
	}
	return b, nil
}

// scanJob は1行をjob.Jobへ変換します
func scanJob(row pgx.Row) (*job.Job, error) {
	var (
		j        job.Job
		typ      string
		channel  *string
		state    *string
		metaJSON []byte
		errMsg   *string
	)
	if err := row.Scan(&typ, &j.Video, &channel, &state, &j.LastUpdate, &metaJSON, &errMsg); err != nil {
		return nil, err
	}
	j.Type = job.Type(typ)
	if channel != nil {
		j.Channel = *channel
	}
	if state != nil {
		j.State = job.State(*state)
	} else {
		j.State = job.StateQueued
	}
	if metaJSON != nil {
		if err := json.Unmarshal(metaJSON, &j.Meta); err != nil {
			return nil, fmt.Errorf("failed to unmarshal meta: %w", err)
		}
	}
	if errMsg != nil {
		j.Error = *errMsg
	}
	return &j, nil
}

func collectJobs(rows pgx.Rows) ([]*job.Job, error) {
	var jobs []*job.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}
