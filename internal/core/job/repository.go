package job

import (
	"context"
	"time"
)

// Repository はジョブ行の永続化操作を提供します
type Repository interface {
	// InsertIfAbsent は(type, video)のジョブ行を挿入します。
	// 既存行がある場合は何もせずfalseを返します（コンフリクトは正常系）。
	InsertIfAbsent(ctx context.Context, j *Job) (bool, error)

	// Get は(type, video)のジョブを取得します。存在しない場合はnilを返します。
	Get(ctx context.Context, typ Type, video string) (*Job, error)

	// Exists は(type, video)のジョブ行の有無を返します
	Exists(ctx context.Context, typ Type, video string) (bool, error)

	// UpdateState は状態を遷移させ、last_updateを現在時刻にします。
	// fromStateが一致する行のみ更新し、更新できたかどうかを返します。
	UpdateState(ctx context.Context, typ Type, video string, from, to State) (bool, error)

	// RecordFailure はfailedへ遷移させ、error / metaを記録します
	RecordFailure(ctx context.Context, typ Type, video string, errMsg string, meta Meta) error

	// DueQueued はmeta.scheduledが未設定または経過済みのqueuedジョブを
	// 古い順に返します
	DueQueued(ctx context.Context, now time.Time, limit int) ([]*Job, error)

	// CountQueued はqueuedジョブの件数を返します
	CountQueued(ctx context.Context) (int, error)

	// ListByState は指定状態のジョブをlast_update降順で返します
	ListByState(ctx context.Context, state State, limit int) ([]*Job, error)
}
