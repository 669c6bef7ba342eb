package job

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jinford/livechat/internal/core/apperr"
)

// Scheduler はジョブのライフサイクル状態機械を所有します。
// 遷移: queued → started → {success, failed}、failed → queued（明示的な再投入のみ）。
// startedのままlastUpdateが閾値を超えたジョブはstaleとして報告されますが、
// 自動では再投入されません。
type Scheduler struct {
	repo           Repository
	staleThreshold time.Duration
	logger         *slog.Logger
	now            func() time.Time
}

// NewScheduler は新しいSchedulerを作成します
func NewScheduler(repo Repository, staleThreshold time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if staleThreshold <= 0 {
		staleThreshold = 180 * time.Second
	}
	return &Scheduler{
		repo:           repo,
		staleThreshold: staleThreshold,
		logger:         logger,
		now:            time.Now,
	}
}

// Enqueue はジョブ行をqueued状態で作成します。
// 既存の(type, video)がある場合は何もせずfalseを返します（冪等）。
func (s *Scheduler) Enqueue(ctx context.Context, typ Type, video, channel string, meta Meta) (bool, error) {
	if !typ.Valid() {
		return false, apperr.Validationf("unknown job type %q", typ)
	}
	if video == "" {
		return false, apperr.Validationf("video is required")
	}
	inserted, err := s.repo.InsertIfAbsent(ctx, &Job{
		Type:    typ,
		Video:   video,
		Channel: channel,
		State:   StateQueued,
		Meta:    meta,
	})
	if err != nil {
		return false, fmt.Errorf("failed to enqueue job: %w", err)
	}
	return inserted, nil
}

// Exists は(type, video)のジョブ行の有無を返します
func (s *Scheduler) Exists(ctx context.Context, typ Type, video string) (bool, error) {
	exists, err := s.repo.Exists(ctx, typ, video)
	if err != nil {
		return false, fmt.Errorf("failed to check job existence: %w", err)
	}
	return exists, nil
}

// Claim はqueued → startedへ遷移させます。
// タスク実行の試行ごとにちょうど1回呼ばれます。
func (s *Scheduler) Claim(ctx context.Context, typ Type, video string) (bool, error) {
	ok, err := s.repo.UpdateState(ctx, typ, video, StateQueued, StateStarted)
	if err != nil {
		return false, fmt.Errorf("failed to claim job: %w", err)
	}
	return ok, nil
}

// Fail はfailedへ遷移させ、エラー内容とmetaを記録します
func (s *Scheduler) Fail(ctx context.Context, typ Type, video, errMsg string, meta Meta) error {
	if err := s.repo.RecordFailure(ctx, typ, video, errMsg, meta); err != nil {
		return fmt.Errorf("failed to record job failure: %w", err)
	}
	return nil
}

// Succeed はsuccessへ遷移させます
func (s *Scheduler) Succeed(ctx context.Context, typ Type, video string) error {
	ok, err := s.repo.UpdateState(ctx, typ, video, StateStarted, StateSuccess)
	if err != nil {
		return fmt.Errorf("failed to mark job success: %w", err)
	}
	if !ok {
		s.logger.Warn("job not in started state on completion", "type", typ, "video", video)
	}
	return nil
}

// Retry はfailedまたはstaleなstartedジョブをqueuedへ戻します。
// 呼び出し元の明示的な操作でのみ実行されます。
func (s *Scheduler) Retry(ctx context.Context, typ Type, video string) error {
	j, err := s.repo.Get(ctx, typ, video)
	if err != nil {
		return fmt.Errorf("failed to get job: %w", err)
	}
	if j == nil {
		return &apperr.NotFoundError{Kind: "job", ID: fmt.Sprintf("%s/%s", typ, video)}
	}
	switch {
	case j.State == StateFailed:
	case j.Stale(s.now(), s.staleThreshold):
	default:
		return apperr.Validationf("job %s/%s is not retryable (state=%s)", typ, video, j.State)
	}
	from := j.State
	ok, err := s.repo.UpdateState(ctx, typ, video, from, StateQueued)
	if err != nil {
		return fmt.Errorf("failed to requeue job: %w", err)
	}
	if !ok {
		return apperr.Validationf("job %s/%s changed state concurrently", typ, video)
	}
	s.logger.Info("job requeued", "type", typ, "video", video, "from", from)
	return nil
}

// Board はジョブ一覧の要約です
type Board struct {
	QueueLen int    `json:"queueLen"`
	Started  []*Job `json:"started"`
	Failed   []*Job `json:"failed"`
	Queued   []*Job `json:"queued"`
	Recent   []*Job `json:"recent"`
}

// Board はキュー長と状態別のジョブ一覧を返します。
// startedのうちstale判定のものはMetaに印をつけます。
func (s *Scheduler) Board(ctx context.Context) (*Board, error) {
	queueLen, err := s.repo.CountQueued(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count queued jobs: %w", err)
	}
	started, err := s.repo.ListByState(ctx, StateStarted, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list started jobs: %w", err)
	}
	now := s.now()
	for _, j := range started {
		if j.Stale(now, s.staleThreshold) {
			if j.Meta == nil {
				j.Meta = Meta{}
			}
			j.Meta["stale"] = true
		}
	}
	failed, err := s.repo.ListByState(ctx, StateFailed, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list failed jobs: %w", err)
	}
	queued, err := s.repo.ListByState(ctx, StateQueued, 10)
	if err != nil {
		return nil, fmt.Errorf("failed to list queued jobs: %w", err)
	}
	recent, err := s.repo.ListByState(ctx, StateSuccess, 5)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent jobs: %w", err)
	}
	return &Board{
		QueueLen: queueLen,
		Started:  started,
		Failed:   failed,
		Queued:   queued,
		Recent:   recent,
	}, nil
}
