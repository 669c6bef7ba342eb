package job

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jinford/livechat/internal/core/apperr"
	"github.com/jinford/livechat/internal/platform/metrics"
)

// Crawler はチャンネルクロールの実行インターフェースです
type Crawler interface {
	// CrawlOldest はlastStreamが最も古いアクティブチャンネルをクロールします
	CrawlOldest(ctx context.Context) error
	// CrawlChannel は指定チャンネルのアップロードリストをクロールします
	CrawlChannel(ctx context.Context, channelID, uploadsHandle string) error
}

// Ingestor は動画1本のチャット取り込みインターフェースです
type Ingestor interface {
	// IngestVideo はチャットリプレイを取り込み、新規挿入件数を返します
	IngestVideo(ctx context.Context, video, channel string, startTime time.Time) (int, error)
}

// Worker はジョブキューを1件ずつ処理する常駐プロセスです。
// 同時実行数は設定上1です。外部プラットフォームのレート制限を優先した
// 選択であり、状態機械自体はより高い並列度でも安全です。
type Worker struct {
	sched         *Scheduler
	crawler       Crawler
	ingestor      Ingestor
	metrics       *metrics.Metrics
	logger        *slog.Logger
	pollInterval  time.Duration
	crawlInterval time.Duration
	tasks         chan Task
	now           func() time.Time
}

// NewWorker は新しいWorkerを作成します
func NewWorker(sched *Scheduler, crawler Crawler, ingestor Ingestor, m *metrics.Metrics, logger *slog.Logger, pollInterval, crawlInterval time.Duration) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	if pollInterval <= 0 {
		pollInterval = 10 * time.Second
	}
	return &Worker{
		sched:         sched,
		crawler:       crawler,
		ingestor:      ingestor,
		metrics:       m,
		logger:        logger,
		pollInterval:  pollInterval,
		crawlInterval: crawlInterval,
		tasks:         make(chan Task, 16),
		now:           time.Now,
	}
}

// Submit はタスクをキューに投入します。キューが満杯の場合はエラーを返します。
func (w *Worker) Submit(task Task) error {
	select {
	case w.tasks <- task:
		return nil
	default:
		return fmt.Errorf("task queue is full")
	}
}

// Run はポーリングと定期クロールトリガーを駆動します。
// ctxのキャンセルで停止します。実行途中のジョブはstartedのまま残り、
// stale判定を経て再投入できます。
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started", "pollInterval", w.pollInterval, "crawlInterval", w.crawlInterval)

	poll := time.NewTicker(w.pollInterval)
	defer poll.Stop()

	var crawlC <-chan time.Time
	if w.crawlInterval > 0 {
		crawl := time.NewTicker(w.crawlInterval)
		defer crawl.Stop()
		crawlC = crawl.C
	}

	// 起動直後に一度キューを確認する
	w.drainDue(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopping")
			return ctx.Err()
		case task := <-w.tasks:
			w.execute(ctx, task)
		case <-crawlC:
			w.execute(ctx, TriggerCrawl{})
		case <-poll.C:
			w.drainDue(ctx)
		}
	}
}

// drainDue は実行時期の来たqueuedジョブを順に処理します
func (w *Worker) drainDue(ctx context.Context) {
	queued, err := w.sched.repo.CountQueued(ctx)
	if err == nil {
		w.metrics.SetQueueDepth(queued)
	}

	jobs, err := w.sched.repo.DueQueued(ctx, w.now(), 10)
	if err != nil {
		w.logger.Error("failed to poll queued jobs", "error", err)
		return
	}
	for _, j := range jobs {
		if ctx.Err() != nil {
			return
		}
		startTime, ok := j.Meta.StartTime()
		if !ok {
			w.logger.Warn("queued job missing startTime", "type", j.Type, "video", j.Video)
		}
		w.execute(ctx, IngestVideo{
			Video:     j.Video,
			Channel:   j.Channel,
			StartTime: startTime,
		})
	}
}

// execute は単一のタスクをディスパッチします。
// タスクは閉じたバリアントであり、ここが唯一の分岐点です。
func (w *Worker) execute(ctx context.Context, task Task) {
	runID := uuid.NewString()
	logger := w.logger.With("task", task.Name(), "runID", runID)
	started := w.now()

	var err error
	switch t := task.(type) {
	case TriggerCrawl:
		err = w.crawler.CrawlOldest(ctx)
	case CrawlChannel:
		err = w.crawler.CrawlChannel(ctx, t.Channel, t.UploadsHandle)
	case IngestVideo:
		err = w.runIngest(ctx, logger, t)
	default:
		err = fmt.Errorf("unknown task %T", task)
	}

	outcome := "success"
	if err != nil {
		outcome = "failure"
		logger.Error("task failed", "error", err, "elapsed", w.now().Sub(started))
	} else {
		logger.Debug("task complete", "elapsed", w.now().Sub(started))
	}
	w.metrics.ObserveTask(task.Name(), outcome)
}

// runIngest は動画1本の取り込みをジョブ状態遷移込みで実行します
func (w *Worker) runIngest(ctx context.Context, logger *slog.Logger, t IngestVideo) error {
	claimed, err := w.sched.Claim(ctx, TypeChat, t.Video)
	if err != nil {
		return err
	}
	if !claimed {
		// queuedでない（実行中・完了済み・行なし）ジョブには触れない
		logger.Debug("job not claimable", "video", t.Video)
		return nil
	}

	added, err := w.ingestor.IngestVideo(ctx, t.Video, t.Channel, t.StartTime)
	if err != nil {
		if ue, ok := apperr.AsUnavailable(err); ok {
			// コンテンツ取得不能の確定。リトライ対象にしない終端失敗として記録する
			logger.Warn("chat unavailable", "video", t.Video, "code", ue.Code)
			return w.sched.Fail(ctx, TypeChat, t.Video, ue.Error(), Meta{
				"code":         ue.Code,
				"nonRetryable": true,
			})
		}
		if failErr := w.sched.Fail(ctx, TypeChat, t.Video, err.Error(), nil); failErr != nil {
			logger.Error("failed to record job failure", "error", failErr)
		}
		return err
	}

	logger.Info("added msg", "video", t.Video, "count", added)
	return w.sched.Succeed(ctx, TypeChat, t.Video)
}
