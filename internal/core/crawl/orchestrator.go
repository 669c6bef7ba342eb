package crawl

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/time/rate"

	"github.com/jinford/livechat/internal/core/channel"
	"github.com/jinford/livechat/internal/core/job"
	"github.com/jinford/livechat/internal/platform/metrics"
)

// MetadataRefresher はクロール前のチャンネルメタデータ更新を行います
type MetadataRefresher interface {
	RefreshMetadata(ctx context.Context, id string) error
}

// Orchestrator はチャンネル単位のクロールを駆動します。
// アップロードリストを新しい順にページングし、未発見の終了済み配信ごとに
// chatジョブを投入して、チャンネルのlastStreamウォーターマークを前進させます。
type Orchestrator struct {
	channels   channel.Repository
	refresher  MetadataRefresher
	sched      *job.Scheduler
	uploads    UploadSource
	catalog    Catalog
	limiter    *rate.Limiter
	metrics    *metrics.Metrics
	logger     *slog.Logger
	pageSize   int
	recentWait time.Duration
	now        func() time.Time
}

// Config はOrchestratorの設定です
type Config struct {
	PageSize   int           // 1ページの取得件数
	PagePause  time.Duration // ページ間のウェイト
	RecentWait time.Duration // 配信終了からチャット取得までの猶予
}

// NewOrchestrator は新しいOrchestratorを作成します
func NewOrchestrator(channels channel.Repository, refresher MetadataRefresher, sched *job.Scheduler, uploads UploadSource, catalog Catalog, m *metrics.Metrics, logger *slog.Logger, cfg Config) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 50
	}
	if cfg.PagePause <= 0 {
		cfg.PagePause = time.Second
	}
	if cfg.RecentWait <= 0 {
		cfg.RecentWait = 24 * time.Hour
	}
	return &Orchestrator{
		channels:   channels,
		refresher:  refresher,
		sched:      sched,
		uploads:    uploads,
		catalog:    catalog,
		limiter:    rate.NewLimiter(rate.Every(cfg.PagePause), 1),
		metrics:    m,
		logger:     logger,
		pageSize:   cfg.PageSize,
		recentWait: cfg.RecentWait,
		now:        time.Now,
	}
}

// CrawlOldest はlastStreamが最も古いアクティブチャンネルをクロールします。
// 対象がない場合は何もしません。
func (o *Orchestrator) CrawlOldest(ctx context.Context) error {
	ch, err := o.channels.OldestActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to pick channel: %w", err)
	}
	if ch == nil {
		o.logger.Warn("no channel to crawl")
		return nil
	}
	return o.CrawlChannel(ctx, ch.ID, ch.UploadsHandle)
}

// CrawlChannel は1チャンネルのアップロード履歴をキャッチアップ境界まで
// ページングし、発見した終了済み配信のchatジョブを投入します。
func (o *Orchestrator) CrawlChannel(ctx context.Context, channelID, uploadsHandle string) error {
	// メタデータの更新はベストエフォート。失敗してもクロールは続行する
	if err := o.refresher.RefreshMetadata(ctx, channelID); err != nil {
		o.logger.Warn("failed to refresh channel metadata", "channel", channelID, "error", err)
	}

	videoAdded := 0
	var latestStream time.Time

	for pageToken := ""; ; {
		o.logger.Debug("fetch uploads page", "uploadList", uploadsHandle, "pageToken", pageToken)
		page, err := o.uploads.UploadsPage(ctx, uploadsHandle, pageToken, o.pageSize)
		if err != nil {
			return fmt.Errorf("failed to fetch uploads page: %w", err)
		}
		o.metrics.IncCrawlPages()

		if len(page.VideoIDs) < 1 {
			break
		}

		// ページ先頭の動画に既存のchatジョブがあれば、このチャンネルは
		// 追いついている。続きの履歴は全て既知なのでページングを打ち切る
		known, err := o.sched.Exists(ctx, job.TypeChat, page.VideoIDs[0])
		if err != nil {
			return fmt.Errorf("failed to check catch-up boundary: %w", err)
		}
		if known {
			o.logger.Debug("latest upload already indexed", "video", page.VideoIDs[0])
			break
		}

		details, err := o.catalog.Videos(ctx, page.VideoIDs)
		if err != nil {
			return fmt.Errorf("failed to look up videos: %w", err)
		}

		boundary, added, pageLatest, err := o.schedulePage(ctx, channelID, page.VideoIDs, details)
		if err != nil {
			return err
		}
		videoAdded += added
		if pageLatest.After(latestStream) {
			latestStream = pageLatest
		}
		if boundary {
			break
		}

		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken

		// 外部APIのレート制限を尊重したページ間ウェイト
		if err := o.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	if !latestStream.IsZero() {
		if err := o.channels.AdvanceLastStream(ctx, channelID, latestStream); err != nil {
			return fmt.Errorf("failed to advance lastStream: %w", err)
		}
	}
	if videoAdded > 0 {
		o.logger.Info("added video", "channel", channelID, "count", videoAdded)
	}
	return nil
}

// schedulePage は1ページ分の終了済み配信を終了時刻の新しい順に処理します。
// 既知の動画に遭遇した時点でキャッチアップ境界に達したと判断します。
func (o *Orchestrator) schedulePage(ctx context.Context, channelID string, videoIDs []string, details map[string]VideoDetails) (boundary bool, added int, latest time.Time, err error) {
	type stream struct {
		id    string
		start time.Time
		end   time.Time
	}
	streams := make([]stream, 0, len(videoIDs))
	for _, id := range videoIDs {
		d, ok := details[id]
		if !ok || !d.Ended() {
			// ライブ中・非配信動画はまだ「終了済み」ではないためスキップする。
			// 最新アップロードのまま残るので、次回の定期クロールで再訪される
			continue
		}
		streams = append(streams, stream{id: id, start: d.StartTime, end: d.EndTime})
	}
	sort.Slice(streams, func(i, j int) bool {
		return streams[i].end.After(streams[j].end)
	})

	now := o.now()
	for _, st := range streams {
		if st.end.After(latest) {
			latest = st.end
		}

		meta := job.Meta{"startTime": st.start.Format(time.RFC3339)}
		recent := st.end.Add(o.recentWait).After(now)
		if recent {
			// 終了直後の配信はプラットフォーム側のリプレイ生成を待つ
			scheduled := st.end.Add(o.recentWait)
			meta["scheduled"] = scheduled.Format(time.RFC3339)
			o.logger.Info("recent video", "video", st.id, "scheduled", scheduled)
		}

		inserted, err := o.sched.Enqueue(ctx, job.TypeChat, st.id, channelID, meta)
		if err != nil {
			return false, added, latest, fmt.Errorf("failed to enqueue chat job: %w", err)
		}
		if !inserted {
			// 既知の動画に到達した。ここがキャッチアップ境界
			return true, added, latest, nil
		}
		added++
		o.metrics.IncJobsEnqueued()
	}
	return false, added, latest, nil
}
