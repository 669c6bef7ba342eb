package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/jinford/livechat/internal/core/apperr"
	"github.com/jinford/livechat/internal/core/job"
)

// JobSubmitAction は作業を投入するコマンドのアクション。
// --scrape: 最も古いアクティブチャンネルをクロール
// --channel: 指定チャンネルをクロール（どちらも同期実行）
// --video: 動画1本のチャット取り込みジョブをキューへ投入
func JobSubmitAction(ctx context.Context, cmd *cli.Command) error {
	scrape := cmd.Bool("scrape")
	channelID := cmd.String("channel")
	video := cmd.String("video")
	envFile := cmd.String("env")

	if !scrape && channelID == "" && video == "" {
		return fmt.Errorf("one of --scrape, --channel, --video is required")
	}

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	if scrape {
		if err := appCtx.Orchestrator.CrawlOldest(ctx); err != nil {
			return err
		}
	}

	if channelID != "" {
		ch, err := appCtx.Channels.GetByID(ctx, channelID)
		if err != nil {
			return err
		}
		if err := appCtx.Orchestrator.CrawlChannel(ctx, ch.ID, ch.UploadsHandle); err != nil {
			return err
		}
	}

	if video != "" {
		details, err := appCtx.YouTube.Videos(ctx, []string{video})
		if err != nil {
			return err
		}
		d, ok := details[video]
		if !ok || d.StartTime.IsZero() {
			return &apperr.NotFoundError{Kind: "video", ID: video}
		}
		// 未登録チャンネルの動画は受け付けない
		if _, err := appCtx.Channels.GetByID(ctx, d.ChannelID); err != nil {
			return err
		}
		inserted, err := appCtx.Scheduler.Enqueue(ctx, job.TypeChat, video, d.ChannelID, job.Meta{
			"startTime": d.StartTime.Format(time.RFC3339),
		})
		if err != nil {
			return err
		}
		if inserted {
			appCtx.Logger.Info("job enqueued", "video", video)
		} else {
			// 再投入は常に安全なno-op
			appCtx.Logger.Info("job already exists", "video", video)
		}
	}

	return nil
}

// JobListAction はジョブボード（キュー長と状態別一覧）を表示します
func JobListAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	board, err := appCtx.Scheduler.Board(ctx)
	if err != nil {
		return err
	}
	return printJSON(board)
}

// JobRetryAction はfailedまたはstaleなジョブをキューへ戻します
func JobRetryAction(ctx context.Context, cmd *cli.Command) error {
	video := cmd.String("video")
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	if err := appCtx.Scheduler.Retry(ctx, job.TypeChat, video); err != nil {
		return err
	}
	appCtx.Logger.Info("job requeued", "video", video)
	return nil
}
