package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/urfave/cli/v3"

	"github.com/jinford/livechat/internal/core/job"
	"github.com/jinford/livechat/internal/infra/postgres"
	"github.com/jinford/livechat/pkg/lock"
)

// WorkerAction は常駐ワーカーを起動します。
// スキーマ適用後、ジョブキューのポーリングと定期クロールトリガーを
// 1並列で駆動します。
func WorkerAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	if err := postgres.Migrate(ctx, appCtx.Database.Pool); err != nil {
		return err
	}

	// ワーカーは1プロセスのみ。多重起動はアドバイザリロックで防ぐ
	workerLock, acquired, err := lock.TryAcquire(ctx, appCtx.Database.Pool, lock.GenerateLockID("livechat", "worker"))
	if err != nil {
		return err
	}
	if !acquired {
		return fmt.Errorf("another worker is already running")
	}
	defer workerLock.Release(context.Background())

	if addr := appCtx.Config.MetricsAddr; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", appCtx.Metrics.Handler())
		server := &http.Server{Addr: addr, Handler: mux}
		go func() {
			appCtx.Logger.Info("metrics listener started", "addr", addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				appCtx.Logger.Error("metrics listener failed", "error", err)
			}
		}()
		defer server.Close()
	}

	worker := job.NewWorker(
		appCtx.Scheduler,
		appCtx.Orchestrator,
		appCtx.Ingestor,
		appCtx.Metrics,
		appCtx.Logger,
		appCtx.Config.Worker.PollInterval,
		appCtx.Config.Worker.CrawlInterval,
	)

	err = worker.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// MigrateAction はスキーマのみを適用して終了します
func MigrateAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	if err := postgres.Migrate(ctx, appCtx.Database.Pool); err != nil {
		return err
	}
	appCtx.Logger.Info("schema applied")
	return nil
}
