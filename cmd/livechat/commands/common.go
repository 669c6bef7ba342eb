package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jinford/livechat/internal/core/channel"
	"github.com/jinford/livechat/internal/core/crawl"
	"github.com/jinford/livechat/internal/core/ingest"
	"github.com/jinford/livechat/internal/core/job"
	"github.com/jinford/livechat/internal/core/search"
	"github.com/jinford/livechat/internal/infra/chatreplay"
	"github.com/jinford/livechat/internal/infra/postgres"
	"github.com/jinford/livechat/internal/infra/youtube"
	"github.com/jinford/livechat/internal/platform/config"
	"github.com/jinford/livechat/internal/platform/logger"
	"github.com/jinford/livechat/internal/platform/metrics"
	"github.com/jinford/livechat/pkg/db"
)

// AppContext はコマンド実行に必要な共通コンテキストを保持します
type AppContext struct {
	Config   *config.Config
	Database *db.DB
	Logger   *slog.Logger
	Metrics  *metrics.Metrics

	Channels     *postgres.ChannelRepository
	Jobs         *postgres.JobRepository
	Messages     *postgres.MessageRepository
	YouTube      *youtube.Client
	SearchSvc    *search.Service
	ChannelSvc   *channel.Service
	Scheduler    *job.Scheduler
	Orchestrator *crawl.Orchestrator
	Ingestor     *ingest.Service
}

// NewAppContext は設定を読み込み、DBに接続してAppContextを作成します
func NewAppContext(ctx context.Context, envFile string) (*AppContext, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	appLogger := logger.New(logger.DefaultConfig())

	database, err := db.New(ctx, db.ConnectionParams{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	m := metrics.New()

	channels := postgres.NewChannelRepository(database.Pool)
	jobs := postgres.NewJobRepository(database.Pool)
	messages := postgres.NewMessageRepository(database.Pool)
	searchRepo := postgres.NewSearchRepository(database.Pool)

	yt := youtube.NewClient(cfg.YouTube.APIKey)

	searchSvc := search.NewService(searchRepo)
	channelSvc := channel.NewService(channels, yt, searchSvc, appLogger)
	scheduler := job.NewScheduler(jobs, cfg.Worker.StaleThreshold, appLogger)
	orchestrator := crawl.NewOrchestrator(channels, channelSvc, scheduler, yt, yt, m, appLogger, crawl.Config{
		PageSize:   cfg.YouTube.PageSize,
		PagePause:  cfg.Worker.PagePause,
		RecentWait: cfg.Worker.RecentDeferDelay,
	})
	ingestor := ingest.NewService(messages, chatreplay.NewClient(), m, appLogger)

	return &AppContext{
		Config:       cfg,
		Database:     database,
		Logger:       appLogger,
		Metrics:      m,
		Channels:     channels,
		Jobs:         jobs,
		Messages:     messages,
		YouTube:      yt,
		SearchSvc:    searchSvc,
		ChannelSvc:   channelSvc,
		Scheduler:    scheduler,
		Orchestrator: orchestrator,
		Ingestor:     ingestor,
	}, nil
}

// Close はAppContextが保持するリソースをクリーンアップします
func (ac *AppContext) Close() {
	if ac.Database != nil {
		ac.Database.Close()
	}
}
