package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持します
type Config struct {
	// Database設定
	Database DatabaseConfig

	// YouTube Data API設定
	YouTube YouTubeConfig

	// ワーカー設定
	Worker WorkerConfig

	// メトリクスHTTPリスナーのアドレス（空文字で無効）
	MetricsAddr string
}

// DatabaseConfig はデータベース接続設定
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// YouTubeConfig はYouTube Data API v3の設定
type YouTubeConfig struct {
	APIKey   string
	PageSize int // playlistItems / videos の1ページあたり件数
}

// WorkerConfig はジョブワーカーの設定
type WorkerConfig struct {
	PollInterval     time.Duration // キュー済みジョブのポーリング間隔
	CrawlInterval    time.Duration // 定期クロールトリガーの間隔
	StaleThreshold   time.Duration // started ジョブを stale と見なすまでの時間
	PagePause        time.Duration // アップロードリストのページ間ウェイト
	RecentDeferDelay time.Duration // 配信終了からチャット取得までの猶予
}

// Load は環境変数または.envファイルから設定を読み込みます
func Load(envFilePath string) (*Config, error) {
	// .envファイルが存在する場合は読み込む
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			// ファイルが存在しない場合はエラーとしない（環境変数のみで動作可能）
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load .env file: %w", err)
			}
		}
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "livechat"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "livechat"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		YouTube: YouTubeConfig{
			APIKey:   getEnv("LIVECHAT_YT_KEY", ""),
			PageSize: getEnvAsInt("LIVECHAT_YT_PAGE_SIZE", 50),
		},
		Worker: WorkerConfig{
			PollInterval:     getEnvAsDuration("LIVECHAT_POLL_INTERVAL", 10*time.Second),
			CrawlInterval:    getEnvAsDuration("LIVECHAT_CRAWL_INTERVAL", 10*time.Minute),
			StaleThreshold:   getEnvAsDuration("LIVECHAT_STALE_THRESHOLD", 180*time.Second),
			PagePause:        getEnvAsDuration("LIVECHAT_PAGE_PAUSE", time.Second),
			RecentDeferDelay: getEnvAsDuration("LIVECHAT_RECENT_DEFER", 24*time.Hour),
		},
		MetricsAddr: getEnv("LIVECHAT_METRICS_ADDR", ""),
	}

	return cfg, nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt は環境変数を整数として取得します
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration は環境変数をtime.Durationとして取得します
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
