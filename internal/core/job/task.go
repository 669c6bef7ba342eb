package job

import "time"

// Task はワーカーが実行する作業の閉じたバリアントです。
// 文字列キーのディスパッチではなく、単一のswitchで網羅的に分岐します。
type Task interface {
	isTask()
	// Name はログ・メトリクス用のタスク名を返します
	Name() string
}

// TriggerCrawl は最も古いアクティブチャンネルのクロールを起動します
type TriggerCrawl struct{}

func (TriggerCrawl) isTask()      {}
func (TriggerCrawl) Name() string { return "triggerCrawl" }

// CrawlChannel は特定チャンネルのアップロードリストをクロールします
type CrawlChannel struct {
	Channel       string
	UploadsHandle string
}

func (CrawlChannel) isTask()      {}
func (CrawlChannel) Name() string { return "crawlChannel" }

// IngestVideo は1本の動画のチャットリプレイを取り込みます
type IngestVideo struct {
	Video     string
	Channel   string
	StartTime time.Time
}

func (IngestVideo) isTask()      {}
func (IngestVideo) Name() string { return "ingestVideo" }
