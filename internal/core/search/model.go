package search

import (
	"time"

	"github.com/jinford/livechat/internal/core/channel"
)

// MessageQuery はメッセージ検索の入力です
type MessageQuery struct {
	Q       string    // 必須。全文検索クエリ
	Channel string    // 任意。完全一致。指定時はTagsを無視する
	Tags    []string  // 任意。列挙した全タグを持つチャンネルに限定
	WeekOf  time.Time // 含まれる週（月曜始まり）に正規化される。ゼロ値は現在時刻
	Limit   int       // 1〜100。デフォルト100
	Offset  int       // 0以上
}

// MessageResult は検索にヒットした1件のメッセージです
type MessageResult struct {
	Type      string    `json:"type"`
	Video     string    `json:"video"`
	Channel   string    `json:"channel"`
	Timecode  int       `json:"timecode"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// ChannelQuery はチャンネルのタイプアヘッド検索の入力です
type ChannelQuery struct {
	Q      string // 任意。2文字以上のとき結合ローカライズ名に適用される
	Limit  int    // 1〜30。デフォルト10
	Offset int    // 0以上
}

// ChannelResult はタイプアヘッドにヒットした1件のチャンネルです
type ChannelResult struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Thumbnail string         `json:"thumbnail"`
	Tags      channel.TagSet `json:"tags"`
	Active    bool           `json:"active"`
}

// Stats はデータ量の概況です
type Stats struct {
	DBSize       int64 `json:"dbSize"`
	ChannelCount int64 `json:"channelCount"`
	JobCount     int64 `json:"jobCount"`
	MessageCount int64 `json:"msgCount"`
}

// Window は検索対象の時間窓です。[Start, End)の半開区間です。
type Window struct {
	Start time.Time
	End   time.Time
}

// WeekWindow はtを含む月曜始まりの週の窓を返します。
// 週単位への分割は追記専用の大きなテーブルに対する検索コストを抑えるための
// 設計で、より古い内容は週を1つずつ遡ってページングします。
func WeekWindow(t time.Time) Window {
	t = t.UTC()
	daysSinceMonday := (int(t.Weekday()) + 6) % 7
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).
		AddDate(0, 0, -daysSinceMonday)
	return Window{Start: start, End: start.AddDate(0, 0, 7)}
}
