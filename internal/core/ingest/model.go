package ingest

import (
	"context"
	"time"
)

// EventType はチャットイベントの種別です
type EventType string

const (
	// EventTypeChat は通常のチャットメッセージです
	EventTypeChat EventType = "chat"
)

// ChatEvent はリプレイから得られる1件のチャットイベントです
type ChatEvent struct {
	ID        string
	Type      EventType
	Timestamp time.Time
	Text      string
}

// EventStream はチャットイベントの遅延シーケンスです。
// 終端に達するとNextはio.EOFを返します。途中からの再開はできませんが、
// 書き込みが冪等なためジョブ全体の再実行は安全です。
type EventStream interface {
	Next(ctx context.Context) (*ChatEvent, error)
	Close() error
}

// TranscriptSource はリプレイモードでのチャット取得インターフェースです。
// コンテンツが取得不能と確定した場合はapperr.UnavailableErrorを返します。
type TranscriptSource interface {
	Open(ctx context.Context, video, channel string) (EventStream, error)
}

// Message は取り込まれた1件のチャットメッセージです。
// 書き込み後は不変で、更新・削除されません。
type Message struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Video     string    `json:"video"`
	Channel   string    `json:"channel"`
	Timestamp time.Time `json:"timestamp"`
	Timecode  int       `json:"timecode"`
	Text      string    `json:"text"`
}

// MessageRepository はメッセージの永続化操作を提供します
type MessageRepository interface {
	// InsertIfAbsent はメッセージを挿入します。
	// 同一IDの行が既にある場合は何もせずfalseを返します。
	InsertIfAbsent(ctx context.Context, m *Message) (bool, error)
}

// Timecode は配信開始からの経過秒数を計算します。
// 開始前のイベントは0に切り上げます。
func Timecode(eventTime, startTime time.Time) int {
	if eventTime.Before(startTime) {
		return 0
	}
	return int(eventTime.Sub(startTime) / time.Second)
}
