package job

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// Type はジョブ種別を表します
type Type string

const (
	TypeChat       Type = "chat"
	TypeTranscript Type = "transcript"
)

// Valid はジョブ種別が既知かどうかを返します
func (t Type) Valid() bool {
	return t == TypeChat || t == TypeTranscript
}

// State はジョブの状態を表します。
// データベース上ではqueuedをNULLで表現します。
type State string

const (
	StateQueued  State = "queued"
	StateStarted State = "started"
	StateFailed  State = "failed"
	StateSuccess State = "success"
)

// Terminal は終端状態かどうかを返します
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateFailed
}

// Meta はジョブの診断用ペイロードです
type Meta map[string]any

// Value はdatabase/sql/driver.Valuerインターフェースの実装
func (m Meta) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan はdatabase/sql.Scannerインターフェースの実装
func (m *Meta) Scan(value any) error {
	b, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(b, m)
}

// ScheduledAt はmetaに記録された実行予定時刻を返します
func (m Meta) ScheduledAt() (time.Time, bool) {
	raw, ok := m["scheduled"]
	if !ok {
		return time.Time{}, false
	}
	switch v := raw.(type) {
	case time.Time:
		return v, true
	case string:
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	return time.Time{}, false
}

// StartTime はmetaに記録された配信開始時刻を返します
func (m Meta) StartTime() (time.Time, bool) {
	raw, ok := m["startTime"]
	if !ok {
		return time.Time{}, false
	}
	switch v := raw.(type) {
	case time.Time:
		return v, true
	case string:
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	return time.Time{}, false
}

// Job は(type, video)をキーとする非同期作業の追跡単位です
type Job struct {
	Type       Type      `json:"type"`
	Video      string    `json:"video"`
	Channel    string    `json:"channel"`
	State      State     `json:"state"`
	LastUpdate time.Time `json:"lastUpdate"`
	Meta       Meta      `json:"meta,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Stale はstartedのままlastUpdateがthresholdより古い場合にtrueを返します。
// staleなジョブは自動では回収されず、明示的な再投入の対象になるだけです。
func (j *Job) Stale(now time.Time, threshold time.Duration) bool {
	return j.State == StateStarted && now.Sub(j.LastUpdate) > threshold
}
