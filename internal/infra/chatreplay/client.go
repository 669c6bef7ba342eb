package chatreplay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jinford/livechat/internal/core/apperr"
	"github.com/jinford/livechat/internal/core/ingest"
)

const (
	watchURL       = "https://www.youtube.com/watch"
	replayEndpoint = "https://www.youtube.com/youtubei/v1/live_chat/get_live_chat_replay"
	userAgent      = "Mozilla/5.0 (compatible; livechat-archiver/1.0)"
)

// Client は終了済み配信のチャットリプレイを取得するTranscriptSourceです。
// watchページからInnertubeの資格情報とリプレイのcontinuationを取り出し、
// get_live_chat_replayエンドポイントを順に辿ります。
type Client struct {
	http *http.Client
}

// NewClient は新しいClientを作成します
func NewClient() *Client {
	return &Client{
		http: &http.Client{Timeout: 15 * time.Second},
	}
}

var _ ingest.TranscriptSource = (*Client)(nil)

// Open はリプレイモードでチャットのイベントストリームを開きます。
// コンテンツが取得不能と確定した場合はapperr.UnavailableErrorを返します。
func (c *Client) Open(ctx context.Context, video, channel string) (ingest.EventStream, error) {
	page, err := c.fetchWatchPage(ctx, video)
	if err != nil {
		return nil, err
	}

	if code := unavailableCode(page); code != "" {
		return nil, &apperr.UnavailableError{Code: code, Msg: "video " + video}
	}

	apiKey := extractString(page, `"INNERTUBE_API_KEY":"`)
	clientVersion := extractString(page, `"INNERTUBE_CLIENT_VERSION":"`)
	if apiKey == "" || clientVersion == "" {
		return nil, apperr.Transient("chatreplay bootstrap", fmt.Errorf("could not locate api key or client version"))
	}

	continuation := findReplayContinuation(page)
	if continuation == "" {
		// 配信自体は見られるがリプレイが存在しない。チャット無効などの確定状態
		return nil, &apperr.UnavailableError{Code: "disabled", Msg: "no chat replay for video " + video}
	}

	return &stream{
		client:        c,
		apiKey:        apiKey,
		clientVersion: clientVersion,
		continuation:  continuation,
	}, nil
}

func (c *Client) fetchWatchPage(ctx context.Context, video string) (string, error) {
	reqURL := watchURL + "?v=" + url.QueryEscape(video)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build watch request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", apperr.Transient("chatreplay watch", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", &apperr.UnavailableError{Code: "unavailable", Msg: "video " + video}
	}
	if resp.StatusCode != http.StatusOK {
		return "", apperr.Transient("chatreplay watch", fmt.Errorf("unexpected status %s", resp.Status))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 5<<20))
	if err != nil {
		return "", apperr.Transient("chatreplay watch", err)
	}
	return string(body), nil
}

// unavailableCode はwatchページの再生可否から取得不能の確定状態を判定します
func unavailableCode(page string) string {
	status := extractString(page, `"playabilityStatus":{"status":"`)
	switch status {
	case "", "OK":
		return ""
	case "LOGIN_REQUIRED":
		return "private"
	case "ERROR":
		return "unavailable"
	case "UNPLAYABLE":
		if strings.Contains(page, "BADGE_STYLE_TYPE_MEMBERS_ONLY") || strings.Contains(page, "members-only") {
			return "membersOnly"
		}
		return "unplayable"
	default:
		return ""
	}
}

// stream はリプレイのcontinuationを辿る遅延イベント列です。
// 途中からの再開はできませんが、呼び出し側の書き込みが冪等なため
// ジョブ全体の再実行で安全に収束します。
type stream struct {
	client        *Client
	apiKey        string
	clientVersion string
	continuation  string
	buffer        []ingest.ChatEvent
	done          bool
}

// Next は次のチャットイベントを返します。終端でio.EOFを返します。
func (s *stream) Next(ctx context.Context) (*ingest.ChatEvent, error) {
	for len(s.buffer) == 0 {
		if s.done {
			return nil, io.EOF
		}
		if err := s.fetchPage(ctx); err != nil {
			return nil, err
		}
	}
	ev := s.buffer[0]
	s.buffer = s.buffer[1:]
	return &ev, nil
}

// Close はストリームを閉じます
func (s *stream) Close() error {
	s.buffer = nil
	s.done = true
	return nil
}

// replayResponse はget_live_chat_replayのレスポンスの必要部分です
type replayResponse struct {
	ContinuationContents struct {
		LiveChatContinuation struct {
			Continuations []struct {
				LiveChatReplayContinuationData struct {
					Continuation string `json:"continuation"`
				} `json:"liveChatReplayContinuationData"`
			} `json:"continuations"`
			Actions []struct {
				ReplayChatItemAction struct {
					Actions []struct {
						AddChatItemAction struct {
							Item struct {
								LiveChatTextMessageRenderer *textMessageRenderer `json:"liveChatTextMessageRenderer"`
							} `json:"item"`
						} `json:"addChatItemAction"`
					} `json:"actions"`
				} `json:"replayChatItemAction"`
			} `json:"actions"`
		} `json:"liveChatContinuation"`
	} `json:"continuationContents"`
}

type textMessageRenderer struct {
	ID            string `json:"id"`
	TimestampUsec string `json:"timestampUsec"`
	Message       struct {
		Runs []struct {
			Text  string `json:"text"`
			Emoji *struct {
				Shortcuts []string `json:"shortcuts"`
			} `json:"emoji"`
		} `json:"runs"`
	} `json:"message"`
}

func (s *stream) fetchPage(ctx context.Context) error {
	endpoint := replayEndpoint + "?key=" + url.QueryEscape(s.apiKey)
	payload := map[string]any{
		"context": map[string]any{
			"client": map[string]any{
				"clientName":    "WEB",
				"clientVersion": s.clientVersion,
				"hl":            "en",
			},
		},
		"continuation": s.continuation,
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal replay request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("failed to build replay request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.http.Do(req)
	if err != nil {
		return apperr.Transient("chatreplay fetch", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		return apperr.Transient("chatreplay fetch",
			fmt.Errorf("status %s: %s", resp.Status, strings.TrimSpace(string(body))))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return apperr.Transient("chatreplay fetch", err)
	}

	var page replayResponse
	if err := json.Unmarshal(body, &page); err != nil {
		return fmt.Errorf("failed to decode replay response: %w", err)
	}

	cont := page.ContinuationContents.LiveChatContinuation
	for _, action := range cont.Actions {
		for _, inner := range action.ReplayChatItemAction.Actions {
			r := inner.AddChatItemAction.Item.LiveChatTextMessageRenderer
			if r == nil || r.ID == "" {
				// チャット以外のアクション（スパチャ入場・モデレーション等）は対象外
				continue
			}
			s.buffer = append(s.buffer, ingest.ChatEvent{
				ID:        r.ID,
				Type:      ingest.EventTypeChat,
				Timestamp: parseUsec(r.TimestampUsec),
				Text:      stringifyRuns(r),
			})
		}
	}

	s.continuation = ""
	for _, c := range cont.Continuations {
		if c.LiveChatReplayContinuationData.Continuation != "" {
			s.continuation = c.LiveChatReplayContinuationData.Continuation
			break
		}
	}
	if s.continuation == "" {
		s.done = true
	}
	return nil
}

// stringifyRuns はメッセージrunsをプレーンテキストへ連結します。
// 絵文字はショートカット表記（:shortcut:）で表します。
func stringifyRuns(r *textMessageRenderer) string {
	var b strings.Builder
	for _, run := range r.Message.Runs {
		if run.Text != "" {
			b.WriteString(run.Text)
			continue
		}
		if run.Emoji != nil && len(run.Emoji.Shortcuts) > 0 {
			b.WriteString(run.Emoji.Shortcuts[0])
		}
	}
	return b.String()
}

func parseUsec(s string) time.Time {
	usec, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMicro(usec).UTC()
}

// extractString はmarkerの直後から次の引用符までを取り出します
func extractString(text, marker string) string {
	idx := strings.Index(text, marker)
	if idx < 0 {
		return ""
	}
	rest := text[idx+len(marker):]
	end := strings.IndexByte(rest, '"')
	if end < 0 {
		return ""
	}
	return rest[:end]
}

// findReplayContinuation はwatchページからリプレイ用のcontinuationを探します
func findReplayContinuation(page string) string {
	// リプレイパネルのreloadContinuationDataが最初に現れる位置を使う
	for _, marker := range []string{
		`"reloadContinuationData":{"continuation":"`,
		`"liveChatRenderer":{"continuations":[{"reloadContinuationData":{"continuation":"`,
	} {
		if c := extractString(page, marker); c != "" {
			return c
		}
	}
	return ""
}
