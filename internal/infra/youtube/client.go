package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jinford/livechat/internal/core/apperr"
)

const defaultBaseURL = "https://www.googleapis.com/youtube/v3"

// Client はYouTube Data API v3の薄いHTTPクライアントです
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient は新しいClientを作成します
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// channelResource はchannels.listのレスポンス項目です
type channelResource struct {
	ID      string `json:"id"`
	Snippet struct {
		Title      string `json:"title"`
		Thumbnails struct {
			Default struct {
				URL string `json:"url"`
			} `json:"default"`
		} `json:"thumbnails"`
	} `json:"snippet"`
	ContentDetails struct {
		RelatedPlaylists struct {
			Uploads string `json:"uploads"`
		} `json:"relatedPlaylists"`
	} `json:"contentDetails"`
	Localizations map[string]struct {
		Title string `json:"title"`
	} `json:"localizations"`
}

// playlistItemResource はplaylistItems.listのレスポンス項目です
type playlistItemResource struct {
	ContentDetails struct {
		VideoID string `json:"videoId"`
	} `json:"contentDetails"`
}

// videoResource はvideos.listのレスポンス項目です
type videoResource struct {
	ID      string `json:"id"`
	Snippet struct {
		ChannelID string `json:"channelId"`
	} `json:"snippet"`
	LiveStreamingDetails struct {
		ActualStartTime string `json:"actualStartTime"`
		ActualEndTime   string `json:"actualEndTime"`
	} `json:"liveStreamingDetails"`
}

type listResponse[T any] struct {
	Items         []T    `json:"items"`
	NextPageToken string `json:"nextPageToken"`
}

// get はAPIエンドポイントを呼び出し、レスポンスボディをoutへデコードします
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	params.Set("key", c.apiKey)
	reqURL := fmt.Sprintf("%s/%s?%s", c.baseURL, endpoint, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apperr.Transient("youtube "+endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return apperr.Transient("youtube "+endpoint, err)
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(body), 200))
		// レート制限と5xxは一時障害としてリトライ対象にする
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return apperr.Transient("youtube "+endpoint, err)
		}
		return fmt.Errorf("youtube %s: %w", endpoint, err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", endpoint, err)
	}
	return nil
}

func (c *Client) channelsList(ctx context.Context, params url.Values) ([]channelResource, error) {
	params.Set("part", "id,snippet,contentDetails,localizations")
	var resp listResponse[channelResource]
	if err := c.get(ctx, "channels", params, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (c *Client) playlistItemsList(ctx context.Context, playlistID, pageToken string, maxResults int) (*listResponse[playlistItemResource], error) {
	params := url.Values{}
	params.Set("part", "contentDetails")
	params.Set("playlistId", playlistID)
	params.Set("maxResults", strconv.Itoa(maxResults))
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}
	var resp listResponse[playlistItemResource]
	if err := c.get(ctx, "playlistItems", params, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) videosList(ctx context.Context, ids []string) ([]videoResource, error) {
	params := url.Values{}
	params.Set("part", "id,snippet,liveStreamingDetails")
	params.Set("maxResults", strconv.Itoa(len(ids)))
	for _, id := range ids {
		params.Add("id", id)
	}
	var resp listResponse[videoResource]
	if err := c.get(ctx, "videos", params, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
