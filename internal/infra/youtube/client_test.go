package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/livechat/internal/core/apperr"
)

// newTestClient はhttptestサーバーへ向けたClientを返します
func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient("test-key")
	c.baseURL = srv.URL
	return c
}

func TestResolve(t *testing.T) {
	ctx := context.Background()

	channelJSON := `{
		"id": "UCabc",
		"snippet": {
			"title": "配信者A",
			"thumbnails": {"default": {"url": "https://example.com/a.jpg"}}
		},
		"contentDetails": {"relatedPlaylists": {"uploads": "UUabc"}},
		"localizations": {
			"ja": {"title": "配信者A"},
			"en": {"title": "Streamer A"}
		}
	}`

	t.Run("IDは一括で解決される", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/channels", r.URL.Path)
			assert.Equal(t, "UCabc", r.URL.Query().Get("id"))
			assert.Equal(t, "test-key", r.URL.Query().Get("key"))
			fmt.Fprintf(w, `{"items": [%s]}`, channelJSON)
		})

		resolved, err := c.Resolve(ctx, []string{"UCabc"})
		require.NoError(t, err)

		info, ok := resolved["UCabc"]
		require.True(t, ok)
		assert.Equal(t, "UCabc", info.ID)
		assert.Equal(t, "配信者A", info.NameNative)
		assert.Equal(t, "UUabc", info.UploadsHandle)
		// 結合ローカライズ名は全タイトルを含む
		assert.Contains(t, info.NameAll, "配信者A")
		assert.Contains(t, info.NameAll, "Streamer A")
	})

	t.Run("ハンドルは入力キーで返る", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "@streamer", r.URL.Query().Get("forHandle"))
			fmt.Fprintf(w, `{"items": [%s]}`, channelJSON)
		})

		resolved, err := c.Resolve(ctx, []string{"@streamer"})
		require.NoError(t, err)

		info, ok := resolved["@streamer"]
		require.True(t, ok)
		assert.Equal(t, "UCabc", info.ID)
	})

	t.Run("見つからないチャンネルはNotFound", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"items": []}`)
		})

		_, err := c.Resolve(ctx, []string{"UCmissing"})
		assert.True(t, apperr.IsNotFound(err))

		_, err = c.Resolve(ctx, []string{"@missing"})
		assert.True(t, apperr.IsNotFound(err))
	})

	t.Run("不正なキーはバリデーションエラー", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("request must not be sent")
		})

		_, err := c.Resolve(ctx, []string{"notachannel"})
		assert.True(t, apperr.IsValidation(err))
	})

	t.Run("ローカライズなしはネイティブ名にフォールバックする", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"items": [{
				"id": "UCabc",
				"snippet": {
					"title": "配信者A",
					"thumbnails": {"default": {"url": "https://example.com/a.jpg"}}
				},
				"contentDetails": {"relatedPlaylists": {"uploads": "UUabc"}}
			}]}`)
		})

		resolved, err := c.Resolve(ctx, []string{"UCabc"})
		require.NoError(t, err)
		assert.Equal(t, "配信者A", resolved["UCabc"].NameAll)
	})
}

func TestUploadsPage(t *testing.T) {
	ctx := context.Background()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/playlistItems", r.URL.Path)
		assert.Equal(t, "UUabc", r.URL.Query().Get("playlistId"))
		assert.Equal(t, "50", r.URL.Query().Get("maxResults"))
		fmt.Fprint(w, `{
			"items": [
				{"contentDetails": {"videoId": "v1"}},
				{"contentDetails": {}},
				{"contentDetails": {"videoId": "v2"}}
			],
			"nextPageToken": "p2"
		}`)
	})

	page, err := c.UploadsPage(ctx, "UUabc", "", 50)
	require.NoError(t, err)
	// 動画参照を持たない項目は除外される
	assert.Equal(t, []string{"v1", "v2"}, page.VideoIDs)
	assert.Equal(t, "p2", page.NextPageToken)
}

func TestVideos(t *testing.T) {
	ctx := context.Background()

	t.Run("配信情報を動画IDごとに返す", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/videos", r.URL.Path)
			fmt.Fprint(w, `{
				"items": [
					{
						"id": "ended",
						"snippet": {"channelId": "UCabc"},
						"liveStreamingDetails": {
							"actualStartTime": "2024-06-01T12:00:00Z",
							"actualEndTime": "2024-06-01T14:00:00Z"
						}
					},
					{
						"id": "live",
						"snippet": {"channelId": "UCabc"},
						"liveStreamingDetails": {
							"actualStartTime": "2024-06-01T12:00:00Z"
						}
					},
					{
						"id": "plain",
						"snippet": {"channelId": "UCabc"}
					}
				]
			}`)
		})

		details, err := c.Videos(ctx, []string{"ended", "live", "plain", "missing"})
		require.NoError(t, err)
		require.Len(t, details, 3)

		assert.True(t, details["ended"].Ended())
		assert.Equal(t, time.Date(2024, 6, 1, 14, 0, 0, 0, time.UTC), details["ended"].EndTime)
		assert.False(t, details["live"].Ended())
		assert.False(t, details["plain"].Ended())

		_, ok := details["missing"]
		assert.False(t, ok)
	})

	t.Run("空のID列はAPIを呼ばない", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("request must not be sent")
		})

		details, err := c.Videos(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, details)
	})
}

func TestClientErrorMapping(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name          string
		status        int
		wantTransient bool
	}{
		{"レート制限は一時障害", http.StatusTooManyRequests, true},
		{"5xxは一時障害", http.StatusBadGateway, true},
		{"4xxは恒久エラー", http.StatusForbidden, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, `{"error": {"message": "boom"}}`)
			})

			_, err := c.Videos(ctx, []string{"v1"})
			require.Error(t, err)

			var te *apperr.TransientError
			assert.Equal(t, tt.wantTransient, errors.As(err, &te))
		})
	}
}
