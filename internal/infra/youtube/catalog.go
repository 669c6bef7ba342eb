package youtube

import (
	"context"
	"time"

	"github.com/jinford/livechat/internal/core/crawl"
)

var (
	_ crawl.UploadSource = (*Client)(nil)
	_ crawl.Catalog      = (*Client)(nil)
)

// UploadsPage はアップロードリストの1ページを新しい順で返します。
// 動画参照を持たない項目は除外します。
func (c *Client) UploadsPage(ctx context.Context, uploadsHandle, pageToken string, pageSize int) (*crawl.UploadPage, error) {
	resp, err := c.playlistItemsList(ctx, uploadsHandle, pageToken, pageSize)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.ContentDetails.VideoID != "" {
			ids = append(ids, item.ContentDetails.VideoID)
		}
	}
	return &crawl.UploadPage{
		VideoIDs:      ids,
		NextPageToken: resp.NextPageToken,
	}, nil
}

// Videos は各動画IDのライブ配信情報を一括で返します。
// 見つからないIDは結果に含まれません。
func (c *Client) Videos(ctx context.Context, ids []string) (map[string]crawl.VideoDetails, error) {
	if len(ids) == 0 {
		return map[string]crawl.VideoDetails{}, nil
	}

	items, err := c.videosList(ctx, ids)
	if err != nil {
		return nil, err
	}

	details := make(map[string]crawl.VideoDetails, len(items))
	for _, item := range items {
		d := crawl.VideoDetails{ChannelID: item.Snippet.ChannelID}
		if t, err := time.Parse(time.RFC3339, item.LiveStreamingDetails.ActualStartTime); err == nil {
			d.StartTime = t
		}
		if t, err := time.Parse(time.RFC3339, item.LiveStreamingDetails.ActualEndTime); err == nil {
			d.EndTime = t
		}
		details[item.ID] = d
	}
	return details, nil
}
