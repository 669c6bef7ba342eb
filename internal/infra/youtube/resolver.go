package youtube

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/jinford/livechat/internal/core/apperr"
	"github.com/jinford/livechat/internal/core/channel"
)

var _ channel.Resolver = (*Client)(nil)

// Resolve はチャンネルIDまたはハンドルを正規メタデータへ解決します。
// 結果は入力キーごとに返します。ID指定は一括で、ハンドルは1件ずつ
// 問い合わせます（APIがforHandleの複数指定を受け付けないため）。
func (c *Client) Resolve(ctx context.Context, idsOrHandles []string) (map[string]channel.Info, error) {
	var ids []string
	var handles []string
	for _, key := range idsOrHandles {
		switch {
		case strings.HasPrefix(key, "UC"):
			ids = append(ids, key)
		case strings.HasPrefix(key, "@"):
			handles = append(handles, key)
		default:
			return nil, apperr.Validationf("invalid channel %s", key)
		}
	}

	resolved := make(map[string]channel.Info, len(idsOrHandles))

	if len(ids) > 0 {
		params := url.Values{}
		params.Set("id", strings.Join(ids, ","))
		items, err := c.channelsList(ctx, params)
		if err != nil {
			return nil, err
		}
		byID := make(map[string]channel.Info, len(items))
		for _, item := range items {
			info, err := parseChannelResource(item)
			if err != nil {
				return nil, err
			}
			byID[info.ID] = info
		}
		for _, id := range ids {
			info, ok := byID[id]
			if !ok {
				return nil, &apperr.NotFoundError{Kind: "channel", ID: id}
			}
			resolved[id] = info
		}
	}

	for _, handle := range handles {
		params := url.Values{}
		params.Set("forHandle", handle)
		items, err := c.channelsList(ctx, params)
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			return nil, &apperr.NotFoundError{Kind: "channel", ID: handle}
		}
		if len(items) != 1 {
			return nil, fmt.Errorf("multiple results for handle %s", handle)
		}
		info, err := parseChannelResource(items[0])
		if err != nil {
			return nil, err
		}
		resolved[handle] = info
	}

	return resolved, nil
}

// parseChannelResource はAPIレスポンスをchannel.Infoへ変換します。
// 結合ローカライズ名はタイトルを空白で連結し、なければネイティブ名に
// フォールバックします。
func parseChannelResource(item channelResource) (channel.Info, error) {
	var names []string
	for _, loc := range item.Localizations {
		if loc.Title != "" {
			names = append(names, loc.Title)
		}
	}
	nameAll := strings.TrimSpace(strings.Join(names, " "))
	if nameAll == "" {
		nameAll = item.Snippet.Title
	}

	info := channel.Info{
		ID:            item.ID,
		NameNative:    item.Snippet.Title,
		NameAll:       nameAll,
		Thumbnail:     item.Snippet.Thumbnails.Default.URL,
		UploadsHandle: item.ContentDetails.RelatedPlaylists.Uploads,
	}
	if info.ID == "" || info.NameNative == "" || info.Thumbnail == "" || info.UploadsHandle == "" {
		return channel.Info{}, fmt.Errorf("failed to get channel name/thumbnail for %s", item.ID)
	}
	return info, nil
}
