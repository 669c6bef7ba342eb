package crawl

import (
	"context"
	"time"
)

// UploadPage はアップロードリストの1ページ分です
type UploadPage struct {
	VideoIDs      []string
	NextPageToken string
}

// UploadSource はチャンネルのアップロードリストを新しい順にページングします
type UploadSource interface {
	// UploadsPage は指定ページを取得します。pageTokenが空なら先頭ページです。
	UploadsPage(ctx context.Context, uploadsHandle, pageToken string, pageSize int) (*UploadPage, error)
}

// VideoDetails はカタログが返す動画のライブ配信情報です。
// EndTimeがゼロ値の場合、配信は未終了またはライブ配信ではありません。
type VideoDetails struct {
	ChannelID string
	StartTime time.Time
	EndTime   time.Time
}

// Ended は終了済みライブ配信かどうかを返します
func (d VideoDetails) Ended() bool {
	return !d.EndTime.IsZero()
}

// Catalog は動画IDの一括ルックアップを提供します
type Catalog interface {
	// Videos は各動画IDのライブ配信情報を返します。
	// 見つからないIDは結果に含まれません。
	Videos(ctx context.Context, ids []string) (map[string]VideoDetails, error)
}
