package search

import "context"

// MessageSearchParams はリポジトリに渡す検証済みの検索条件です
type MessageSearchParams struct {
	Q       string
	Channel string   // 空文字で無条件
	Tags    []string // Channelが空のときのみ適用
	Window  Window
	Limit   int
	Offset  int
}

// ChannelSearchParams はリポジトリに渡す検証済みのタイプアヘッド条件です
type ChannelSearchParams struct {
	Q      string // 空文字で無条件
	Limit  int
	Offset int
}

// Repository は検索クエリの実行インターフェースです
type Repository interface {
	// SearchMessages は時間窓内のメッセージを全文検索し、
	// timestamp降順で返します
	SearchMessages(ctx context.Context, params MessageSearchParams) ([]*MessageResult, error)

	// SearchChannels はチャンネルをnameNative順で返します
	SearchChannels(ctx context.Context, params ChannelSearchParams) ([]*ChannelResult, error)

	// AllTags は全チャンネルのタグを集約した一覧を返します
	AllTags(ctx context.Context) ([]string, error)

	// Stats はテーブルの行数とデータベースサイズを返します
	Stats(ctx context.Context) (*Stats, error)
}
