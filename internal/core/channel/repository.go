package channel

import (
	"context"
	"time"
)

// UpsertParams はチャンネルのマージ更新パラメータです。
// Tags / Active がnilの場合、既存行の値を保持します。
type UpsertParams struct {
	Info   Info
	Tags   TagSet
	Active *bool
}

// Repository はチャンネルの永続化操作を提供します
type Repository interface {
	// Upsert はチャンネルを挿入またはマージ更新します。
	// メタデータは常に上書きし、Tags / Active は指定時のみ更新します。
	Upsert(ctx context.Context, params UpsertParams) error

	// GetByID はIDでチャンネルを取得します
	GetByID(ctx context.Context, id string) (*Channel, error)

	// List は全チャンネルを取得します
	List(ctx context.Context) ([]*Channel, error)

	// OldestActive はlastStreamが最も古いアクティブなチャンネルを返します
	// （NULLを最優先）。対象がない場合はnilを返します。
	OldestActive(ctx context.Context) (*Channel, error)

	// AdvanceLastStream はlastStreamを単調に前進させます。
	// 格納済みの値より新しい場合のみ更新します。
	AdvanceLastStream(ctx context.Context, id string, t time.Time) error
}

// Resolver は外部カタログに対するチャンネル解決のインターフェースです。
// ID（"UC"始まり）またはハンドル（"@"始まり）を受け付けます。
type Resolver interface {
	// Resolve は入力キーごとに正規メタデータを返します。
	// 見つからない入力があった場合はエラーを返します。
	// ハンドルはちょうど1件に解決されなければなりません。
	Resolve(ctx context.Context, idsOrHandles []string) (map[string]Info, error)
}
