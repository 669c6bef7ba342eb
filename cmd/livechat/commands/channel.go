package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/jinford/livechat/internal/core/channel"
)

// ChannelAddAction はチャンネルを登録・更新するコマンドのアクション。
// --tag / --active は指定された場合のみ既存値を上書きします。
func ChannelAddAction(ctx context.Context, cmd *cli.Command) error {
	keys := cmd.StringSlice("id")
	tags := cmd.StringSlice("tag")
	envFile := cmd.String("env")

	if len(keys) == 0 {
		return fmt.Errorf("at least one --id is required")
	}

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	upd := channel.Update{}
	if cmd.IsSet("tag") {
		upd.Tags = channel.NewTagSet(tags...)
	}
	if cmd.IsSet("active") {
		active := cmd.Bool("active")
		upd.Active = &active
	}

	updates := make(map[string]channel.Update, len(keys))
	for _, key := range keys {
		updates[key] = upd
	}

	if err := appCtx.ChannelSvc.UpdateChannels(ctx, updates); err != nil {
		return err
	}
	appCtx.Logger.Info("channels updated", "count", len(keys))
	return nil
}

// ChannelListAction は登録済みチャンネルの一覧を表示します
func ChannelListAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	channels, err := appCtx.Channels.List(ctx)
	if err != nil {
		return err
	}
	return printJSON(map[string]any{"channels": channels})
}

// printJSON は結果を整形して標準出力へ書き出します
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
