package commands

import (
	"context"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/jinford/livechat/internal/core/search"
)

// SearchAction は週単位の全文メッセージ検索を実行します
func SearchAction(ctx context.Context, cmd *cli.Command) error {
	q := cmd.String("q")
	channelID := cmd.String("channel")
	tags := cmd.StringSlice("tag")
	weekOf := cmd.String("week-of")
	limit := cmd.Int("limit")
	offset := cmd.Int("offset")
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	query := search.MessageQuery{
		Q:       q,
		Channel: channelID,
		Tags:    tags,
		Limit:   limit,
		Offset:  offset,
	}
	if weekOf != "" {
		t, err := time.Parse(time.RFC3339, weekOf)
		if err != nil {
			return err
		}
		query.WeekOf = t
	}

	results, err := appCtx.SearchSvc.SearchMessages(ctx, query)
	if err != nil {
		return err
	}
	return printJSON(map[string]any{"msgs": results})
}

// CSearchAction はチャンネルのタイプアヘッド検索を実行します
func CSearchAction(ctx context.Context, cmd *cli.Command) error {
	q := cmd.String("q")
	limit := cmd.Int("limit")
	offset := cmd.Int("offset")
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	results, err := appCtx.SearchSvc.SearchChannels(ctx, search.ChannelQuery{
		Q:      q,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return err
	}
	return printJSON(map[string]any{"channels": results})
}

// TagsAction は全チャンネルのタグ一覧を表示します
func TagsAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	tags, err := appCtx.SearchSvc.Tags(ctx)
	if err != nil {
		return err
	}
	return printJSON(map[string]any{"tags": tags})
}

// StatsAction はデータ量の概況を表示します
func StatsAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	stats, err := appCtx.SearchSvc.Stats(ctx)
	if err != nil {
		return err
	}
	return printJSON(stats)
}
