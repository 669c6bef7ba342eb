package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/jinford/livechat/cmd/livechat/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 構造化ログの設定
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	app := &cli.Command{
		Name:  "livechat",
		Usage: "ライブ配信チャットのアーカイブおよび全文検索システム",
		Commands: []*cli.Command{
			{
				Name:  "worker",
				Usage: "常駐ワーカーを起動（ジョブ実行・定期クロール）",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "env",
						Usage: "環境変数ファイルパス",
						Value: ".env",
					},
				},
				Action: commands.WorkerAction,
			},
			{
				Name:  "migrate",
				Usage: "データベーススキーマを適用",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "env",
						Usage: "環境変数ファイルパス",
						Value: ".env",
					},
				},
				Action: commands.MigrateAction,
			},
			{
				Name:  "channel",
				Usage: "チャンネル管理コマンド",
				Commands: []*cli.Command{
					{
						Name:  "add",
						Usage: "チャンネルを登録・更新",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "環境変数ファイルパス",
								Value: ".env",
							},
							&cli.StringSliceFlag{
								Name:  "id",
								Usage: "チャンネルID（UC〜）またはハンドル（@〜）",
							},
							&cli.StringSliceFlag{
								Name:  "tag",
								Usage: "タグ（指定時はタグ集合を置き換え）",
							},
							&cli.BoolFlag{
								Name:  "active",
								Usage: "定期クロール対象にするか（指定時のみ上書き）",
							},
						},
						Action: commands.ChannelAddAction,
					},
					{
						Name:  "list",
						Usage: "チャンネル一覧を表示",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "環境変数ファイルパス",
								Value: ".env",
							},
						},
						Action: commands.ChannelListAction,
					},
				},
			},
			{
				Name:  "job",
				Usage: "ジョブ管理コマンド",
				Commands: []*cli.Command{
					{
						Name:  "submit",
						Usage: "クロールまたは動画取り込みを投入",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "環境変数ファイルパス",
								Value: ".env",
							},
							&cli.BoolFlag{
								Name:  "scrape",
								Usage: "最も古いアクティブチャンネルをクロール",
							},
							&cli.StringFlag{
								Name:  "channel",
								Usage: "指定チャンネルをクロール",
							},
							&cli.StringFlag{
								Name:  "video",
								Usage: "動画1本のチャット取り込みをキューへ投入",
							},
						},
						Action: commands.JobSubmitAction,
					},
					{
						Name:  "list",
						Usage: "ジョブボードを表示",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "環境変数ファイルパス",
								Value: ".env",
							},
						},
						Action: commands.JobListAction,
					},
					{
						Name:  "retry",
						Usage: "failedまたはstaleなジョブを再投入",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "環境変数ファイルパス",
								Value: ".env",
							},
							&cli.StringFlag{
								Name:     "video",
								Usage:    "動画ID",
								Required: true,
							},
						},
						Action: commands.JobRetryAction,
					},
				},
			},
			{
				Name:  "search",
				Usage: "週単位の全文メッセージ検索",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "env",
						Usage: "環境変数ファイルパス",
						Value: ".env",
					},
					&cli.StringFlag{
						Name:     "q",
						Usage:    "検索クエリ",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "channel",
						Usage: "チャンネルIDで絞り込み",
					},
					&cli.StringSliceFlag{
						Name:  "tag",
						Usage: "タグで絞り込み（全タグ一致。--channel指定時は無視）",
					},
					&cli.StringFlag{
						Name:  "week-of",
						Usage: "検索対象の週に含まれる時刻（RFC3339）",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "最大件数（1〜100）",
					},
					&cli.IntFlag{
						Name:  "offset",
						Usage: "オフセット",
					},
				},
				Action: commands.SearchAction,
			},
			{
				Name:  "csearch",
				Usage: "チャンネルのタイプアヘッド検索",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "env",
						Usage: "環境変数ファイルパス",
						Value: ".env",
					},
					&cli.StringFlag{
						Name:  "q",
						Usage: "チャンネル名の部分一致クエリ",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "最大件数（1〜30）",
					},
					&cli.IntFlag{
						Name:  "offset",
						Usage: "オフセット",
					},
				},
				Action: commands.CSearchAction,
			},
			{
				Name:  "tags",
				Usage: "全チャンネルのタグ一覧を表示",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "env",
						Usage: "環境変数ファイルパス",
						Value: ".env",
					},
				},
				Action: commands.TagsAction,
			},
			{
				Name:  "stats",
				Usage: "データ量の概況を表示",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "env",
						Usage: "環境変数ファイルパス",
						Value: ".env",
					},
				},
				Action: commands.StatsAction,
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
