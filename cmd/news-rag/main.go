package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/jinford/news-rag/cmd/news-rag/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.Command{
		Name:  "news-rag",
		Usage: "ニュース記事向け RAG パイプライン（チャンク分割・ベクトル検索・質問応答）",
		Commands: []*cli.Command{
			{
				Name:  "article",
				Usage: "記事管理コマンド",
				Commands: []*cli.Command{
					{
						Name:  "add",
						Usage: "記事を登録してチャンクを作成",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "環境変数ファイルパス",
								Value: ".env",
							},
							&cli.StringFlag{
								Name:     "title",
								Usage:    "記事タイトル",
								Required: true,
							},
							&cli.StringFlag{
								Name:     "file",
								Usage:    "記事本文のファイルパス",
								Required: true,
							},
							&cli.BoolFlag{
								Name:  "skip-sync",
								Usage: "登録のみ行い、チャンク作成をスキップ",
							},
						},
						Action: commands.ArticleAddAction,
					},
				},
			},
			{
				Name:  "chunk",
				Usage: "チャンク管理コマンド",
				Commands: []*cli.Command{
					{
						Name:  "sync",
						Usage: "記事のチャンクを作成（作成済みの場合は何もしない）",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "環境変数ファイルパス",
								Value: ".env",
							},
							&cli.StringFlag{
								Name:  "article-id",
								Usage: "記事ID",
							},
							&cli.BoolFlag{
								Name:  "all",
								Usage: "全記事を対象にする",
							},
						},
						Action: commands.ChunkSyncAction,
					},
					{
						Name:  "rebuild",
						Usage: "既存チャンクを破棄して再作成",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "環境変数ファイルパス",
								Value: ".env",
							},
							&cli.StringFlag{
								Name:  "article-id",
								Usage: "記事ID",
							},
							&cli.BoolFlag{
								Name:  "all",
								Usage: "全記事を対象にする",
							},
						},
						Action: commands.ChunkRebuildAction,
					},
					{
						Name:  "status",
						Usage: "記事のチャンク化状況を表示",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "環境変数ファイルパス",
								Value: ".env",
							},
							&cli.StringFlag{
								Name:     "article-id",
								Usage:    "記事ID",
								Required: true,
							},
						},
						Action: commands.ChunkStatusAction,
					},
				},
			},
			{
				Name:  "search",
				Usage: "記事内の関連チャンクを検索",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "env",
						Usage: "環境変数ファイルパス",
						Value: ".env",
					},
					&cli.StringFlag{
						Name:     "article-id",
						Usage:    "記事ID",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "query",
						Usage:    "検索クエリ",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "取得件数（省略時は設定値）",
					},
				},
				Action: commands.SearchAction,
			},
			{
				Name:  "ask",
				Usage: "記事の内容に基づいて質問に回答",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "env",
						Usage: "環境変数ファイルパス",
						Value: ".env",
					},
					&cli.StringFlag{
						Name:     "article-id",
						Usage:    "記事ID",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "query",
						Usage:    "質問文",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "コンテキストに渡すチャンク数（省略時は設定値）",
					},
					&cli.BoolFlag{
						Name:  "show-context",
						Usage: "回答に使用したチャンクも表示",
					},
				},
				Action: commands.AskAction,
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
