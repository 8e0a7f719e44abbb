package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"

	"yagura/internal/camera"
	"yagura/internal/config"
	"yagura/internal/logging"
	"yagura/internal/server"
)

func main() {
	// コマンドラインオプション
	var (
		configPath = flag.String("config", "", "設定ファイルのパス (YAML)")
		host       = flag.String("host", "", "サーバーのホスト (デフォルト: 0.0.0.0)")
		port       = flag.Int("port", 0, "サーバーのポート (デフォルト: 8080)")
		help       = flag.Bool("help", false, "ヘルプを表示")
	)

	flag.Parse()

	// 設定ファイルはフラグ優先、指定がなければ環境変数から
	if *configPath == "" {
		*configPath = os.Getenv("CONFIG_FILE")
	}

	// ヘルプ表示
	if *help {
		fmt.Println("Yagura")
		fmt.Println()
		fmt.Println("使用方法:")
		fmt.Println("  yagura [オプション]")
		fmt.Println()
		fmt.Println("オプション:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	// 設定を読み込む
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	// コマンドラインオプションで設定を上書き
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	// ロガーを構築する
	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("ロガーの構築に失敗しました: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	// キャプチャバックエンドは起動時に一度だけ解決し、各コンポーネントに注入する
	backend, err := camera.NewBackend(cfg.Camera.Backend)
	if err != nil {
		logger.Fatal("バックエンドの解決に失敗しました", zap.Error(err))
	}
	logger.Info("キャプチャバックエンドを選択しました", zap.String("backend", backend.Name()))

	// サーバーを作成して起動
	srv := server.New(cfg, backend, logger)
	if err := srv.Start(context.Background()); err != nil {
		logger.Fatal("サーバーの起動に失敗しました", zap.Error(err))
	}
}
