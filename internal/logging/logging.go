package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"yagura/internal/config"
)

// New は設定に基づいてロガーを構築する
// 標準出力には常にコンソール形式で出力し、ファイルパスが指定されている
// 場合はローテーション付きのJSONログを併用する
func New(cfg config.LogConfig) (*zap.Logger, error) {
	// ログレベルの解析
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("不明なログレベル: %q", cfg.Level)
	}

	// コンソール用エンコーダー
	consoleConfig := zap.NewProductionEncoderConfig()
	consoleConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	consoleConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleConfig), zapcore.AddSync(os.Stdout), level),
	}

	// ファイル出力
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return nil, fmt.Errorf("ログディレクトリを作成できません: %w", err)
		}

		fileConfig := zap.NewProductionEncoderConfig()
		fileConfig.EncodeTime = zapcore.ISO8601TimeEncoder

		writer := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			LocalTime:  true,
			Compress:   cfg.Compress,
		}
		cores = append(cores,
			zapcore.NewCore(zapcore.NewJSONEncoder(fileConfig), zapcore.AddSync(writer), level))
	}

	return zap.New(zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	), nil
}
