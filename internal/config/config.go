package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"yagura/internal/camera"
)

// Config はアプリケーション全体の設定を保持する構造体
type Config struct {
	Server ServerConfig `yaml:"server"`
	Camera CameraConfig `yaml:"camera"`
	Log    LogConfig    `yaml:"log"`
}

// ServerConfig はHTTPサーバーの設定
type ServerConfig struct {
	Host string `yaml:"host"` // リッスンするホスト
	Port int    `yaml:"port"` // リッスンするポート番号

	// タイムアウト設定
	// ストリーミング接続を途中で切らないよう、ファイルからは変更させない
	ReadTimeout  time.Duration `yaml:"-"`
	WriteTimeout time.Duration `yaml:"-"`
}

// CameraConfig はカメラ関連の設定
type CameraConfig struct {
	// キャプチャバックエンド (auto/any/v4l2/dshow/msmf/avfoundation)
	Backend string `yaml:"backend"`

	// 列挙時に走査するインデックスの上限。この値自体は含まない
	MaxProbeIndex int `yaml:"max_probe_index"`

	// デフォルト設定
	DefaultWidth  int `yaml:"default_width"`  // 画像幅
	DefaultHeight int `yaml:"default_height"` // 画像高さ
	JPEGQuality   int `yaml:"jpeg_quality"`   // JPEG圧縮品質 (1-100)
}

// LogConfig はログ出力の設定
type LogConfig struct {
	Level      string `yaml:"level"`        // ログレベル (debug/info/warn/error)
	File       string `yaml:"file"`         // ログファイルパス。空なら標準出力のみ
	MaxSizeMB  int    `yaml:"max_size_mb"`  // ローテーション前の最大サイズ
	MaxBackups int    `yaml:"max_backups"`  // 保持する世代数
	MaxAgeDays int    `yaml:"max_age_days"` // 保持日数
	Compress   bool   `yaml:"compress"`     // ローテーション後に圧縮するか
}

// Load は設定を読み込む
// デフォルト値をベースに、設定ファイル、環境変数の順で上書きする
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	// 設定ファイルは任意。パスが指定された場合のみ読み込む
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("設定ファイルを読み込めません: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("設定ファイルの解析に失敗: %w", err)
		}
	}

	cfg.applyEnv()

	// 設定の検証
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定の検証に失敗: %w", err)
	}

	return cfg, nil
}

// defaultConfig はデフォルト設定を作成する
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 0, // ストリーミング用にタイムアウト無効化
		},
		Camera: CameraConfig{
			Backend:       "auto",
			MaxProbeIndex: camera.DefaultMaxProbeIndex,
			DefaultWidth:  camera.DefaultResolution.Width,
			DefaultHeight: camera.DefaultResolution.Height,
			JPEGQuality:   camera.DefaultJPEGQuality,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
			Compress:   true,
		},
	}
}

// applyEnv は環境変数による上書きを適用する
func (c *Config) applyEnv() {
	c.Server.Host = getEnvOrDefault("SERVER_HOST", c.Server.Host)
	c.Server.Port = getEnvAsIntOrDefault("PORT", c.Server.Port)
	c.Camera.Backend = getEnvOrDefault("CAMERA_BACKEND", c.Camera.Backend)
	c.Camera.MaxProbeIndex = getEnvAsIntOrDefault("CAMERA_MAX_PROBE_INDEX", c.Camera.MaxProbeIndex)
	c.Camera.DefaultWidth = getEnvAsIntOrDefault("CAMERA_DEFAULT_WIDTH", c.Camera.DefaultWidth)
	c.Camera.DefaultHeight = getEnvAsIntOrDefault("CAMERA_DEFAULT_HEIGHT", c.Camera.DefaultHeight)
	c.Camera.JPEGQuality = getEnvAsIntOrDefault("CAMERA_JPEG_QUALITY", c.Camera.JPEGQuality)
	c.Log.Level = getEnvOrDefault("LOG_LEVEL", c.Log.Level)
	c.Log.File = getEnvOrDefault("LOG_FILE", c.Log.File)
}

// Validate は設定の妥当性を検証する
// バックエンド名とログレベルの文字列は、それぞれ利用側の初期化時に検証される
func (c *Config) Validate() error {
	// サーバー設定の検証
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("無効なポート番号: %d", c.Server.Port)
	}

	// カメラ設定の検証
	if c.Camera.MaxProbeIndex < 0 {
		return fmt.Errorf("探索上限は非負で指定してください: %d", c.Camera.MaxProbeIndex)
	}
	if c.Camera.DefaultWidth <= 0 || c.Camera.DefaultHeight <= 0 {
		return fmt.Errorf("無効な既定解像度: %dx%d", c.Camera.DefaultWidth, c.Camera.DefaultHeight)
	}
	if c.Camera.JPEGQuality < 1 || c.Camera.JPEGQuality > 100 {
		return fmt.Errorf("JPEG品質は1から100の範囲で指定してください: %d", c.Camera.JPEGQuality)
	}

	return nil
}

// ServerAddress はサーバーのリッスンアドレスを返す
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// DefaultResolution は設定された既定解像度を返す
func (c *CameraConfig) DefaultResolution() camera.Resolution {
	return camera.Resolution{Width: c.DefaultWidth, Height: c.DefaultHeight}
}

// getEnvOrDefault は環境変数を取得し、設定されていない場合はデフォルト値を返す
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault は環境変数を整数として取得し、設定されていない場合はデフォルト値を返す
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intVal int
		if _, err := fmt.Sscanf(value, "%d", &intVal); err == nil {
			return intVal
		}
	}
	return defaultValue
}
