package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestConfigLoad は設定の読み込みをテストする
func TestConfigLoad(t *testing.T) {
	// 設定ファイルなしで読み込む
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	// 基本的な設定値を検証
	if cfg == nil {
		t.Fatal("設定がnilです")
	}

	// サーバー設定の検証
	if cfg.Server.Host == "" {
		t.Error("サーバーホストが設定されていません")
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		t.Errorf("無効なポート番号: %d", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout <= 0 {
		t.Error("読み込みタイムアウトが設定されていません")
	}
	// WriteTimeout は 0（無効）でも正常
	if cfg.Server.WriteTimeout < 0 {
		t.Error("書き込みタイムアウトが負の値です")
	}

	// カメラ設定の検証
	if cfg.Camera.Backend == "" {
		t.Error("バックエンドが設定されていません")
	}
	if cfg.Camera.MaxProbeIndex != 10 {
		t.Errorf("既定の探索上限が一致しません: got %d, want 10", cfg.Camera.MaxProbeIndex)
	}
	if cfg.Camera.DefaultWidth != 640 || cfg.Camera.DefaultHeight != 480 {
		t.Errorf("既定解像度が一致しません: got %dx%d, want 640x480",
			cfg.Camera.DefaultWidth, cfg.Camera.DefaultHeight)
	}
	if cfg.Camera.JPEGQuality != 80 {
		t.Errorf("既定のJPEG品質が一致しません: got %d, want 80", cfg.Camera.JPEGQuality)
	}

	// ログ設定の検証
	if cfg.Log.Level != "info" {
		t.Errorf("既定のログレベルが一致しません: got %s, want info", cfg.Log.Level)
	}
}

// TestConfigLoadFile は設定ファイルの読み込みをテストする
func TestConfigLoadFile(t *testing.T) {
	content := `
server:
  host: 10.0.0.5
  port: 9000
camera:
  backend: v4l2
  max_probe_index: 4
  default_width: 1280
  default_height: 720
  jpeg_quality: 60
log:
  level: debug
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("設定ファイルの作成に失敗しました: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	if cfg.Server.Host != "10.0.0.5" {
		t.Errorf("ホストが反映されていません: got %s, want 10.0.0.5", cfg.Server.Host)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("ポートが反映されていません: got %d, want 9000", cfg.Server.Port)
	}
	if cfg.Camera.Backend != "v4l2" {
		t.Errorf("バックエンドが反映されていません: got %s, want v4l2", cfg.Camera.Backend)
	}
	if cfg.Camera.MaxProbeIndex != 4 {
		t.Errorf("探索上限が反映されていません: got %d, want 4", cfg.Camera.MaxProbeIndex)
	}
	if cfg.Camera.DefaultWidth != 1280 || cfg.Camera.DefaultHeight != 720 {
		t.Errorf("解像度が反映されていません: got %dx%d, want 1280x720",
			cfg.Camera.DefaultWidth, cfg.Camera.DefaultHeight)
	}
	if cfg.Camera.JPEGQuality != 60 {
		t.Errorf("JPEG品質が反映されていません: got %d, want 60", cfg.Camera.JPEGQuality)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("ログレベルが反映されていません: got %s, want debug", cfg.Log.Level)
	}

	// ファイルに書いていない項目はデフォルトのまま
	if cfg.Server.ReadTimeout != 10*time.Second {
		t.Errorf("読み込みタイムアウトが既定値ではありません: %v", cfg.Server.ReadTimeout)
	}
}

// TestConfigLoadFile_Missing は存在しない設定ファイルの扱いをテストする
func TestConfigLoadFile_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "no-such-config.yaml"))
	if err == nil {
		t.Error("エラーが期待されましたが、エラーが発生しませんでした")
	}
}

// TestConfigValidation は設定の検証をテストする
func TestConfigValidation(t *testing.T) {
	testCases := []struct {
		name      string
		mutate    func(*Config)
		expectErr bool
	}{
		{
			name:      "正常な設定",
			mutate:    func(c *Config) {},
			expectErr: false,
		},
		{
			name: "無効なポート番号",
			mutate: func(c *Config) {
				c.Server.Port = 99999
			},
			expectErr: true,
		},
		{
			name: "ポート番号ゼロ",
			mutate: func(c *Config) {
				c.Server.Port = 0
			},
			expectErr: true,
		},
		{
			name: "負の探索上限",
			mutate: func(c *Config) {
				c.Camera.MaxProbeIndex = -1
			},
			expectErr: true,
		},
		{
			name: "探索上限ゼロは許容",
			mutate: func(c *Config) {
				c.Camera.MaxProbeIndex = 0
			},
			expectErr: false,
		},
		{
			name: "無効な既定解像度",
			mutate: func(c *Config) {
				c.Camera.DefaultWidth = 0
			},
			expectErr: true,
		},
		{
			name: "JPEG品質範囲外",
			mutate: func(c *Config) {
				c.Camera.JPEGQuality = 101
			},
			expectErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultConfig()
			tc.mutate(cfg)

			err := cfg.Validate()
			if tc.expectErr && err == nil {
				t.Error("エラーが期待されましたが、エラーが発生しませんでした")
			}
			if !tc.expectErr && err != nil {
				t.Errorf("予期しないエラーが発生しました: %v", err)
			}
		})
	}
}

// TestServerAddress はサーバーアドレスの生成をテストする
func TestServerAddress(t *testing.T) {
	cfg := &Config{
		Server: ServerConfig{
			Host: "192.168.1.100",
			Port: 9090,
		},
	}

	expected := "192.168.1.100:9090"
	actual := cfg.ServerAddress()

	if actual != expected {
		t.Errorf("サーバーアドレスが一致しません: got %s, want %s", actual, expected)
	}
}

// TestDefaultResolution は既定解像度の取得をテストする
func TestDefaultResolution(t *testing.T) {
	cfg := defaultConfig()

	res := cfg.Camera.DefaultResolution()
	if res.Width != 640 || res.Height != 480 {
		t.Errorf("既定解像度が一致しません: got %s, want 640x480", res)
	}
}

// TestEnvironmentVariables は環境変数の処理をテストする
// 注意: このテストは環境変数を変更するため、parallelは使わない
func TestEnvironmentVariables(t *testing.T) {
	// テスト用の環境変数を設定
	originalHost := os.Getenv("SERVER_HOST")
	originalPort := os.Getenv("PORT")
	originalBackend := os.Getenv("CAMERA_BACKEND")

	defer func() {
		// テスト後に環境変数を復元
		_ = os.Setenv("SERVER_HOST", originalHost)
		_ = os.Setenv("PORT", originalPort)
		_ = os.Setenv("CAMERA_BACKEND", originalBackend)
	}()

	// 環境変数を設定
	_ = os.Setenv("SERVER_HOST", "test.example.com")
	_ = os.Setenv("PORT", "9999")
	_ = os.Setenv("CAMERA_BACKEND", "v4l2")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	if cfg.Server.Host != "test.example.com" {
		t.Errorf("環境変数のホストが反映されていません: got %s, want test.example.com", cfg.Server.Host)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("環境変数のポートが反映されていません: got %d, want 9999", cfg.Server.Port)
	}
	if cfg.Camera.Backend != "v4l2" {
		t.Errorf("環境変数のバックエンドが反映されていません: got %s, want v4l2", cfg.Camera.Backend)
	}
}

// TestEnvironmentOverridesFile は環境変数がファイル設定より優先されることをテストする
func TestEnvironmentOverridesFile(t *testing.T) {
	content := `
server:
  port: 9000
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("設定ファイルの作成に失敗しました: %v", err)
	}

	originalPort := os.Getenv("PORT")
	defer func() {
		_ = os.Setenv("PORT", originalPort)
	}()
	_ = os.Setenv("PORT", "7777")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	if cfg.Server.Port != 7777 {
		t.Errorf("環境変数がファイル設定を上書きしていません: got %d, want 7777", cfg.Server.Port)
	}
}
