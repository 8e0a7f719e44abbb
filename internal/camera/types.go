package camera

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Boundary はMJPEGストリームのマルチパート境界文字列
const Boundary = "frame"

const (
	// DefaultJPEGQuality はJPEG圧縮品質の既定値（1-100）
	DefaultJPEGQuality = 80

	// DefaultMaxProbeIndex はデバイス探索の上限インデックスの既定値
	DefaultMaxProbeIndex = 10
)

// chunkHeader は各チャンクの先頭に付く区切りとパートヘッダー
const chunkHeader = "--" + Boundary + "\r\nContent-Type: image/jpeg\r\n\r\n"

// Resolution はカメラの解像度を表す
// あくまで要求値であり、デバイスは近い対応モードへ黙って置き換えることがある
type Resolution struct {
	Width  int // 幅
	Height int // 高さ
}

// DefaultResolution は解像度指定がない場合の既定値
var DefaultResolution = Resolution{Width: 640, Height: 480}

// ParseResolution は "640x480" 形式の文字列を解析する
func ParseResolution(s string) (Resolution, error) {
	width, height, ok := strings.Cut(s, "x")
	if !ok {
		return Resolution{}, fmt.Errorf("解像度の形式が不正です: %q", s)
	}

	w, err := strconv.Atoi(width)
	if err != nil {
		return Resolution{}, fmt.Errorf("解像度の幅が不正です: %q", s)
	}

	h, err := strconv.Atoi(height)
	if err != nil {
		return Resolution{}, fmt.Errorf("解像度の高さが不正です: %q", s)
	}

	if w <= 0 || h <= 0 {
		return Resolution{}, fmt.Errorf("解像度は正の整数で指定してください: %q", s)
	}

	return Resolution{Width: w, Height: h}, nil
}

// String は "WIDTHxHEIGHT" 形式の文字列を返す
func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// DeviceInfo は列挙されたキャプチャデバイスの情報を表す
type DeviceInfo struct {
	Index int    `json:"index"` // デバイスインデックス
	Label string `json:"label"` // 表示名（例: "Device 0"）
}

// Device は開いたキャプチャデバイスのハンドル
// 1つのストリームセッションが排他的に所有し、Closeはちょうど1回だけ呼ばれる
type Device interface {
	// SetResolution は解像度を要求する。デバイスは無視・代替してもよい
	SetResolution(width, height int)

	// Resolution は実際に適用されている解像度を返す
	Resolution() (width, height int)

	// Read は1フレームを取り込む。falseはストリームの終端（切断等）を表す
	Read() bool

	// EncodeJPEG は直近に取り込んだフレームをJPEGへ圧縮する
	EncodeJPEG(quality int) ([]byte, error)

	// Close はデバイスを解放する
	Close() error
}

// Backend はキャプチャデバイスを開く手段を提供する
// バックエンドの選択は起動時に一度だけ解決され、以後は不変の設定として扱う
type Backend interface {
	// Open は指定インデックスのデバイスを開く
	Open(ctx context.Context, index int) (Device, error)

	// Name は解決済みのバックエンド名を返す
	Name() string
}

// Discovery はキャプチャデバイスの列挙機能を提供する
type Discovery interface {
	// ScanDevices は利用可能なデバイスを昇順で列挙する
	ScanDevices(ctx context.Context) []DeviceInfo
}

// Chunk はマルチパート区切り済みの1フレーム分の送信単位
// そのままレスポンスボディへ書き出せる形式になっている
type Chunk []byte

// NewChunk はJPEGデータを区切り形式で包む
func NewChunk(jpeg []byte) Chunk {
	chunk := make(Chunk, 0, len(chunkHeader)+len(jpeg)+2)
	chunk = append(chunk, chunkHeader...)
	chunk = append(chunk, jpeg...)
	chunk = append(chunk, "\r\n"...)
	return chunk
}

// JPEG は区切りを除いたJPEG本体を返す
func (c Chunk) JPEG() []byte {
	if len(c) < len(chunkHeader)+2 {
		return nil
	}
	return c[len(chunkHeader) : len(c)-2]
}
