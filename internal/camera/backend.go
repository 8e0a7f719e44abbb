package camera

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"gocv.io/x/gocv"
)

// backendAPIs はバックエンドヒントとgocvのAPI指定の対応表
var backendAPIs = map[string]gocv.VideoCaptureAPI{
	"any":          gocv.VideoCaptureAny,
	"dshow":        gocv.VideoCaptureDshow,
	"msmf":         gocv.VideoCaptureMSMF,
	"v4l2":         gocv.VideoCaptureV4L2,
	"avfoundation": gocv.VideoCaptureAVFoundation,
}

// NewBackend はバックエンドヒントを解決してBackendを作成する
// "auto"（または空文字列）は起動プラットフォームに応じて一度だけ解決される。
// Windowsでは確実な列挙のためdshowの指定が必要で、それ以外はanyで足りる
func NewBackend(hint string) (Backend, error) {
	name := hint
	if name == "" || name == "auto" {
		name = defaultBackendName()
	}

	api, ok := backendAPIs[name]
	if !ok {
		return nil, fmt.Errorf("不明なバックエンド: %q", hint)
	}

	return &GocvBackend{name: name, api: api}, nil
}

// defaultBackendName はプラットフォームに応じた既定のバックエンド名を返す
func defaultBackendName() string {
	if runtime.GOOS == "windows" {
		return "dshow"
	}
	return "any"
}

// GocvBackend はgocv（OpenCV）によるBackend実装
type GocvBackend struct {
	name string
	api  gocv.VideoCaptureAPI
}

// Name は解決済みのバックエンド名を返す
func (b *GocvBackend) Name() string {
	return b.name
}

// Open は指定インデックスのデバイスを開く
func (b *GocvBackend) Open(ctx context.Context, index int) (Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vc, err := gocv.OpenVideoCaptureWithAPI(index, b.api)
	if err != nil {
		return nil, fmt.Errorf("デバイス %d を開けません: %w", index, err)
	}

	return &gocvDevice{vc: vc, mat: gocv.NewMat()}, nil
}

// gocvDevice は開いたVideoCaptureのDevice実装
// Matはフレームの再利用バッファとして保持し、Close時にまとめて解放する
type gocvDevice struct {
	vc  *gocv.VideoCapture
	mat gocv.Mat
}

// SetResolution は解像度を要求する
func (d *gocvDevice) SetResolution(width, height int) {
	d.vc.Set(gocv.VideoCaptureFrameWidth, float64(width))
	d.vc.Set(gocv.VideoCaptureFrameHeight, float64(height))
}

// Resolution は実際に適用されている解像度を読み戻す
func (d *gocvDevice) Resolution() (int, int) {
	width := int(d.vc.Get(gocv.VideoCaptureFrameWidth))
	height := int(d.vc.Get(gocv.VideoCaptureFrameHeight))
	return width, height
}

// Read は1フレームを取り込む
func (d *gocvDevice) Read() bool {
	if !d.vc.Read(&d.mat) {
		return false
	}
	return !d.mat.Empty()
}

// EncodeJPEG は直近フレームをJPEGへ圧縮する
func (d *gocvDevice) EncodeJPEG(quality int) ([]byte, error) {
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, d.mat,
		[]int{gocv.IMWriteJpegQuality, quality})
	if err != nil {
		return nil, fmt.Errorf("JPEGエンコードに失敗: %w", err)
	}
	defer buf.Close()

	// ネイティブバッファはClose後に無効になるためコピーを返す
	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())
	return data, nil
}

// Close はMatとデバイスを解放する
func (d *gocvDevice) Close() error {
	matErr := d.mat.Close()
	if err := d.vc.Close(); err != nil {
		return err
	}
	return matErr
}

// MockBackend はテスト用のBackend実装
// インデックスごとに登録されたMockDeviceを返し、Openの回数を記録する
type MockBackend struct {
	mu      sync.Mutex
	devices map[int]*MockDevice
	opens   int
}

// NewMockBackend は空のMockBackendを作成する
func NewMockBackend() *MockBackend {
	return &MockBackend{devices: make(map[int]*MockDevice)}
}

// AddDevice は指定インデックスにデバイスを登録する
func (b *MockBackend) AddDevice(index int, device *MockDevice) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.devices[index] = device
}

// Open は登録済みのデバイスを返す。未登録のインデックスは開けない
func (b *MockBackend) Open(_ context.Context, index int) (Device, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	device, exists := b.devices[index]
	if !exists {
		return nil, fmt.Errorf("デバイス %d を開けません", index)
	}

	b.opens++
	return device, nil
}

// Name はバックエンド名を返す
func (b *MockBackend) Name() string {
	return "mock"
}

// OpenCount は成功したOpenの回数を返す
func (b *MockBackend) OpenCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opens
}

// ReleaseCount は全デバイスのClose回数の合計を返す
func (b *MockBackend) ReleaseCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	total := 0
	for _, device := range b.devices {
		total += device.CloseCalls()
	}
	return total
}

// MockDevice はテスト用のDevice実装
// 指定回数だけフレームを読み取れ、特定フレームのエンコード失敗を再現できる
type MockDevice struct {
	mu sync.Mutex

	frameCount  int          // Readがtrueを返す残り回数
	payload     []byte       // EncodeJPEGが返すデータ
	encodeFails map[int]bool // 失敗させるフレーム番号（1始まり）
	width       int
	height      int
	honorSet    bool // SetResolutionの要求を反映するかどうか

	reads  int
	closes int
}

// NewMockDevice は指定フレーム数だけ読み取れるデバイスを作成する
func NewMockDevice(frameCount int) *MockDevice {
	return &MockDevice{
		frameCount:  frameCount,
		payload:     []byte("\xff\xd8mockjpeg\xff\xd9"),
		encodeFails: make(map[int]bool),
		width:       DefaultResolution.Width,
		height:      DefaultResolution.Height,
		honorSet:    true,
	}
}

// SetPayload はEncodeJPEGが返すデータを設定する
func (d *MockDevice) SetPayload(data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.payload = data
}

// FailEncodeAt は指定フレーム（1始まり）のエンコードを失敗させる
func (d *MockDevice) FailEncodeAt(frame int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.encodeFails[frame] = true
}

// SetFixedResolution は解像度要求を無視して固定値を報告させる
func (d *MockDevice) SetFixedResolution(width, height int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.width = width
	d.height = height
	d.honorSet = false
}

// SetResolution は解像度を要求する
func (d *MockDevice) SetResolution(width, height int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.honorSet {
		d.width = width
		d.height = height
	}
}

// Resolution は報告する解像度を返す
func (d *MockDevice) Resolution() (int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.width, d.height
}

// Read は残りフレームがある間trueを返す
func (d *MockDevice) Read() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.reads >= d.frameCount {
		return false
	}
	d.reads++
	return true
}

// EncodeJPEG は設定されたペイロードを返す
// FailEncodeAtで指定されたフレームではエラーを返す
func (d *MockDevice) EncodeJPEG(_ int) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.encodeFails[d.reads] {
		return nil, fmt.Errorf("エンコード失敗（フレーム %d）", d.reads)
	}
	return d.payload, nil
}

// Close はデバイスを解放する
func (d *MockDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closes++
	return nil
}

// CloseCalls はCloseが呼ばれた回数を返す
func (d *MockDevice) CloseCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closes
}

// ReadCalls はReadが呼ばれた回数を返す
func (d *MockDevice) ReadCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reads
}
