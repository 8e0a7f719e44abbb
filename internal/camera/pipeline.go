package camera

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrInvalidDeviceID は非負整数として解釈できないデバイスID入力を示す
var ErrInvalidDeviceID = errors.New("不正なデバイスID")

// Pipeline は1ストリーミングセッション分のフレーム供給を担う
// リクエストごとに新しく作成される使い捨ての値で、バックエンド選択と
// 品質設定だけを不変の構成として持ち、セッション間で状態を共有しない
type Pipeline struct {
	backend Backend
	quality int
	log     *zap.Logger
}

// NewPipeline は新しいPipelineを作成する
// qualityが1-100の範囲外の場合はDefaultJPEGQualityを使用する
func NewPipeline(backend Backend, quality int, log *zap.Logger) *Pipeline {
	if quality < 1 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	return &Pipeline{
		backend: backend,
		quality: quality,
		log:     log,
	}
}

// OpenStream はデバイスを開いてストリームセッションを開始する
//
// deviceIDが非負整数として解釈できない場合、またはデバイスを開けない場合は、
// チャンクを1つも生成せずエラーを返す（デバイス不在は異常ではなく通常の結果）。
// 解像度はあくまで要求であり、実際に適用された値はStream.Resolutionで読める。
// 要求と異なっていても中断はせず、警告を出して続行する
func (p *Pipeline) OpenStream(ctx context.Context, deviceID string, res Resolution) (*Stream, error) {
	index, err := parseDeviceID(deviceID)
	if err != nil {
		return nil, err
	}

	device, err := p.backend.Open(ctx, index)
	if err != nil {
		return nil, err
	}

	// 解像度を要求し、実際に適用された値を読み戻す
	device.SetResolution(res.Width, res.Height)
	actualW, actualH := device.Resolution()
	actual := Resolution{Width: actualW, Height: actualH}

	log := p.log.With(
		zap.String("stream_id", uuid.New().String()),
		zap.Int("device", index),
	)

	if actual != res {
		// 不一致は致命的ではない。観測可能な警告として報告して続行する
		log.Warn("要求解像度が適用されませんでした",
			zap.String("requested", res.String()),
			zap.String("actual", actual.String()))
	}

	streamCtx, cancel := context.WithCancel(ctx)
	s := &Stream{
		actual: actual,
		chunks: make(chan Chunk),
		done:   make(chan struct{}),
		cancel: cancel,
	}

	log.Info("ストリームを開始します", zap.String("resolution", actual.String()))
	go p.run(streamCtx, device, s, log)

	return s, nil
}

// run はストリーミングループの本体
// どの経路で終了してもデバイスをちょうど1回だけ解放する。
// deferはLIFOで実行されるため、chunksがクローズされた時点で解放は完了している
func (p *Pipeline) run(ctx context.Context, device Device, s *Stream, log *zap.Logger) {
	defer close(s.done)
	defer close(s.chunks)
	defer func() {
		if err := device.Close(); err != nil {
			log.Warn("デバイスの解放に失敗しました", zap.Error(err))
			return
		}
		log.Debug("デバイスを解放しました")
	}()

	frame := 0
	for {
		if !device.Read() {
			// 読み取り失敗はストリームの通常の終端（切断・タイムアウト等）
			log.Info("ストリームを終了します", zap.Int("frames", frame))
			return
		}
		frame++

		jpeg, err := device.EncodeJPEG(p.quality)
		if err != nil {
			// エンコード失敗はこのフレームだけを飛ばして続行する
			log.Warn("フレームのエンコードに失敗しました",
				zap.Int("frame", frame), zap.Error(err))
			continue
		}

		// 送信はバッファなしチャンネルでブロックする。消費側が次のチャンクを
		// 要求するまでがこのループの中断点になる
		select {
		case s.chunks <- NewChunk(jpeg):
		case <-ctx.Done():
			log.Info("ストリームが中断されました", zap.Int("frames", frame))
			return
		}
	}
}

// CaptureFrame は1フレームだけ取得してJPEGとして返す
// スナップショット用。成否にかかわらずデバイスは即座に解放する
func (p *Pipeline) CaptureFrame(ctx context.Context, deviceID string, res Resolution) ([]byte, error) {
	index, err := parseDeviceID(deviceID)
	if err != nil {
		return nil, err
	}

	device, err := p.backend.Open(ctx, index)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := device.Close(); err != nil {
			p.log.Warn("デバイスの解放に失敗しました",
				zap.Int("device", index), zap.Error(err))
		}
	}()

	device.SetResolution(res.Width, res.Height)

	if !device.Read() {
		return nil, fmt.Errorf("デバイス %d からフレームを読み取れません", index)
	}

	jpeg, err := device.EncodeJPEG(p.quality)
	if err != nil {
		return nil, fmt.Errorf("フレームのエンコードに失敗: %w", err)
	}

	return jpeg, nil
}

// parseDeviceID はデバイスIDを非負整数として解釈する
func parseDeviceID(deviceID string) (int, error) {
	index, err := strconv.Atoi(deviceID)
	if err != nil || index < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDeviceID, deviceID)
	}
	return index, nil
}

// Stream は1本のライブストリームセッションを表す
type Stream struct {
	actual Resolution
	chunks chan Chunk
	done   chan struct{}
	cancel context.CancelFunc
}

// Chunks は区切り済みチャンクの遅延シーケンスを返す
// チャンネルのクローズはストリーム終端を意味し、その時点でデバイスは解放済み
func (s *Stream) Chunks() <-chan Chunk {
	return s.chunks
}

// Resolution は実際に適用された解像度を返す
func (s *Stream) Resolution() Resolution {
	return s.actual
}

// Close はストリームを中断し、デバイスの解放が完了するまで待つ
// 何度呼んでも安全で、解放は常にちょうど1回だけ行われる
func (s *Stream) Close() {
	s.cancel()
	<-s.done
}
