package camera

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// ProbeDiscovery はインデックスを順に試し開きして利用可能なデバイスを列挙する
// 呼び出し間で状態を持たず、結果は呼び出した瞬間のスナップショットでしかない
type ProbeDiscovery struct {
	backend  Backend
	maxIndex int
	log      *zap.Logger
}

// NewProbeDiscovery は新しいProbeDiscoveryを作成する
// maxIndexは走査する上限（その値自身は含まない）
func NewProbeDiscovery(backend Backend, maxIndex int, log *zap.Logger) *ProbeDiscovery {
	return &ProbeDiscovery{
		backend:  backend,
		maxIndex: maxIndex,
		log:      log,
	}
}

// ScanDevices は[0, maxIndex)の各インデックスを試し開きし、開けたものだけを昇順で返す
// 開けないインデックスは欠番として黙って飛ばす（エラーではなく「不在」扱い）。
// 開いたハンドルはその場で解放し、復帰時にはハンドルを一切保持しない
func (d *ProbeDiscovery) ScanDevices(ctx context.Context) []DeviceInfo {
	devices := make([]DeviceInfo, 0)

	for index := 0; index < d.maxIndex; index++ {
		select {
		case <-ctx.Done():
			return devices
		default:
		}

		device, err := d.backend.Open(ctx, index)
		if err != nil {
			continue
		}

		if err := device.Close(); err != nil {
			d.log.Warn("探索中のデバイス解放に失敗しました",
				zap.Int("index", index), zap.Error(err))
		}

		devices = append(devices, DeviceInfo{
			Index: index,
			Label: fmt.Sprintf("Device %d", index),
		})
	}

	return devices
}
