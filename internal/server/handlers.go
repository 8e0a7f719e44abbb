package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"yagura/internal/camera"
	"yagura/internal/config"
)

// ErrorResponse はエラー応答の形式
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthResponse はヘルスチェック応答の形式
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// ServerInfo はステータス応答に含まれるサーバー情報
type ServerInfo struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// StatusResponse はシステム状態応答の形式
type StatusResponse struct {
	Status    string     `json:"status"`
	Server    ServerInfo `json:"server"`
	Backend   string     `json:"backend"`
	Timestamp time.Time  `json:"timestamp"`
}

// CamerasResponse はカメラ一覧応答の形式
type CamerasResponse struct {
	Cameras []camera.DeviceInfo `json:"cameras"`
}

// Handler は各エンドポイントの処理を実装する
type Handler struct {
	config    *config.Config
	backend   camera.Backend
	discovery camera.Discovery
	log       *zap.Logger
	upgrader  websocket.Upgrader
}

// NewHandler は新しいHandlerを作成する
func NewHandler(cfg *config.Config, backend camera.Backend, log *zap.Logger) *Handler {
	return &Handler{
		config:    cfg,
		backend:   backend,
		discovery: camera.NewProbeDiscovery(backend, cfg.Camera.MaxProbeIndex, log),
		log:       log,
		upgrader: websocket.Upgrader{
			// 閲覧ページ以外のオリジンからの接続も受け付ける
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// RegisterRoutes はルーティングを設定する
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/", h.Index)
	r.GET("/health", h.HealthCheck)
	r.GET("/api/status", h.GetStatus)
	r.GET("/api/cameras", h.GetCameras)
	r.GET("/video_feed", h.GetVideoFeed)
	r.GET("/snapshot", h.GetSnapshot)
	r.GET("/ws/video", h.GetVideoWebSocket)
}

// Index は閲覧ページを返す
func (h *Handler) Index(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", getIndexHTML())
}

// HealthCheck はヘルスチェックエンドポイントの実装
func (h *Handler) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
	}

	c.JSON(http.StatusOK, response)
}

// GetStatus はシステム状態取得エンドポイントの実装
func (h *Handler) GetStatus(c *gin.Context) {
	response := StatusResponse{
		Status: "running",
		Server: ServerInfo{
			Host: h.config.Server.Host,
			Port: h.config.Server.Port,
		},
		Backend:   h.backend.Name(),
		Timestamp: time.Now(),
	}

	c.JSON(http.StatusOK, response)
}

// GetCameras はカメラ一覧取得エンドポイントの実装
// 呼び出しのたびにデバイスを探索し、その時点のスナップショットを返す
func (h *Handler) GetCameras(c *gin.Context) {
	response := CamerasResponse{
		Cameras: h.discovery.ScanDevices(c.Request.Context()),
	}

	c.JSON(http.StatusOK, response)
}

// GetVideoFeed はMJPEGストリーミングエンドポイントの実装
func (h *Handler) GetVideoFeed(c *gin.Context) {
	deviceID := c.DefaultQuery("device", "0")
	res := h.resolutionParam(c)

	// セッションごとにパイプラインを使い捨てる
	pipeline := camera.NewPipeline(h.backend, h.config.Camera.JPEGQuality, h.log)
	stream, err := pipeline.OpenStream(c.Request.Context(), deviceID, res)
	if err != nil {
		h.streamError(c, err)
		return
	}
	defer stream.Close()

	// レスポンスヘッダーを設定
	c.Header("Content-Type", "multipart/x-mixed-replace; boundary="+camera.Boundary)
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("Access-Control-Allow-Origin", "*")

	// レスポンスライターを取得
	writer := c.Writer
	flusher, ok := writer.(http.Flusher)
	if !ok {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	// クライアント切断を検知するためのコンテキスト
	clientGone := c.Request.Context().Done()

	// ストリーミングループ
	for {
		select {
		case <-clientGone:
			// クライアントが切断された
			return

		case chunk, ok := <-stream.Chunks():
			if !ok {
				// ストリームが終端に達した
				return
			}

			// 区切り済みチャンクを書き込み
			if _, err := writer.Write(chunk); err != nil {
				return
			}

			// バッファをフラッシュ
			flusher.Flush()
		}
	}
}

// GetSnapshot は現在のフレームを1枚のJPEG画像として返す
func (h *Handler) GetSnapshot(c *gin.Context) {
	deviceID := c.DefaultQuery("device", "0")
	res := h.resolutionParam(c)

	pipeline := camera.NewPipeline(h.backend, h.config.Camera.JPEGQuality, h.log)
	jpeg, err := pipeline.CaptureFrame(c.Request.Context(), deviceID, res)
	if err != nil {
		h.streamError(c, err)
		return
	}

	c.Data(http.StatusOK, "image/jpeg", jpeg)
}

// GetVideoWebSocket はWebSocketでJPEGフレームを配信する
// マルチパート区切りを除いた生のJPEGをバイナリメッセージとして送る
func (h *Handler) GetVideoWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade失敗時は既にエラー応答済み
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// クライアントからの切断を検知する
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	deviceID := c.DefaultQuery("device", "0")
	res := h.resolutionParam(c)

	pipeline := camera.NewPipeline(h.backend, h.config.Camera.JPEGQuality, h.log)
	stream, err := pipeline.OpenStream(ctx, deviceID, res)
	if err != nil {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "ストリームを開始できません"))
		return
	}
	defer stream.Close()

	for chunk := range stream.Chunks() {
		if err := conn.WriteMessage(websocket.BinaryMessage, chunk.JPEG()); err != nil {
			return
		}
	}
}

// resolutionParam はクエリパラメータから解像度を解釈する
// 欠落または不正な場合は設定の既定値にフォールバックする
func (h *Handler) resolutionParam(c *gin.Context) camera.Resolution {
	raw := c.Query("resolution")
	if raw == "" {
		return h.config.Camera.DefaultResolution()
	}

	res, err := camera.ParseResolution(raw)
	if err != nil {
		h.log.Warn("不正な解像度指定のため既定値を使用します",
			zap.String("resolution", raw), zap.Error(err))
		return h.config.Camera.DefaultResolution()
	}
	return res
}

// streamError はストリーム開始失敗をJSONで応答する
func (h *Handler) streamError(c *gin.Context, err error) {
	if errors.Is(err, camera.ErrInvalidDeviceID) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:     "invalid_device",
			Message:   "デバイスIDは非負整数で指定してください",
			Timestamp: time.Now(),
		})
		return
	}

	// デバイス不在は異常ではないため、利用不可としてそのまま返す
	c.JSON(http.StatusServiceUnavailable, ErrorResponse{
		Error:     "stream_unavailable",
		Message:   "ストリームを開始できません",
		Timestamp: time.Now(),
	})
}
