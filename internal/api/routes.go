package api

import (
	"errors"
	"io/fs"
	"net/http"
	"path/filepath"
	"time"

	"github.com/bytedance/sonic"

	"github.com/char5742/motion-trail/internal/config"
	"github.com/char5742/motion-trail/internal/features"
	"github.com/char5742/motion-trail/internal/motion"
)

// sseKeepAlive はSSE接続を維持するためのコメント送信間隔
const sseKeepAlive = 15 * time.Second

// ルートの設定
func (s *Server) setupRoutes(router *http.ServeMux) {
	// モーション関連のエンドポイント
	router.HandleFunc("GET /api/state", s.handleGetState)
	router.HandleFunc("POST /api/reset", s.handleReset)
	router.HandleFunc("GET /api/events", s.handleEvents)

	// 設定関連のエンドポイント
	router.HandleFunc("GET /api/config", s.handleGetConfig)
	router.HandleFunc("PUT /api/config", s.handleUpdateConfig)
	router.HandleFunc("POST /api/config/save", s.handleSaveConfig)

	// デバイス関連のエンドポイント
	router.HandleFunc("GET /api/devices", s.handleGetDevices)

	// サービス関連のエンドポイント
	router.HandleFunc("POST /api/service/start", s.handleStartService)
	router.HandleFunc("POST /api/service/stop", s.handleStopService)
	router.HandleFunc("GET /api/service/status", s.handleServiceStatus)

	// ヘルスチェック用エンドポイント
	router.HandleFunc("GET /api/health", s.handleHealthCheck)

	// ダッシュボード
	static, _ := fs.Sub(staticFiles, "static")
	router.Handle("GET /", http.FileServerFS(static))
}

// stateResponse は表示用の派生値を含むモーション状態
type stateResponse struct {
	motion.Snapshot
	SpeedGauge     float64 `json:"speed_gauge"`
	DistanceMeters float64 `json:"distance_meters"`
}

func newStateResponse(snap motion.Snapshot) stateResponse {
	return stateResponse{
		Snapshot:       snap,
		SpeedGauge:     snap.SpeedGauge(),
		DistanceMeters: snap.DistanceMeters(),
	}
}

func (s *Server) currentState() stateResponse {
	return newStateResponse(s.service.Sampler().Snapshot())
}

// モーション状態取得ハンドラ
func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.currentState())
}

// 統計リセットハンドラ
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.service.Sampler().Reset()
	writeJSON(w, http.StatusOK, s.currentState())
}

// モーション状態のSSEストリーム
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "ストリーミングに対応していません")
		return
	}

	updates, leave := s.hub.Join()
	defer leave()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)

	// 接続直後に現在の状態を送る
	initial := s.currentState()
	if err := writeSSE(w, initial); err != nil {
		return
	}
	sent := initial.Seq
	flusher.Flush()

	keepAlive := time.NewTicker(sseKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.done:
			return
		case snap := <-updates:
			if snap.Seq <= sent {
				continue
			}
			sent = snap.Seq
			if err := writeSSE(w, newStateResponse(snap)); err != nil {
				apiLog.Debug().Err(err).Msg("SSEクライアントへの送信に失敗しました")
				return
			}
			flusher.Flush()
		case <-keepAlive.C:
			if _, err := w.Write([]byte(": keep-alive\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, state stateResponse) error {
	data, err := sonic.Marshal(state)
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte("event: motion\ndata: ")); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	_, err = w.Write([]byte("\n\n"))
	return err
}

// 設定取得ハンドラ
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Config())
}

// 設定更新ハンドラ
func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	newConfig := config.DefaultConfig()

	if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(newConfig); err != nil {
		writeError(w, http.StatusBadRequest, "設定の解析に失敗しました")
		return
	}
	if err := newConfig.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.service.UpdateConfig(newConfig)
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// 設定保存ハンドラ
func (s *Server) handleSaveConfig(w http.ResponseWriter, r *http.Request) {
	var saveRequest struct {
		Path string `json:"path"`
	}

	if r.ContentLength != 0 {
		if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&saveRequest); err != nil {
			writeError(w, http.StatusBadRequest, "リクエストの解析に失敗しました")
			return
		}
	}

	configPath := saveRequest.Path
	if configPath == "" {
		configPath = s.configPath
	}
	if configPath == "" {
		// デフォルトパスを使用
		userConfigDir, err := config.GetDefaultConfigDir()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "デフォルト設定ディレクトリの取得に失敗しました")
			return
		}
		configPath = filepath.Join(userConfigDir, "config.toml")
	}

	if err := config.SaveConfig(configPath, s.service.Config()); err != nil {
		writeError(w, http.StatusInternalServerError, "設定の保存に失敗しました: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "success",
		"path":   configPath,
	})
}

// デバイス一覧取得ハンドラ
func (s *Server) handleGetDevices(w http.ResponseWriter, r *http.Request) {
	if s.monitor != nil {
		writeJSON(w, http.StatusOK, s.monitor.GetConnectedDevices())
		return
	}

	devices, err := features.ScanDevices()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "デバイス一覧の取得に失敗しました: "+err.Error())
		return
	}
	if devices == nil {
		devices = []features.Device{}
	}
	writeJSON(w, http.StatusOK, devices)
}

// サービス起動ハンドラ
func (s *Server) handleStartService(w http.ResponseWriter, r *http.Request) {
	err := s.service.Start()
	switch {
	case errors.Is(err, ErrServiceRunning):
		writeJSON(w, http.StatusOK, map[string]string{"status": "already_running"})
	case errors.Is(err, features.ErrNoMouseDevice):
		writeError(w, http.StatusNotFound, "マウスデバイスが見つかりませんでした")
	case errors.Is(err, features.ErrHookUnavailable):
		writeError(w, http.StatusNotImplemented, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, "サービスの起動に失敗しました: "+err.Error())
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "started"})
	}
}

// サービス停止ハンドラ
func (s *Server) handleStopService(w http.ResponseWriter, r *http.Request) {
	if !s.service.IsRunning() {
		// 自然終了したソースの後始末も兼ねる
		_ = s.service.Stop()
		writeJSON(w, http.StatusOK, map[string]string{"status": "not_running"})
		return
	}

	if err := s.service.Stop(); err != nil {
		writeError(w, http.StatusInternalServerError, "サービスの停止に失敗しました: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

// サービス状態取得ハンドラ
func (s *Server) handleServiceStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Status())
}

// ヘルスチェックハンドラ
func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
