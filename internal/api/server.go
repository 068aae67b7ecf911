package api

import (
	"context"
	"embed"
	"fmt"
	"net/http"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog"

	"github.com/char5742/motion-trail/internal/features"
	"github.com/char5742/motion-trail/internal/logging"
)

var apiLog zerolog.Logger = logging.Module("api")

//go:embed static
var staticFiles embed.FS

// Server はAPIサーバーを表す構造体
type Server struct {
	server     *http.Server
	service    *TrackerService
	hub        *Broadcaster
	monitor    *features.DeviceMonitor
	configPath string
	port       int
	done       chan struct{}
	stopOnce   sync.Once
}

// NewServer は新しいAPIサーバーを作成する
func NewServer(service *TrackerService, configPath string, port int) *Server {
	return &Server{
		service:    service,
		hub:        NewBroadcaster(service.Sampler()),
		configPath: configPath,
		port:       port,
		done:       make(chan struct{}),
	}
}

// SetDeviceMonitor はデバイス一覧の取得に使うモニターを設定する
func (s *Server) SetDeviceMonitor(monitor *features.DeviceMonitor) {
	s.monitor = monitor
}

// Handler はルーティング済みのハンドラーを返す
func (s *Server) Handler() http.Handler {
	router := http.NewServeMux()
	s.setupRoutes(router)
	return router
}

// URL はダッシュボードのURLを返す
func (s *Server) URL() string {
	return fmt.Sprintf("http://localhost:%d/", s.port)
}

// Start はAPIサーバーを開始する。Stop されるまでブロックする
func (s *Server) Start() error {
	// HTTPサーバーの設定
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.Handler(),
	}

	// サーバーの起動
	apiLog.Info().Int("port", s.port).Msgf("APIサーバーを開始します: %s", s.URL())
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop はAPIサーバーを停止する
// SSEストリームは Shutdown を待たずに閉じる
func (s *Server) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() {
		close(s.done)
		s.hub.Close()
	})
	if s.server != nil {
		apiLog.Info().Msg("APIサーバーを停止します...")
		return s.server.Shutdown(ctx)
	}
	return nil
}

// writeJSON はJSONレスポンスを書き込む
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
	w.WriteHeader(status)
	if data != nil {
		if err := sonic.ConfigDefault.NewEncoder(w).Encode(data); err != nil {
			apiLog.Error().Err(err).Msg("JSONエンコードエラー")
		}
	}
}

// writeError はエラーレスポンスを書き込む
func writeError(w http.ResponseWriter, status int, message string) {
	response := map[string]string{"error": message}
	writeJSON(w, status, response)
}
