package api

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/char5742/motion-trail/internal/config"
	"github.com/char5742/motion-trail/internal/features"
	"github.com/char5742/motion-trail/internal/motion"
)

var (
	// ErrServiceRunning はサービスが既に実行中のときに返される
	ErrServiceRunning = errors.New("service is already running")
	// ErrServiceStopped はサービスが実行されていないときに返される
	ErrServiceStopped = errors.New("service is not running")
)

// SourceOpener は設定に従って入力ソースを開く。2番目の戻り値は使用したデバイス名
type SourceOpener func(cfg *config.Config) (features.PointerSource, string, error)

// OpenSource は設定の input.source に応じた入力ソースを開く
func OpenSource(cfg *config.Config) (features.PointerSource, string, error) {
	if cfg.Input.Source == config.SourceHook {
		src, err := features.NewHookSource()
		if err != nil {
			return nil, "", err
		}
		return src, "", nil
	}

	// デバイス一覧の取得
	devices, err := features.ScanDevices()
	if err != nil {
		return nil, "", fmt.Errorf("デバイス一覧の取得に失敗しました: %w", err)
	}

	// 設定ファイルで指定された優先デバイスまたは最初のマウスを使用
	device, err := features.SelectMouse(devices, cfg.DevicePrefs.PreferredMouseDevice)
	if err != nil {
		return nil, "", err
	}

	mouse, err := features.CreateMouse(device.Path)
	if err != nil {
		return nil, "", fmt.Errorf("マウスデバイスのオープンに失敗しました[path=%s]: %w", device.Path, err)
	}
	apiLog.Info().Str("device", device.Name).Str("name", mouse.Name()).Msg("使用するマウス")

	src := features.NewEvdevSource(mouse, features.EvdevOptions{
		Width:                 cfg.Input.ScreenWidth,
		Height:                cfg.Input.ScreenHeight,
		Sensitivity:           cfg.Input.Sensitivity,
		FilterSmoothingFactor: cfg.Input.FilterSmoothingFactor,
		FilterWarmUpCount:     cfg.Input.FilterWarmUpCount,
		Grab:                  cfg.Input.Grab,
	})
	return src, device.Name, nil
}

// TrackerService はポインター入力をサンプラーに流し込むサービスを管理する構造体
type TrackerService struct {
	cfg         *config.Config
	sampler     *motion.Sampler
	open        SourceOpener
	statusMutex sync.RWMutex
	running     bool
	source      features.PointerSource
	deviceName  string
	cancel      context.CancelFunc
	done        chan struct{}
	runErr      error
}

// NewTrackerService は新しいサービスを作成する。サンプラーはサービスの寿命と同じだけ生存する
func NewTrackerService(cfg *config.Config, open SourceOpener) *TrackerService {
	if open == nil {
		open = OpenSource
	}
	return &TrackerService{
		cfg:     cfg,
		sampler: motion.NewSampler(cfg.MotionOptions(), time.Now(), nil),
		open:    open,
	}
}

// Sampler はサービスが所有するサンプラーを返す
func (s *TrackerService) Sampler() *motion.Sampler {
	return s.sampler
}

// Start は入力ソースを開いて読み取りを開始する
func (s *TrackerService) Start() error {
	s.statusMutex.Lock()
	defer s.statusMutex.Unlock()

	if s.isRunningLocked() {
		return ErrServiceRunning
	}

	src, deviceName, err := s.open(s.cfg)
	if err != nil {
		return fmt.Errorf("入力ソースのオープンに失敗しました: %w", err)
	}

	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.source = src
	s.deviceName = deviceName
	s.cancel = cancel
	s.done = make(chan struct{})
	s.runErr = nil
	s.running = true

	go s.run(ctx, src, s.done)

	apiLog.Info().Str("source", src.Name()).Msg("トラッキングを開始しました")
	return nil
}

// run は入力ソースの読み取りループ
func (s *TrackerService) run(ctx context.Context, src features.PointerSource, done chan struct{}) {
	defer close(done)
	defer src.Close()

	err := src.Run(ctx, s.sampler.OnPointerMove)
	if err != nil {
		apiLog.Error().Err(err).Str("source", src.Name()).Msg("入力ソースが異常終了しました")
	}
	s.statusMutex.Lock()
	s.runErr = err
	s.statusMutex.Unlock()
}

// Stop は入力ソースの読み取りを停止する
func (s *TrackerService) Stop() error {
	s.statusMutex.Lock()
	if !s.running {
		s.statusMutex.Unlock()
		return ErrServiceStopped
	}
	s.running = false
	cancel, done := s.cancel, s.done
	s.statusMutex.Unlock()

	cancel()
	<-done

	apiLog.Info().Msg("トラッキングを停止しました")
	return nil
}

// Close はサービスを停止し、サンプラーを破棄する
func (s *TrackerService) Close() {
	if err := s.Stop(); err != nil && !errors.Is(err, ErrServiceStopped) {
		apiLog.Warn().Err(err).Msg("サービスの停止に失敗しました")
	}
	s.sampler.Close()
}

// IsRunning はサービスが実行中かどうかを返す
func (s *TrackerService) IsRunning() bool {
	s.statusMutex.RLock()
	defer s.statusMutex.RUnlock()
	return s.isRunningLocked()
}

func (s *TrackerService) isRunningLocked() bool {
	if !s.running {
		return false
	}
	select {
	case <-s.done:
		// ソースが自然終了した（デバイスが抜かれた等）
		return false
	default:
		return true
	}
}

// Status はサービスの状態を返す
func (s *TrackerService) Status() ServiceStatus {
	s.statusMutex.RLock()
	defer s.statusMutex.RUnlock()

	st := ServiceStatus{Status: "stopped"}
	if s.isRunningLocked() {
		st.Status = "running"
	}
	if s.source != nil {
		st.Source = s.source.Name()
	}
	st.Device = s.deviceName
	if s.runErr != nil {
		st.Error = s.runErr.Error()
	}
	return st
}

// ServiceStatus はサービス状態のレスポンス
type ServiceStatus struct {
	Status string `json:"status"`
	Source string `json:"source,omitempty"`
	Device string `json:"device,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Config は現在の設定を返す
func (s *TrackerService) Config() *config.Config {
	s.statusMutex.RLock()
	defer s.statusMutex.RUnlock()
	return s.cfg
}

// UpdateConfig は設定を更新する。モーション設定は即座に、入力設定は次回の Start から反映される
func (s *TrackerService) UpdateConfig(cfg *config.Config) {
	s.statusMutex.Lock()
	s.cfg = cfg
	s.statusMutex.Unlock()

	s.sampler.SetOptions(cfg.MotionOptions())
	apiLog.Info().Msg("設定を更新しました")
}

// HandleDeviceEvent はマウスの抜き差しに追従する
// 使用中のマウスが抜かれたら停止し、停止中にマウスが接続されたら開始する
func (s *TrackerService) HandleDeviceEvent(ev features.DeviceEvent) {
	if ev.Device.Type != features.DeviceTypeMouse || s.Config().Input.Source != config.SourceEvdev {
		return
	}

	s.statusMutex.RLock()
	current, wasStarted := s.deviceName, s.running
	s.statusMutex.RUnlock()

	switch ev.Type {
	case features.DeviceRemoved:
		if wasStarted && ev.Device.Name == current {
			apiLog.Warn().Str("device", current).Msg("使用中のマウスが切断されました")
			_ = s.Stop()
		}
	case features.DeviceAdded:
		if !s.IsRunning() {
			if wasStarted {
				_ = s.Stop()
			}
			if err := s.Start(); err != nil {
				apiLog.Warn().Err(err).Msg("接続されたマウスでの再開に失敗しました")
			}
		}
	}
}
