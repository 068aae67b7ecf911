package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/pkg/browser"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/char5742/motion-trail/internal/api"
	"github.com/char5742/motion-trail/internal/config"
	"github.com/char5742/motion-trail/internal/features"
	"github.com/char5742/motion-trail/internal/gui"
	"github.com/char5742/motion-trail/internal/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "異常終了しました: %v\n", err)
		os.Exit(1)
	}
}

// run はアプリケーション本体。終了処理はすべて defer で行い、os.Exit は main だけが呼ぶ
func run() error {
	// コマンドライン引数の解析
	useApi := flag.Bool("api", false, "APIサーバーモードで起動します")
	configPath := flag.String("config", "", "設定ファイルのパス (指定しない場合はデフォルトパスを使用)")
	port := flag.Int("port", 0, "APIサーバーのポート番号 (指定しない場合は設定ファイルの値)")
	source := flag.String("source", "", "APIモードの入力ソース (evdev または hook)")
	openBrowser := flag.Bool("open", false, "APIモードでダッシュボードをブラウザで開きます")
	debug := flag.Bool("debug", false, "デバッグログを出力します")
	flag.Parse()

	// デフォルト設定ファイルパスの設定
	configDir, err := config.GetDefaultConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}
	cfgPath := filepath.Join(configDir, "config.toml")
	if *configPath != "" {
		cfgPath = *configPath
	}

	logFile, err := initLogger(*useApi, *debug, configDir)
	if err != nil {
		return fmt.Errorf("ロガーの初期化に失敗しました: %w", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}

	// 設定ファイルの読み込み
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Warn().Err(err).Str("path", cfgPath).Msg("設定ファイルの読み込みに失敗しました。デフォルト設定を使用します")
		cfg = config.DefaultConfig()
	} else {
		log.Info().Str("path", cfgPath).Msg("設定ファイルを読み込みました")
	}
	overrides := func(c *config.Config) {
		if *port != 0 {
			c.API.Port = *port
		}
		if *source != "" {
			c.Input.Source = *source
		}
	}
	overrides(cfg)
	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("設定が不正です")
		return fmt.Errorf("設定が不正です: %w", err)
	}

	// シグナルハンドラの設定
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 設定ファイルの変更を監視
	updates := make(chan *config.Config, 1)
	go func() {
		err := config.Watch(ctx, cfgPath, func(c *config.Config) {
			overrides(c)
			if err := c.Validate(); err != nil {
				log.Warn().Err(err).Msg("変更された設定が不正なため無視します")
				return
			}
			select {
			case updates <- c:
			default:
				log.Warn().Msg("設定の反映が追いつかないため変更を破棄しました")
			}
		})
		if err != nil {
			log.Warn().Err(err).Msg("設定ファイルの監視を開始できませんでした")
		}
	}()

	// APIモードか端末モードかを判断
	if *useApi {
		err = runApiServer(ctx, cfg, cfgPath, updates, *openBrowser)
	} else {
		err = gui.Run(ctx, cfg, updates)
	}
	if err != nil {
		log.Error().Err(err).Msg("異常終了しました")
		return err
	}
	return nil
}

// initLogger はログ出力先を設定する
// 端末モードでは画面を壊さないよう設定ディレクトリのログファイルに書く
func initLogger(apiMode, debug bool, configDir string) (*os.File, error) {
	logging.SetDebug(debug)

	if apiMode {
		logging.SetOutput(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.DateTime})
		return nil, nil
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("ログディレクトリの作成に失敗しました: %w", err)
	}
	path := filepath.Join(configDir, config.AppName+".log")
	logFile, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("ログファイルのオープンに失敗しました: %w", err)
	}
	logging.SetOutput(logFile)
	return logFile, nil
}

// APIサーバーモードでの実行
func runApiServer(ctx context.Context, cfg *config.Config, cfgPath string, updates <-chan *config.Config, openBrowser bool) error {
	service := api.NewTrackerService(cfg, nil)
	defer service.Close()

	server := api.NewServer(service, cfgPath, cfg.API.Port)

	// マウスの抜き差しを監視
	monitor, err := features.NewDeviceMonitor(features.DefaultDeviceDir)
	if err != nil {
		log.Warn().Err(err).Msg("デバイスモニターを作成できませんでした")
	} else if err := monitor.Start(); err != nil {
		log.Warn().Err(err).Msg("デバイスモニターを開始できませんでした")
	} else {
		defer monitor.Stop()
		monitor.RegisterCallback(service.HandleDeviceEvent)
		server.SetDeviceMonitor(monitor)
	}

	// サービス開始
	if err := service.Start(); err != nil {
		// ダッシュボードから再試行できるため致命的ではない
		log.Warn().Err(err).Msg("トラッキングサービスの起動に失敗しました")
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	if openBrowser {
		if err := browser.OpenURL(server.URL()); err != nil {
			log.Warn().Err(err).Msg("ブラウザを開けませんでした")
		}
	}

	for {
		select {
		case cfg := <-updates:
			service.UpdateConfig(cfg)
		case err := <-errCh:
			return err
		case <-ctx.Done():
			log.Info().Msg("シャットダウンします...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Stop(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return nil
		}
	}
}
