package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/char5742/motion-trail/internal/logging"
)

// reloadDebounce はエディタの連続書き込みをまとめる待ち時間
const reloadDebounce = 200 * time.Millisecond

// Watch は設定ファイルの変更を監視し、読み込みに成功するたびに onChange を呼ぶ
// ctx がキャンセルされるまでブロックする
func Watch(ctx context.Context, configPath string, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("ファイル監視の作成に失敗しました: %w", err)
	}
	defer watcher.Close()

	// エディタによってはリネームで保存するため、ディレクトリごと監視する
	dir := filepath.Dir(configPath)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("ディレクトリの監視に失敗しました: %s: %w", dir, err)
	}

	logger := logging.Module("config").With().Str("path", configPath).Logger()
	logger.Debug().Msg("設定ファイルの監視を開始します")

	timer := time.NewTimer(reloadDebounce)
	timer.Stop()
	target := filepath.Clean(configPath)

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case <-timer.C:
			cfg, err := LoadConfig(configPath)
			if err != nil {
				logger.Warn().Err(err).Msg("設定ファイルの再読み込みに失敗しました")
				continue
			}
			logger.Info().Msg("設定ファイルを再読み込みしました")
			onChange(cfg)

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				timer.Reset(reloadDebounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn().Err(err).Msg("ファイル監視エラー")
		}
	}
}
