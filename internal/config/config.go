package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/char5742/motion-trail/internal/motion"
)

// AppName は設定ディレクトリ名などに使うアプリケーション名
const AppName = "motion-trail"

// Config はアプリケーション全体の設定を表す構造体
type Config struct {
	Motion      MotionConfig      `toml:"motion" json:"motion"`
	Display     DisplayConfig     `toml:"display" json:"display"`
	Input       InputConfig       `toml:"input" json:"input"`
	DevicePrefs DevicePrefsConfig `toml:"device_prefs" json:"device_prefs"`
	API         APIConfig         `toml:"api" json:"api"`
}

// MotionConfig はモーションサンプラーの設定
type MotionConfig struct {
	TrailCapacity     int           `toml:"trail_capacity" json:"trail_capacity"`
	TrailThreshold    float64       `toml:"trail_threshold" json:"trail_threshold"`
	SpeedScale        float64       `toml:"speed_scale" json:"speed_scale"`
	QuiescenceTimeout time.Duration `toml:"quiescence_timeout" json:"quiescence_timeout"`
}

// DisplayConfig は端末表示の設定
type DisplayConfig struct {
	CellWidth  int `toml:"cell_width" json:"cell_width"`   // 1セルあたりの横ピクセル数
	CellHeight int `toml:"cell_height" json:"cell_height"` // 1セルあたりの縦ピクセル数
	FrameRate  int `toml:"frame_rate" json:"frame_rate"`
}

// InputConfig は入力ソースの設定
type InputConfig struct {
	Source                string  `toml:"source" json:"source"` // "evdev" または "hook"
	ScreenWidth           int     `toml:"screen_width" json:"screen_width"`
	ScreenHeight          int     `toml:"screen_height" json:"screen_height"`
	Sensitivity           float64 `toml:"sensitivity" json:"sensitivity"`
	FilterSmoothingFactor float64 `toml:"filter_smoothing_factor" json:"filter_smoothing_factor"`
	FilterWarmUpCount     int     `toml:"filter_warm_up_count" json:"filter_warm_up_count"`
	Grab                  bool    `toml:"grab" json:"grab"`
}

// DevicePrefsConfig はデバイス選択の設定
type DevicePrefsConfig struct {
	PreferredMouseDevice string `toml:"preferred_mouse_device" json:"preferred_mouse_device"`
}

// APIConfig はAPIサーバーの設定
type APIConfig struct {
	Port int `toml:"port" json:"port"`
}

// 入力ソース名
const (
	SourceEvdev = "evdev"
	SourceHook  = "hook"
)

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() *Config {
	opts := motion.DefaultOptions()
	return &Config{
		Motion: MotionConfig{
			TrailCapacity:     opts.TrailCapacity,
			TrailThreshold:    opts.TrailThreshold,
			SpeedScale:        opts.SpeedScale,
			QuiescenceTimeout: opts.QuiescenceTimeout,
		},
		Display: DisplayConfig{
			CellWidth:  8,
			CellHeight: 16,
			FrameRate:  60,
		},
		Input: InputConfig{
			Source:                SourceEvdev,
			ScreenWidth:           1920,
			ScreenHeight:          1080,
			Sensitivity:           1.0,
			FilterSmoothingFactor: 0,
			FilterWarmUpCount:     10,
			Grab:                  false,
		},
		DevicePrefs: DevicePrefsConfig{
			PreferredMouseDevice: "",
		},
		API: APIConfig{
			Port: 8080,
		},
	}
}

// MotionOptions はサンプラー用のパラメータに変換する
func (c *Config) MotionOptions() motion.Options {
	return motion.Options{
		TrailCapacity:     c.Motion.TrailCapacity,
		TrailThreshold:    c.Motion.TrailThreshold,
		SpeedScale:        c.Motion.SpeedScale,
		QuiescenceTimeout: c.Motion.QuiescenceTimeout,
	}
}

// Validate は設定値の整合性を確認する
func (c *Config) Validate() error {
	switch {
	case c.Motion.TrailCapacity <= 0:
		return fmt.Errorf("motion.trail_capacity は1以上である必要があります: %d", c.Motion.TrailCapacity)
	case c.Motion.TrailThreshold < 0:
		return fmt.Errorf("motion.trail_threshold は0以上である必要があります: %v", c.Motion.TrailThreshold)
	case c.Motion.QuiescenceTimeout <= 0:
		return fmt.Errorf("motion.quiescence_timeout は正の値である必要があります: %v", c.Motion.QuiescenceTimeout)
	case c.Display.CellWidth <= 0 || c.Display.CellHeight <= 0:
		return fmt.Errorf("display のセルサイズが不正です: %dx%d", c.Display.CellWidth, c.Display.CellHeight)
	case c.Input.Source != SourceEvdev && c.Input.Source != SourceHook:
		return fmt.Errorf("input.source が不正です: %q", c.Input.Source)
	case c.Input.ScreenWidth <= 0 || c.Input.ScreenHeight <= 0:
		return fmt.Errorf("input の画面サイズが不正です: %dx%d", c.Input.ScreenWidth, c.Input.ScreenHeight)
	case c.Input.FilterSmoothingFactor < 0 || c.Input.FilterSmoothingFactor >= 1:
		return fmt.Errorf("input.filter_smoothing_factor は0以上1未満である必要があります: %v", c.Input.FilterSmoothingFactor)
	case c.API.Port <= 0 || c.API.Port > 65535:
		return fmt.Errorf("api.port が不正です: %d", c.API.Port)
	}
	return nil
}

// GetDefaultConfigDir はデフォルトの設定ディレクトリを返す
func GetDefaultConfigDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("ユーザー設定ディレクトリの取得に失敗しました: %w", err)
	}
	return filepath.Join(dir, AppName), nil
}

// LoadConfig は設定ファイルから設定を読み込む
func LoadConfig(configPath string) (*Config, error) {
	// デフォルト設定を用意
	config := DefaultConfig()

	// ファイルが存在しない場合はデフォルト設定を保存して返す
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := SaveConfig(configPath, config); err != nil {
			return config, err
		}
		return config, nil
	}

	// 設定ファイルの読み込み（未指定の項目はデフォルト値のまま）
	if _, err := toml.DecodeFile(configPath, config); err != nil {
		return DefaultConfig(), fmt.Errorf("設定ファイルの解析に失敗しました: %w", err)
	}

	if err := config.Validate(); err != nil {
		return DefaultConfig(), err
	}

	return config, nil
}

// SaveConfig は設定をTOMLファイルに保存する
func SaveConfig(configPath string, config *Config) error {
	// 設定ディレクトリの作成
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("設定ディレクトリの作成に失敗しました: %w", err)
	}

	// ファイルを開く（なければ作成）
	f, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("設定ファイルの作成に失敗しました: %w", err)
	}
	defer f.Close()

	// TOML形式でエンコードして書き込み
	encoder := toml.NewEncoder(f)
	return encoder.Encode(config)
}
