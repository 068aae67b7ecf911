package features

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/char5742/motion-trail/internal/motion"
)

// PointFunc はポインター位置を受け取るコールバック
type PointFunc func(p motion.Point, at time.Time)

// PointerSource はポインター位置の供給元を表すインターフェース
type PointerSource interface {
	// ctx がキャンセルされるか入力が尽きるまで emit を呼び続ける
	Run(ctx context.Context, emit PointFunc) error
	Name() string
	io.Closer
}

// EvdevOptions はevdevソースの設定
type EvdevOptions struct {
	Width, Height         int     // 位置をクランプする画面サイズ
	Sensitivity           float64 // 移動量に掛ける倍率
	FilterSmoothingFactor float64
	FilterWarmUpCount     int
	Grab                  bool // 読み取り中はデバイスを専有する
}

// EvdevSource は相対移動のマウスを積分して絶対座標のポインター位置に変換する
type EvdevSource struct {
	mouse  Mouse
	filter *MotionFilter
	opts   EvdevOptions
	pos    motion.Point
	now    func() time.Time

	closeOnce sync.Once
	closeErr  error
}

// NewEvdevSource は新しいevdevソースを作成する。初期位置は画面中央
func NewEvdevSource(m Mouse, opts EvdevOptions) *EvdevSource {
	if opts.Sensitivity <= 0 {
		opts.Sensitivity = 1
	}
	return &EvdevSource{
		mouse:  m,
		filter: NewMotionFilter(opts.FilterSmoothingFactor, opts.FilterWarmUpCount),
		opts:   opts,
		pos:    motion.Point{X: float64(opts.Width) / 2, Y: float64(opts.Height) / 2},
		now:    time.Now,
	}
}

func (s *EvdevSource) Name() string {
	return "evdev:" + s.mouse.Name()
}

func (s *EvdevSource) Run(ctx context.Context, emit PointFunc) error {
	if s.opts.Grab {
		if err := s.mouse.Grab(); err != nil {
			return err
		}
	}

	// ブロック中の読み取りはデバイスを閉じて中断させる
	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()

	sourceLog.Info().Str("source", s.Name()).Msg("ポインター入力の読み取りを開始します")
	for {
		mv, err := s.mouse.ReadMotion()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
				sourceLog.Info().Str("source", s.Name()).Msg("ポインター入力の読み取りを終了しました")
				return nil
			}
			return fmt.Errorf("マウスの読み取りに失敗しました: %w", err)
		}
		if mv.Dropped {
			// 欠落の前後で平滑化の履歴がつながらないようにする
			sourceLog.Debug().Str("source", s.Name()).Msg("SYN_DROPPED を検出したためフィルターをリセットします")
			s.filter.Reset()
		}

		fx, fy := s.filter.Filter(mv.DX, mv.DY)
		s.pos.X = clamp(s.pos.X+fx*s.opts.Sensitivity, 0, float64(s.opts.Width-1))
		s.pos.Y = clamp(s.pos.Y+fy*s.opts.Sensitivity, 0, float64(s.opts.Height-1))

		// カーネルが記録した時刻を優先する
		at := mv.At
		if at.IsZero() {
			at = s.now()
		}
		emit(s.pos, at)
	}
}

func (s *EvdevSource) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.mouse.Close()
	})
	return s.closeErr
}

// clamp は値を最小値と最大値の間に制限する
func clamp(value, lo, hi float64) float64 {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}
