package gui

import (
	"context"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rs/zerolog"

	"github.com/char5742/motion-trail/internal/config"
	"github.com/char5742/motion-trail/internal/logging"
	"github.com/char5742/motion-trail/internal/motion"
)

var guiLog zerolog.Logger = logging.Module("gui")

// App はモーショントラッカーの端末アプリケーション構造体
type App struct {
	screen   tcell.Screen
	sampler  *motion.Sampler
	renderer *Renderer
	frame    time.Duration
	now      func() time.Time

	redraw  chan struct{}
	configs chan *config.Config

	pressed  bool
	lastCell [2]int
	hasCell  bool
}

// NewApp は初期化済みの screen を使う端末アプリケーションを作成する
func NewApp(screen tcell.Screen, cfg *config.Config) *App {
	return &App{
		screen:   screen,
		sampler:  motion.NewSampler(cfg.MotionOptions(), time.Now(), nil),
		renderer: NewRenderer(NewTheme(), cfg.Display.CellWidth, cfg.Display.CellHeight),
		frame:    frameInterval(cfg.Display.FrameRate),
		now:      time.Now,
		redraw:   make(chan struct{}, 1),
		configs:  make(chan *config.Config, 1),
	}
}

func frameInterval(fps int) time.Duration {
	if fps <= 0 {
		fps = 60
	}
	return time.Second / time.Duration(fps)
}

// Sampler はアプリケーションが所有するサンプラーを返す
func (a *App) Sampler() *motion.Sampler {
	return a.sampler
}

// ApplyConfig は設定の変更をイベントループに渡す。どのゴルーチンから呼んでもよい
func (a *App) ApplyConfig(cfg *config.Config) {
	select {
	case a.configs <- cfg:
	default:
		// 未処理の設定を新しいものに置き換える
		select {
		case <-a.configs:
		default:
		}
		a.configs <- cfg
	}
}

// Run はイベントループを実行する。終了キーが押されるか ctx が終わると戻る
// 戻る前に購読を解除し、サンプラーを閉じ、画面を終了する
func (a *App) Run(ctx context.Context) error {
	cancel := a.sampler.Subscribe(func(motion.Snapshot) { a.markDirty() })
	defer func() {
		cancel()
		a.sampler.Close()
		a.screen.Fini()
		guiLog.Info().Msg("端末アプリケーションを終了しました")
	}()

	a.screen.EnableMouse(tcell.MouseMotionEvents)
	a.screen.HideCursor()
	a.screen.Clear()

	events := make(chan tcell.Event, 100)
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			ev := a.screen.PollEvent()
			if ev == nil {
				// Fini 済み
				return
			}
			select {
			case events <- ev:
			case <-done:
				return
			}
		}
	}()

	ticker := time.NewTicker(a.frame)
	defer ticker.Stop()

	a.draw()
	dirty := false
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			if !a.handleEvent(ev) {
				return nil
			}
		case cfg := <-a.configs:
			a.sampler.SetOptions(cfg.MotionOptions())
			a.renderer.SetCellSize(cfg.Display.CellWidth, cfg.Display.CellHeight)
			ticker.Reset(frameInterval(cfg.Display.FrameRate))
			guiLog.Info().Msg("設定を反映しました")
			dirty = true
		case <-a.redraw:
			dirty = true
		case <-ticker.C:
			if dirty {
				a.draw()
				dirty = false
			}
		}
	}
}

func (a *App) markDirty() {
	select {
	case a.redraw <- struct{}{}:
	default:
	}
}

func (a *App) draw() {
	a.renderer.Draw(a.screen, a.sampler.Snapshot())
	a.screen.Show()
}

// handleEvent は1つの端末イベントを処理する。終了する場合は false を返す
func (a *App) handleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch {
		case ev.Key() == tcell.KeyEscape, ev.Key() == tcell.KeyCtrlC:
			return false
		case ev.Key() == tcell.KeyRune && ev.Rune() == 'q':
			return false
		case ev.Key() == tcell.KeyRune && ev.Rune() == 'r':
			a.sampler.Reset()
		}

	case *tcell.EventMouse:
		x, y := ev.Position()
		pressed := ev.Buttons()&tcell.Button1 != 0
		if pressed && !a.pressed && a.renderer.ButtonAt(x, y) {
			a.sampler.Reset()
		}
		a.pressed = pressed

		// ボタン操作だけのイベントは移動として扱わない
		cell := [2]int{x, y}
		if a.hasCell && cell == a.lastCell {
			return true
		}
		a.lastCell, a.hasCell = cell, true
		a.sampler.OnPointerMove(a.renderer.CellToPixel(x, y), a.now())

	case *tcell.EventResize:
		a.screen.Sync()
		a.markDirty()
	}

	return true
}

// Run は端末を初期化してアプリケーションを実行する
// updates が nil でなければ、受け取った設定を随時反映する
func Run(ctx context.Context, cfg *config.Config, updates <-chan *config.Config) error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("端末の作成に失敗しました: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("端末の初期化に失敗しました: %w", err)
	}

	app := NewApp(screen, cfg)
	if updates != nil {
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case c, ok := <-updates:
					if !ok {
						return
					}
					app.ApplyConfig(c)
				}
			}
		}()
	}
	return app.Run(ctx)
}
