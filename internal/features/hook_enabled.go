//go:build hook

package features

import (
	"context"
	"sync"

	hook "github.com/robotn/gohook"

	"github.com/char5742/motion-trail/internal/motion"
)

// HookSource はOS全体のマウス移動をグローバルフックで受け取るソース
type HookSource struct {
	endOnce sync.Once
}

// NewHookSource は新しいグローバルフックソースを作成する
func NewHookSource() (PointerSource, error) {
	return &HookSource{}, nil
}

func (s *HookSource) Name() string {
	return "hook"
}

func (s *HookSource) Run(ctx context.Context, emit PointFunc) error {
	events := hook.Start()
	defer s.Close()

	sourceLog.Info().Msg("グローバルフックを開始しました")
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-events:
			if !ok {
				return nil
			}
			if e.Kind != hook.MouseMove && e.Kind != hook.MouseDrag {
				continue
			}
			emit(motion.Point{X: float64(e.X), Y: float64(e.Y)}, e.When)
		}
	}
}

func (s *HookSource) Close() error {
	s.endOnce.Do(func() {
		hook.End()
		sourceLog.Info().Msg("グローバルフックを停止しました")
	})
	return nil
}
