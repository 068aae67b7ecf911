//go:build !hook

package features

// NewHookSource はフック無効ビルドでは常に ErrHookUnavailable を返す
func NewHookSource() (PointerSource, error) {
	return nil, ErrHookUnavailable
}
