package features

import "errors"

// ErrHookUnavailable はグローバルフックなしでビルドされたときに返される
var ErrHookUnavailable = errors.New("global pointer hook is not available in this build (rebuild with -tags hook)")
