package motion

import (
	"github.com/rs/zerolog"

	"github.com/char5742/motion-trail/internal/logging"
)

// motionLog は motion パッケージ用のサブロガー（module=motion 付き）
var motionLog zerolog.Logger = logging.Module("motion")
