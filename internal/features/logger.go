package features

import (
	"github.com/rs/zerolog"

	"github.com/char5742/motion-trail/internal/logging"
)

var (
	mouseLog  zerolog.Logger = logging.Module("mouse")
	deviceLog zerolog.Logger = logging.Module("device")
	sourceLog zerolog.Logger = logging.Module("source")
)
