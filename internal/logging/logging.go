// Package logging はモジュールごとのサブロガーと、その出力先の切り替えを提供する
//
// サブロガーはパッケージ初期化時に作られるため、出力先は起動後に SetOutput で差し替える。
package logging

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// output は全サブロガーが共有する出力先
var output = &switchWriter{w: os.Stderr}

func init() {
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

type switchWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *switchWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// Module はモジュール名付きのサブロガーを返す
func Module(name string) zerolog.Logger {
	return log.With().Str("module", name).Logger()
}

// SetOutput は全ロガーの出力先を差し替える
func SetOutput(w io.Writer) {
	output.mu.Lock()
	defer output.mu.Unlock()
	output.w = w
}

// SetDebug はデバッグログの有無を切り替える
func SetDebug(debug bool) {
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}
