package main

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/char5742/motion-trail/internal/config"
	"github.com/char5742/motion-trail/internal/logging"
)

func TestRun_InvalidConfigReturnsError(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", home)
	t.Cleanup(func() { logging.SetOutput(os.Stderr) })

	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	oldArgs, oldFlags := os.Args, flag.CommandLine
	t.Cleanup(func() { os.Args, flag.CommandLine = oldArgs, oldFlags })
	os.Args = []string{"motion-trail", "-config", cfgPath, "-source", "bogus"}
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ContinueOnError)

	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "input.source")

	// 端末モードのログはファイルに書かれ、エラー経路でも閉じられている
	data, err := os.ReadFile(filepath.Join(home, config.AppName, config.AppName+".log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "設定が不正です")
}

func TestInitLogger_TerminalModeWritesFile(t *testing.T) {
	dir := t.TempDir()
	t.Cleanup(func() { logging.SetOutput(os.Stderr) })

	logFile, err := initLogger(false, true, dir)
	require.NoError(t, err)
	require.NotNil(t, logFile)

	logger := logging.Module("test")
	logger.Debug().Msg("debug line")
	require.NoError(t, logFile.Close())
	logging.SetDebug(false)

	data, err := os.ReadFile(filepath.Join(dir, config.AppName+".log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "debug line")
}

func TestInitLogger_APIModeHasNoFile(t *testing.T) {
	t.Cleanup(func() { logging.SetOutput(os.Stderr) })

	logFile, err := initLogger(true, false, t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, logFile)
}
