package logger

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guild-warden/internal/config"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prevOut, prevFlags, prevLevel := log.Writer(), log.Flags(), GetLevel()
	log.SetOutput(&buf)
	log.SetFlags(0)
	t.Cleanup(func() {
		log.SetOutput(prevOut)
		log.SetFlags(prevFlags)
		SetLevel(prevLevel)
	})
	return &buf
}

func TestLevelFiltering(t *testing.T) {
	buf := captureLog(t)

	SetLevel(LevelWarning)
	Infof("hidden %d", 1)
	Warningf("shown %d", 2)
	Errorf("shown %d", 3)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARNING] shown 2")
	assert.Contains(t, out, "[ERROR] shown 3")
}

func TestParseLevel(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(LevelDebug, ParseLevel("debug"))
	assert.Equal(LevelWarning, ParseLevel("WARN"))
	assert.Equal(LevelError, ParseLevel("FATAL"))
	assert.Equal(LevelInfo, ParseLevel("whatever"))
}

func TestSetupCreatesLogFile(t *testing.T) {
	captureLog(t)

	dir := filepath.Join(t.TempDir(), "logs")
	cfg := &config.Config{}
	cfg.Logger.Directory = dir
	cfg.Logger.Level = "DEBUG"
	cfg.Logger.Rotation.MaxSize = 1

	require.NoError(t, Setup(cfg))
	Debugf("hello from test")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name(), "guild-warden-"))
	assert.Equal(t, LevelDebug, GetLevel())
}
