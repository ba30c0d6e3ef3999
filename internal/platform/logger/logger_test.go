package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger_JSONAndLevel(t *testing.T) {
	var out bytes.Buffer
	l := newLogger(Config{Format: "json"}, &out, zap.NewAtomicLevelAt(zapcore.WarnLevel))

	l.Info("hidden")
	l.Warn("shown", zap.String("model", "localai"))
	require.NoError(t, l.Sync())

	assert.NotContains(t, out.String(), "hidden")
	assert.Contains(t, out.String(), `"msg":"shown"`)
	assert.Contains(t, out.String(), `"model":"localai"`)
}

func TestNewLogger_ConsoleWithoutColor(t *testing.T) {
	var out bytes.Buffer
	l := newLogger(Config{Format: "console"}, &out, zap.NewAtomicLevelAt(zapcore.InfoLevel))

	l.Info("hello", zap.Int("n", 1))
	assert.Contains(t, out.String(), "hello")
	assert.Contains(t, out.String(), `{"n": 1}`)
}

func TestNewLogger_FileCopy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forge.log")
	var out bytes.Buffer
	l := newLogger(Config{Format: "console", File: path}, &out, zap.NewAtomicLevelAt(zapcore.InfoLevel))

	l.Info("persisted")
	_ = l.Sync()

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"msg":"persisted"`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("bogus"))
}
