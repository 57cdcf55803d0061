package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"DEBUG", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{" Warning ", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"unknown", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.input), "ParseLevel(%q)", tt.input)
	}
}

func TestNew_ConsoleRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, closeFn, err := New(Options{Level: zapcore.WarnLevel, Console: &buf})
	require.NoError(t, err)

	logger.Info("quiet")
	logger.Warn("loud")
	require.NoError(t, closeFn())

	assert.NotContains(t, buf.String(), "quiet")
	assert.Contains(t, buf.String(), "loud")
	assert.Contains(t, buf.String(), "WARN")
}

func TestNew_WritesRotatingFiles(t *testing.T) {
	dir := t.TempDir()
	logger, closeFn, err := New(Options{Dir: dir, Level: zapcore.ErrorLevel, Debug: true, Console: &bytes.Buffer{}})
	require.NoError(t, err)

	logger.Debug("debug line")
	logger.Info("info line")
	require.NoError(t, closeFn())

	info, err := os.ReadFile(filepath.Join(dir, "info.log"))
	require.NoError(t, err)
	assert.Contains(t, string(info), "info line")
	assert.NotContains(t, string(info), "debug line")

	debug, err := os.ReadFile(filepath.Join(dir, "debug.log"))
	require.NoError(t, err)
	assert.Contains(t, string(debug), "debug line")
	assert.Contains(t, string(debug), "info line")
	assert.Contains(t, string(debug), "Logger initialized")
}

func TestNew_NoDebugFileByDefault(t *testing.T) {
	dir := t.TempDir()
	logger, closeFn, err := New(Options{Dir: dir, Console: &bytes.Buffer{}})
	require.NoError(t, err)

	logger.Info("hello")
	require.NoError(t, closeFn())

	_, err = os.Stat(filepath.Join(dir, "debug.log"))
	assert.True(t, os.IsNotExist(err))
}

func TestNew_DebugToggle(t *testing.T) {
	dir := t.TempDir()
	var toggle atomic.Bool
	logger, closeFn, err := New(Options{Dir: dir, DebugToggle: &toggle, Console: &bytes.Buffer{}})
	require.NoError(t, err)

	logger.Debug("before toggle")
	toggle.Store(true)
	logger.Debug("after toggle")
	require.NoError(t, closeFn())

	debug, err := os.ReadFile(filepath.Join(dir, "debug.log"))
	require.NoError(t, err)
	assert.NotContains(t, string(debug), "before toggle")
	assert.Contains(t, string(debug), "after toggle")
}
