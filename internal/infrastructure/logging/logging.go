// Package logging construye el *zap.Logger del proceso: consola más archivos
// rotativos "info" y, en modo debug, "debug".
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options del logger. Dir es donde se escriben info.log y debug.log; vacío
// desactiva los archivos. DebugToggle habilita debug.log en caliente.
type Options struct {
	Dir         string
	Level       zapcore.Level
	Debug       bool
	DebugToggle *atomic.Bool
	Console     io.Writer
}

// New crea el logger y devuelve una función que cierra los archivos rotativos.
func New(opts Options) (*zap.Logger, func() error, error) {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encoder := zapcore.NewConsoleEncoder(encCfg)

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(console)), atLeast(opts.Level)),
	}
	var closers []io.Closer

	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, nil, err
		}

		info := &lumberjack.Logger{
			Filename:   filepath.Join(opts.Dir, "info.log"),
			MaxSize:    10,
			MaxBackups: 8,
			MaxAge:     56,
		}
		closers = append(closers, info)
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(info), atLeast(zapcore.InfoLevel)))

		if opts.Debug || opts.DebugToggle != nil {
			debug := &lumberjack.Logger{
				Filename:   filepath.Join(opts.Dir, "debug.log"),
				MaxSize:    10,
				MaxBackups: 24,
				MaxAge:     1,
			}
			closers = append(closers, debug)
			cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(debug), debugEnabler(opts.Debug, opts.DebugToggle)))
		}
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	logger.Debug("Logger initialized")

	closeFn := func() error {
		_ = logger.Sync()
		var firstErr error
		for _, c := range closers {
			if err := c.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}

	return logger, closeFn, nil
}

func debugEnabler(always bool, toggle *atomic.Bool) zap.LevelEnablerFunc {
	return func(zapcore.Level) bool {
		return always || (toggle != nil && toggle.Load())
	}
}

func atLeast(min zapcore.Level) zap.LevelEnablerFunc {
	return func(l zapcore.Level) bool { return l >= min }
}

// ParseLevel convierte "debug", "info", "warn"/"warning" o "error" a un nivel.
// Cualquier otro valor devuelve info.
func ParseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
