// Package debug provides env-gated trace logging for edumap.
//
// Tracing is enabled by setting EDUMAP_DEBUG:
//
//	EDUMAP_DEBUG=1 edumap open <graph-id>
//
// Trace lines go to stderr through a zap development logger. When tracing
// is off every function here is a no-op.
package debug

import (
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.RWMutex
	logger *zap.Logger // nil while disabled
)

func init() {
	if os.Getenv("EDUMAP_DEBUG") != "" {
		SetEnabled(true)
	}
}

// Enabled reports whether trace logging is on.
func Enabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return logger != nil
}

// SetEnabled toggles trace logging at runtime.
func SetEnabled(e bool) {
	mu.Lock()
	defer mu.Unlock()
	switch {
	case e && logger == nil:
		logger = newTraceLogger()
	case !e && logger != nil:
		_ = logger.Sync()
		logger = nil
	}
}

func newTraceLogger() *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000000")
	cfg.EncoderConfig.EncodeCaller = nil
	cfg.DisableStacktrace = true
	l, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return l.Named("trace")
}

// Zap returns the trace logger, or a no-op logger when tracing is off.
func Zap() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

// Log writes a printf-style trace line.
func Log(format string, args ...any) {
	mu.RLock()
	l := logger
	mu.RUnlock()
	if l != nil {
		l.Sugar().Debugf(format, args...)
	}
}

// LogEnterExit logs entry now and exit with elapsed time when the returned
// func runs:
//
//	defer debug.LogEnterExit("layout.SetData")()
func LogEnterExit(name string) func() {
	l := Zap()
	if !Enabled() {
		return func() {}
	}
	l.Debug("enter", zap.String("fn", name))
	start := time.Now()
	return func() {
		l.Debug("exit", zap.String("fn", name), zap.Duration("elapsed", time.Since(start)))
	}
}
