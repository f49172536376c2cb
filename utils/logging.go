package utils

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logMu  sync.RWMutex
	logger = zap.NewNop()
)

// Logger returns the process logger, a no-op logger until SetLogger is called
func Logger() *zap.Logger {
	logMu.RLock()
	defer logMu.RUnlock()
	return logger
}

func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logMu.Lock()
	logger = l
	logMu.Unlock()
}

// NewLogger builds a production logger, at debug level when verbose
func NewLogger(verbose bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.Encoding = "console"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.DisableStacktrace = true
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return config.Build()
}

// RankLogger tags log lines with the rank, and only lets the master rank log
// below warning level so parallel runs print one line per event.
func RankLogger(rank int) *zap.Logger {
	l := Logger().With(zap.Int("rank", rank))
	if rank == 0 {
		return l
	}
	return l.WithOptions(zap.IncreaseLevel(zapcore.WarnLevel))
}
