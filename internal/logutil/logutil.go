package logutil

import (
	"sync"

	"go.uber.org/zap"
)

var (
	once   sync.Once
	logger *zap.Logger
)

// L returns the process-wide logger, initializing it on first use.
func L() *zap.Logger {
	once.Do(func() {
		cfg := zap.NewProductionConfig()
		cfg.Encoding = "console"
		cfg.DisableStacktrace = true
		l, err := cfg.Build()
		if err != nil {
			l = zap.NewNop()
		}
		logger = l
	})
	return logger
}

// Sync flushes buffered log entries. Safe to call on exit.
func Sync() {
	if logger != nil {
		logger.Sync()
	}
}
