package logger

import (
	"go.uber.org/zap"
)

// Log is application logger. It does nothing until Initialize is called.
var Log = zap.NewNop()

// Initialize creates production logger with log level and sets it as Log
func Initialize(level string) error {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = lvl

	zl, err := cfg.Build()
	if err != nil {
		return err
	}

	Log = zl
	return nil
}
