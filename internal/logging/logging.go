// Package logging builds the application's zap logger.
//
// The terminal UI owns stdout and stderr while it runs, so log output
// goes to a file. Loggers are passed down and Named per component:
// log.Named("store"), log.Named("sqlite"), ...
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects where and how much to log
type Config struct {
	// Path is the log file. Empty disables logging.
	Path string
	// Level is a zap level name: debug, info, warn, error
	Level string
}

// New returns a sugared logger for cfg
func New(cfg Config) (*zap.SugaredLogger, error) {
	if cfg.Path == "" {
		return Nop(), nil
	}

	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.Set(cfg.Level); err != nil {
			return nil, fmt.Errorf("parsing log level %q: %w", cfg.Level, err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	return NewWith(func(zc *zap.Config) {
		zc.Level = zap.NewAtomicLevelAt(level)
		zc.OutputPaths = []string{cfg.Path}
		zc.ErrorOutputPaths = []string{cfg.Path}
	})
}

// NewWith returns a logger from a modified production zap.Config
func NewWith(cfgFn func(*zap.Config)) (*zap.SugaredLogger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfgFn(&cfg)

	core, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return core.Sugar().Named("contacts"), nil
}

// Nop returns a logger that discards everything
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
