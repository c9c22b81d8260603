// Package logging wires zap into the rest of evidencer. Every component
// logs through a named child of one root logger so output can be
// filtered by subsystem (session, auth, nav, resolve, capture).
package logging

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu   sync.RWMutex
	root *zap.Logger = zap.NewNop()
)

// Init builds the root logger at the given level. Call once at startup;
// before Init everything logs to a no-op logger, which keeps library use
// of this package safe in tests.
func Init(level string) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("parse log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}

	mu.Lock()
	root = logger
	mu.Unlock()
	return nil
}

// Named returns a child logger for the given subsystem.
func Named(subsystem string) *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root.Named(subsystem)
}

// Sync flushes buffered log entries. Called on shutdown.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = root.Sync()
}
