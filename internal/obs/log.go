// Package obs wraps zap into the node-prefixed debug/info/warn/error
// quartet every node logs through, gated by an atomic debug flag so hot
// paths can skip expensive argument evaluation.
package obs

import (
	"sync/atomic"

	"go.uber.org/zap"
)

var debugEnabled atomic.Bool

// SetDebug toggles debug-level logging on or off for the process.
func SetDebug(on bool) {
	debugEnabled.Store(on)
}

// DebugEnabled reports whether debug logging is currently on. Hot-path
// callers should check this before formatting expensive arguments.
func DebugEnabled() bool {
	return debugEnabled.Load()
}

var base *zap.Logger

func init() {
	// The logger itself admits debug entries; debugEnabled decides whether
	// Debugf emits them.
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	l, err := cfg.Build()
	if err != nil {
		l = zap.NewNop()
	}
	base = l
}

// Logger is a node-address-prefixed logging handle. Every node (leaf or
// super-peer) constructs exactly one, so every failure state is logged
// with the node's address prefix.
type Logger struct {
	sugar *zap.SugaredLogger
}

// New returns a Logger prefixing every line with addr.
func New(addr string) *Logger {
	return &Logger{sugar: base.Sugar().With("node", addr)}
}

func (l *Logger) Debugf(format string, args ...any) {
	if debugEnabled.Load() {
		l.sugar.Debugf(format, args...)
	}
}

func (l *Logger) Infof(format string, args ...any) {
	l.sugar.Infof(format, args...)
}

func (l *Logger) Warnf(format string, args ...any) {
	l.sugar.Warnf(format, args...)
}

func (l *Logger) Errorf(format string, args ...any) {
	l.sugar.Errorf(format, args...)
}

// Sync flushes any buffered log entries, e.g. on graceful shutdown.
func (l *Logger) Sync() {
	_ = l.sugar.Sync()
}
