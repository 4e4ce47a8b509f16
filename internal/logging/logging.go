package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps a sugared zap logger so commands don't depend on zap directly
type Logger struct {
	*zap.SugaredLogger
}

// creates a console logger; verbose enables debug level and caller info
func NewLogger(verbose bool) *Logger {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.DisableStacktrace = true

	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
		cfg.DisableCaller = true
	}

	base, err := cfg.Build()
	if err != nil {
		// fall back to a no-op logger rather than failing the whole CLI
		base = zap.NewNop()
	}

	return &Logger{base.Sugar()}
}

// returns a logger that discards everything; used by tests and as a
// default when callers pass nil
func NewNopLogger() *Logger {
	return &Logger{zap.NewNop().Sugar()}
}

// returns a child logger carrying the given name segment
func (l *Logger) Named(name string) *Logger {
	return &Logger{l.SugaredLogger.Named(name)}
}

// flushes buffered log entries; safe to call on exit
func (l *Logger) Sync() {
	_ = l.SugaredLogger.Sync()
}
