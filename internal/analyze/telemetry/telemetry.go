// Package telemetry wraps zap with the five log levels codescope's
// components expect, including a Trace level zap doesn't natively have.
package telemetry

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level is codescope's own level set. It maps onto zap's levels, with
// Trace folded into Debug plus a marker field so it stays filterable.
type Level int

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
	LevelTrace
)

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case LevelError:
		return zapcore.ErrorLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelInfo:
		return zapcore.InfoLevel
	default:
		// Debug and Trace both surface at zap's Debug level; Trace adds
		// a field so it can still be grepped or filtered downstream.
		return zapcore.DebugLevel
	}
}

// Logger is the structured logger threaded through transport, session
// and cache. It is a thin facade over *zap.Logger so call sites never
// import zap directly.
type Logger struct {
	z *zap.Logger
}

// New builds a Logger writing to stderr at the given verbosity level.
func New(level Level) (*Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level.zapLevel())
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.EncoderConfig.TimeKey = "ts"
	z, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{z: z}, nil
}

// Noop returns a Logger that discards everything, used by components
// constructed without an explicit logger (tests, library callers).
func Noop() *Logger {
	return &Logger{z: zap.NewNop()}
}

func (l *Logger) Error(msg string, fields ...zap.Field) { l.z.Error(msg, fields...) }
func (l *Logger) Warn(msg string, fields ...zap.Field)  { l.z.Warn(msg, fields...) }
func (l *Logger) Info(msg string, fields ...zap.Field)  { l.z.Info(msg, fields...) }
func (l *Logger) Debug(msg string, fields ...zap.Field) { l.z.Debug(msg, fields...) }

// Trace logs at zap's Debug level with a trace marker field, since zap
// has no level below Debug.
func (l *Logger) Trace(msg string, fields ...zap.Field) {
	l.z.Debug(msg, append(fields, zap.Bool("trace", true))...)
}

// With returns a child logger carrying the given fields on every entry.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{z: l.z.With(fields...)}
}

// Sync flushes buffered log entries. Call on shutdown.
func (l *Logger) Sync() error {
	return l.z.Sync()
}
