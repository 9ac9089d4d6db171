// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package log

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the logging surface used across the bridge
type Logger interface {
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
	Fatal(msg string, fields ...zap.Field)
	With(fields ...zap.Field) Logger
	Sync() error
}

// zapLogger wraps a zap.Logger
type zapLogger struct {
	log *zap.Logger
}

// New creates a new logger at info level
func New() Logger {
	return NewWithLevel("info")
}

// NewWithLevel creates a new logger with specific level
func NewWithLevel(level string) Logger {
	return newNamed("adbridge", level)
}

// NoOp returns a no-op logger
func NoOp() Logger {
	return &noOpLogger{}
}

// NoLog is a no-op logger instance
var NoLog = NoOp()

// NewLogger creates a new logger with a name
func NewLogger(name string) Logger {
	return newNamed(name, "info")
}

func newNamed(name, level string) Logger {
	return NewAtomic(name, zap.NewAtomicLevelAt(ParseLevel(level)))
}

// NewAtomic creates a named logger whose level follows level, so it can
// be raised or lowered while the process runs.
func NewAtomic(name string, level zap.AtomicLevel) Logger {
	config := zap.NewProductionConfig()
	config.Level = level
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	log, err := config.Build()
	if err != nil {
		return &noOpLogger{}
	}

	return &zapLogger{log: log.Named(name)}
}

// ParseLevel maps a level name to its zap level, defaulting to info
func ParseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	}
	return zapcore.InfoLevel
}

// FromZap wraps an existing zap logger
func FromZap(l *zap.Logger) Logger {
	if l == nil {
		return &noOpLogger{}
	}
	return &zapLogger{log: l}
}

// Debug logs a debug message
func (l *zapLogger) Debug(msg string, fields ...zap.Field) {
	l.log.Debug(msg, fields...)
}

// Info logs an info message
func (l *zapLogger) Info(msg string, fields ...zap.Field) {
	l.log.Info(msg, fields...)
}

// Warn logs a warning message
func (l *zapLogger) Warn(msg string, fields ...zap.Field) {
	l.log.Warn(msg, fields...)
}

// Error logs an error message
func (l *zapLogger) Error(msg string, fields ...zap.Field) {
	l.log.Error(msg, fields...)
}

// Fatal logs a fatal message and exits
func (l *zapLogger) Fatal(msg string, fields ...zap.Field) {
	l.log.Fatal(msg, fields...)
}

// With returns a child logger carrying the given fields
func (l *zapLogger) With(fields ...zap.Field) Logger {
	return &zapLogger{log: l.log.With(fields...)}
}

// Sync flushes any buffered log entries
func (l *zapLogger) Sync() error {
	return l.log.Sync()
}

// noOpLogger is a logger that does nothing
type noOpLogger struct{}

func (n *noOpLogger) Debug(string, ...zap.Field) {}
func (n *noOpLogger) Info(string, ...zap.Field)  {}
func (n *noOpLogger) Warn(string, ...zap.Field)  {}
func (n *noOpLogger) Error(string, ...zap.Field) {}
func (n *noOpLogger) Fatal(string, ...zap.Field) {}
func (n *noOpLogger) With(...zap.Field) Logger   { return n }
func (n *noOpLogger) Sync() error                { return nil }

// Field helpers so callers do not import zap for the common cases

func String(key, val string) zap.Field {
	return zap.String(key, val)
}

func Int(key string, val int) zap.Field {
	return zap.Int(key, val)
}

func Uint64(key string, val uint64) zap.Field {
	return zap.Uint64(key, val)
}

func Bool(key string, val bool) zap.Field {
	return zap.Bool(key, val)
}

func Stringer(key string, val fmt.Stringer) zap.Field {
	return zap.Stringer(key, val)
}

func Error(err error) zap.Field {
	return zap.Error(err)
}
