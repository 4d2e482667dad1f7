// Package logging provides the leveled, structured logger used across kubetrace.
//
// Get a named logger per package and log either printf-style or with fields:
//
//	logger := logging.GetLogger("stateprovider")
//	logger.Info("ingested %d events", n)
//	logger.InfoWithFields("run complete",
//	    logging.Field("events", n),
//	    logging.Field("attributes", attrs),
//	)
//
// Loggers are immutable; WithField, WithFields and WithContext return copies.
// A context carrying an OpenTelemetry span adds trace_id and span_id to every
// line.
//
// Levels can be overridden per package with exact names or "prefix.*"
// patterns, see SetPackageLogLevels. DEBUG, INFO and WARN go to stdout, ERROR
// and FATAL to stderr. Set LOG_TIMESTAMP to pin the timestamp in tests.
package logging

import (
	"context"
	"io"
	"os"
	"sync"
)

var (
	globalLevel = INFO
	globalMu    sync.RWMutex

	// exitFunc is called by Fatal. Tests replace it.
	exitFunc = os.Exit
)

// Initialize sets the default level and optional per-package overrides.
// An unknown default level falls back to INFO.
func Initialize(levelStr string, packageLevels ...map[string]string) error {
	level, err := parseLevel(levelStr)
	if err != nil {
		level = INFO
	}
	globalMu.Lock()
	globalLevel = level
	globalMu.Unlock()

	if len(packageLevels) > 0 && packageLevels[0] != nil {
		if err := SetPackageLogLevels(packageLevels[0]); err != nil {
			return err
		}
	}
	return nil
}

// LogField is a structured logging field
type LogField struct {
	Key   string
	Value interface{}
}

// Field creates a structured logging field
func Field(key string, value interface{}) LogField {
	return LogField{Key: key, Value: value}
}

// Logger writes leveled log lines under a component name
type Logger struct {
	name   string
	fields map[string]interface{}
	ctx    context.Context
	out    io.Writer
	errOut io.Writer
}

// GetLogger returns a logger with the specified name
func GetLogger(name string) *Logger {
	return &Logger{name: name}
}

// Name returns the component name of the logger
func (l *Logger) Name() string {
	return l.name
}

func (l *Logger) level() LogLevel {
	if pkgLevel := GetPackageLogLevel(l.name); pkgLevel >= 0 {
		return pkgLevel
	}
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLevel
}

// Enabled reports whether a message at level would be written
func (l *Logger) Enabled(level LogLevel) bool {
	return level >= l.level()
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, args ...interface{}) {
	if l.Enabled(DEBUG) {
		l.logf(DEBUG, msg, args...)
	}
}

// Info logs an info message
func (l *Logger) Info(msg string, args ...interface{}) {
	if l.Enabled(INFO) {
		l.logf(INFO, msg, args...)
	}
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, args ...interface{}) {
	if l.Enabled(WARN) {
		l.logf(WARN, msg, args...)
	}
}

// Error logs an error message
func (l *Logger) Error(msg string, args ...interface{}) {
	if l.Enabled(ERROR) {
		l.logf(ERROR, msg, args...)
	}
}

// Fatal logs a fatal message and exits with code 1
func (l *Logger) Fatal(msg string, args ...interface{}) {
	if l.Enabled(FATAL) {
		l.logf(FATAL, msg, args...)
		exitFunc(1)
	}
}

// ErrorWithErr logs an error message followed by err
func (l *Logger) ErrorWithErr(msg string, err error, args ...interface{}) {
	if l.Enabled(ERROR) {
		args = append(args, err)
		l.logf(ERROR, msg+" - %v", args...)
	}
}

// DebugWithFields logs a debug message with structured fields
func (l *Logger) DebugWithFields(msg string, fields ...LogField) {
	if l.Enabled(DEBUG) {
		l.logWithFields(DEBUG, msg, fields...)
	}
}

// InfoWithFields logs an info message with structured fields
func (l *Logger) InfoWithFields(msg string, fields ...LogField) {
	if l.Enabled(INFO) {
		l.logWithFields(INFO, msg, fields...)
	}
}

// WarnWithFields logs a warning message with structured fields
func (l *Logger) WarnWithFields(msg string, fields ...LogField) {
	if l.Enabled(WARN) {
		l.logWithFields(WARN, msg, fields...)
	}
}

// ErrorWithFields logs an error message with structured fields
func (l *Logger) ErrorWithFields(msg string, fields ...LogField) {
	if l.Enabled(ERROR) {
		l.logWithFields(ERROR, msg, fields...)
	}
}

// WithField returns a copy of the logger carrying key=value on every line
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.WithFields(Field(key, value))
}

// WithFields returns a copy of the logger carrying fields on every line
func (l *Logger) WithFields(fields ...LogField) *Logger {
	c := l.clone()
	for _, f := range fields {
		c.fields[f.Key] = f.Value
	}
	return c
}

// WithContext returns a copy of the logger that adds the trace and span IDs
// found in ctx
func (l *Logger) WithContext(ctx context.Context) *Logger {
	c := l.clone()
	c.ctx = ctx
	return c
}

// WithOutput returns a copy of the logger writing to out and errOut instead of
// stdout and stderr
func (l *Logger) WithOutput(out, errOut io.Writer) *Logger {
	c := l.clone()
	c.out = out
	c.errOut = errOut
	return c
}

func (l *Logger) clone() *Logger {
	fields := make(map[string]interface{}, len(l.fields)+1)
	for k, v := range l.fields {
		fields[k] = v
	}
	return &Logger{name: l.name, fields: fields, ctx: l.ctx, out: l.out, errOut: l.errOut}
}
