// Package log provides a structured logging wrapper around logrus.
package log

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger wraps a logrus logger together with a set of bound fields. Child
// loggers created with With share the parent's output and level.
type Logger struct {
	log   *logrus.Logger
	entry *logrus.Entry
}

// New creates a logger writing to stdout. The level comes from LOG_LEVEL and
// defaults to info.
func New() *Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
		ForceColors:     true,
	})
	l.SetLevel(parseLevel(os.Getenv("LOG_LEVEL"), logrus.InfoLevel))

	return &Logger{log: l, entry: logrus.NewEntry(l)}
}

// NewDiscard creates a logger that drops everything. Useful in tests.
func NewDiscard() *Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return &Logger{log: l, entry: logrus.NewEntry(l)}
}

func parseLevel(level string, fallback logrus.Level) logrus.Level {
	switch level {
	case "trace":
		return logrus.TraceLevel
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return fallback
	}
}

// SetLevel changes the level of this logger and all loggers derived from it.
// Unknown names are ignored.
func (l *Logger) SetLevel(level string) {
	l.log.SetLevel(parseLevel(level, l.log.GetLevel()))
}

// SetOutput redirects this logger and all loggers derived from it.
func (l *Logger) SetOutput(w io.Writer) {
	l.log.SetOutput(w)
}

// GetLogrus returns the underlying logrus instance
func (l *Logger) GetLogrus() *logrus.Logger {
	return l.log
}

// With returns a child logger that adds key=value to every line.
func (l *Logger) With(key string, value interface{}) *Logger {
	return &Logger{log: l.log, entry: l.entry.WithField(key, value)}
}

// WithFields returns a child logger that adds fields to every line.
func (l *Logger) WithFields(fields logrus.Fields) *Logger {
	return &Logger{log: l.log, entry: l.entry.WithFields(fields)}
}

// Trace logs trace-level messages
func (l *Logger) Trace(format string, v ...interface{}) {
	l.entry.Tracef(format, v...)
}

// Debug logs debug messages
func (l *Logger) Debug(format string, v ...interface{}) {
	l.entry.Debugf(format, v...)
}

// DebugWithFields logs a debug message with extra fields
func (l *Logger) DebugWithFields(fields logrus.Fields, format string, v ...interface{}) {
	l.entry.WithFields(fields).Debugf(format, v...)
}

// Info logs informational messages
func (l *Logger) Info(format string, v ...interface{}) {
	l.entry.Infof(format, v...)
}

// InfoWithFields logs an info message with extra fields
func (l *Logger) InfoWithFields(fields logrus.Fields, format string, v ...interface{}) {
	l.entry.WithFields(fields).Infof(format, v...)
}

// Warn logs warning messages
func (l *Logger) Warn(format string, v ...interface{}) {
	l.entry.Warnf(format, v...)
}

// WarnWithFields logs a warning with extra fields
func (l *Logger) WarnWithFields(fields logrus.Fields, format string, v ...interface{}) {
	l.entry.WithFields(fields).Warnf(format, v...)
}

// Error logs error messages
func (l *Logger) Error(format string, v ...interface{}) {
	l.entry.Errorf(format, v...)
}

// ErrorWithFields logs an error with extra fields
func (l *Logger) ErrorWithFields(fields logrus.Fields, format string, v ...interface{}) {
	l.entry.WithFields(fields).Errorf(format, v...)
}

// Fatal logs an error message and exits
func (l *Logger) Fatal(format string, v ...interface{}) {
	l.entry.Fatalf(format, v...)
}
