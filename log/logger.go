// Package log is a minimal structured-logging wrapper used by the container
// and handed to the persistor. It keeps the
// small call-site shape (Logln/Logf) while delegating level filtering and
// field attachment to logrus.
package log

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Logger wraps a logrus.Entry, giving every call site a stable, narrow API
// regardless of which fields are attached upstream.
type Logger struct {
	entry *logrus.Entry
}

// New returns a logger that writes to w at info level.
func New(w io.Writer) *Logger {
	base := logrus.New()
	base.SetOutput(w)
	base.SetLevel(logrus.InfoLevel)
	return &Logger{entry: logrus.NewEntry(base)}
}

// WithField returns a derived logger carrying an additional field, e.g.
// log.WithField("module", name).
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{entry: l.entry.WithField(key, value)}
}

// WithModule is shorthand for WithField("module", name).
func (l *Logger) WithModule(name string) *Logger {
	return l.WithField("module", name)
}

// Logln logs a line at info level.
func (l *Logger) Logln(args ...interface{}) {
	l.entry.Infoln(args...)
}

// Logf logs a formatted string at info level.
func (l *Logger) Logf(f string, args ...interface{}) {
	l.entry.Infof(f, args...)
}

// Debugf logs a formatted string at debug level, used by the container
// to trace each module build it adds.
func (l *Logger) Debugf(f string, args ...interface{}) {
	l.entry.Debugf(f, args...)
}

// Warnf logs a formatted string at warn level, used for recoverable
// conditions such as a skipped duplicate module build.
func (l *Logger) Warnf(f string, args ...interface{}) {
	l.entry.Warnf(f, args...)
}

// SetDebug toggles debug-level verbosity on the underlying logrus logger.
func (l *Logger) SetDebug(on bool) {
	if logger, ok := l.entry.Logger, true; ok {
		if on {
			logger.SetLevel(logrus.DebugLevel)
		} else {
			logger.SetLevel(logrus.InfoLevel)
		}
	}
}
