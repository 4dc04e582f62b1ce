// Package logger provides the structured logging facade used across the
// application. It wraps zerolog so call sites stay decoupled from the
// underlying library.
package logger

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// Logger is a named structured logger. The zero value is not usable; construct
// instances with New or NewDefault.
type Logger struct {
	mu     sync.Mutex
	zl     zerolog.Logger
	fields map[string]interface{}
	err    error
}

// New creates a logger writing to the given sink at the given level.
func New(component string, out io.Writer, level zerolog.Level) *Logger {
	zl := zerolog.New(out).Level(level).With().
		Timestamp().
		Str("component", component).
		Logger()
	return &Logger{zl: zl}
}

// NewDefault creates a logger writing to stderr at info level.
func NewDefault(component string) *Logger {
	return New(component, os.Stderr, zerolog.InfoLevel)
}

// SetOutput redirects the logger's sink. Mainly useful in tests and examples.
func (l *Logger) SetOutput(out io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.zl = l.zl.Output(out)
}

// WithField returns a derived logger carrying an extra field on every event.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	fields := make(map[string]interface{}, len(l.fields)+1)
	for k, v := range l.fields {
		fields[k] = v
	}
	fields[key] = value
	return &Logger{zl: l.zl, fields: fields, err: l.err}
}

// WithError returns a derived logger that attaches err to every event.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{zl: l.zl, fields: l.fields, err: err}
}

func (l *Logger) event(ev *zerolog.Event, msg string) {
	for k, v := range l.fields {
		ev = ev.Interface(k, v)
	}
	if l.err != nil {
		ev = ev.Err(l.err)
	}
	ev.Msg(msg)
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string) { l.event(l.zl.Debug(), msg) }

// Info logs at info level.
func (l *Logger) Info(msg string) { l.event(l.zl.Info(), msg) }

// Warn logs at warn level.
func (l *Logger) Warn(msg string) { l.event(l.zl.Warn(), msg) }

// Error logs at error level.
func (l *Logger) Error(msg string) { l.event(l.zl.Error(), msg) }
