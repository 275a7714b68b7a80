package logging

import (
	"io"
	"os"
	"reflect"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Logger defines a minimal, printf-style logging contract.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Options controls the process-wide log backend.
type Options struct {
	Level  string
	Format string // "text" or "json"
	Output io.Writer
}

var (
	baseMu sync.RWMutex
	base   = newBase(Options{})
)

func newBase(opts Options) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	if opts.Output != nil {
		l.SetOutput(opts.Output)
	}
	level, err := logrus.ParseLevel(strings.TrimSpace(opts.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)
	if strings.EqualFold(strings.TrimSpace(opts.Format), "json") {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05"})
	}
	return l
}

// Configure replaces the backend used by loggers created afterwards.
func Configure(opts Options) {
	l := newBase(opts)
	baseMu.Lock()
	base = l
	baseMu.Unlock()
}

func backend() *logrus.Logger {
	baseMu.RLock()
	defer baseMu.RUnlock()
	return base
}

type entryLogger struct {
	entry *logrus.Entry
}

func (l *entryLogger) Debug(format string, args ...any) { l.entry.Debugf(format, args...) }
func (l *entryLogger) Info(format string, args ...any)  { l.entry.Infof(format, args...) }
func (l *entryLogger) Warn(format string, args ...any)  { l.entry.Warnf(format, args...) }
func (l *entryLogger) Error(format string, args ...any) { l.entry.Errorf(format, args...) }

// NewComponentLogger returns the default application logger scoped to a component.
func NewComponentLogger(component string) Logger {
	return &entryLogger{entry: backend().WithField("component", component)}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Nop returns a logger that discards all output.
func Nop() Logger {
	return nopLogger{}
}

// IsNil reports whether logger is nil or wraps a nil pointer receiver.
func IsNil(logger Logger) bool {
	if logger == nil {
		return true
	}
	val := reflect.ValueOf(logger)
	switch val.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map, reflect.Func:
		return val.IsNil()
	default:
		return false
	}
}

// OrNop returns logger when non-nil, otherwise a no-op logger.
func OrNop(logger Logger) Logger {
	if IsNil(logger) {
		return Nop()
	}
	return logger
}
