package logging

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	id "polyglot/internal/shared/utils/id"
)

// Fields are structured key/value pairs attached to every line of a logger.
type Fields map[string]string

type fieldCapable interface {
	withFields(Fields) Logger
}

// With returns logger tagged with the non-empty entries of fields.
func With(logger Logger, fields Fields) Logger {
	if IsNil(logger) {
		return Nop()
	}
	kept := make(Fields, len(fields))
	for key, value := range fields {
		if strings.TrimSpace(value) != "" {
			kept[key] = value
		}
	}
	if len(kept) == 0 {
		return logger
	}
	if capable, ok := logger.(fieldCapable); ok {
		return capable.withFields(kept)
	}
	return &prefixLogger{logger: logger, prefix: kept.String()}
}

// WithLogID tags logger with a request log id.
func WithLogID(logger Logger, logID string) Logger {
	return With(logger, Fields{"log_id": logID})
}

// FromContext tags logger with the request log id and authenticated user on ctx.
func FromContext(ctx context.Context, logger Logger) Logger {
	return With(logger, Fields{
		"log_id": id.LogIDFromContext(ctx),
		"user":   id.UserIDFromContext(ctx),
	})
}

func (l *entryLogger) withFields(fields Fields) Logger {
	data := make(logrus.Fields, len(fields))
	for key, value := range fields {
		data[key] = value
	}
	return &entryLogger{entry: l.entry.WithFields(data)}
}

// String renders fields as sorted key=value pairs.
func (f Fields) String() string {
	keys := make([]string, 0, len(f))
	for key := range f {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, key := range keys {
		parts[i] = fmt.Sprintf("%s=%s", key, f[key])
	}
	return strings.Join(parts, " ")
}

// prefixLogger tags loggers that are not backed by logrus.
type prefixLogger struct {
	logger Logger
	prefix string
}

func (l *prefixLogger) Debug(format string, args ...any) { l.logger.Debug(l.format(format), args...) }
func (l *prefixLogger) Info(format string, args ...any)  { l.logger.Info(l.format(format), args...) }
func (l *prefixLogger) Warn(format string, args ...any)  { l.logger.Warn(l.format(format), args...) }
func (l *prefixLogger) Error(format string, args ...any) { l.logger.Error(l.format(format), args...) }

func (l *prefixLogger) format(format string) string {
	// The prefix may contain '%' from user input.
	return strings.ReplaceAll(l.prefix, "%", "%%") + " " + format
}
