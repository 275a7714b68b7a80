package logging

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	id "polyglot/internal/shared/utils/id"
)

func TestComponentLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	Configure(Options{Level: "debug", Output: &buf})
	t.Cleanup(func() { Configure(Options{}) })

	logger := NewComponentLogger("Router")
	logger.Info("GET %s", "/health")

	out := buf.String()
	if !strings.Contains(out, "component=Router") {
		t.Fatalf("expected component field, got %q", out)
	}
	if !strings.Contains(out, "GET /health") {
		t.Fatalf("expected formatted message, got %q", out)
	}
}

func TestFromContextAddsLogID(t *testing.T) {
	var buf bytes.Buffer
	Configure(Options{Level: "info", Format: "json", Output: &buf})
	t.Cleanup(func() { Configure(Options{}) })

	ctx := id.WithUserID(id.WithLogID(context.Background(), "log-123"), "admin")
	FromContext(ctx, NewComponentLogger("Auth")).Warn("denied")

	if !strings.Contains(buf.String(), `"log_id":"log-123"`) {
		t.Fatalf("expected log_id in json output, got %q", buf.String())
	}
	if !strings.Contains(buf.String(), `"user":"admin"`) {
		t.Fatalf("expected user in json output, got %q", buf.String())
	}
}

type recordingLogger struct {
	nopLogger
	lines []string
}

func (r *recordingLogger) Info(format string, args ...any) {
	r.lines = append(r.lines, fmt.Sprintf(format, args...))
}

func TestWithPrefixesForeignLoggers(t *testing.T) {
	rec := &recordingLogger{}
	With(rec, Fields{"user": "a%b", "log_id": "l1", "empty": " "}).Info("saved %d", 3)

	if len(rec.lines) != 1 || rec.lines[0] != "log_id=l1 user=a%b saved 3" {
		t.Fatalf("unexpected lines: %q", rec.lines)
	}
	if With(rec, Fields{"log_id": ""}) != Logger(rec) {
		t.Fatalf("expected logger unchanged without fields")
	}
}

func TestLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	Configure(Options{Level: "warn", Output: &buf})
	t.Cleanup(func() { Configure(Options{}) })

	NewComponentLogger("x").Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected debug to be filtered, got %q", buf.String())
	}
}

func TestOrNop(t *testing.T) {
	var nilLogger *entryLogger
	if _, ok := OrNop(nilLogger).(nopLogger); !ok {
		t.Fatalf("expected nop logger for typed nil")
	}
	WithLogID(nil, "x").Info("no panic")
}
