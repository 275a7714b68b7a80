package id

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestNewLogIDPrefix(t *testing.T) {
	a, b := NewLogID(), NewLogID()
	if !strings.HasPrefix(a, "log-") {
		t.Fatalf("expected log- prefix, got %q", a)
	}
	if a == b {
		t.Fatalf("expected unique ids")
	}
}

func TestNewIdempotencyKeyIsUUID(t *testing.T) {
	key := NewIdempotencyKey()
	if _, err := uuid.Parse(key); err != nil {
		t.Fatalf("expected uuid, got %q: %v", key, err)
	}
}

func TestContextRoundTrip(t *testing.T) {
	ctx := WithUserID(WithLogID(context.Background(), "log-1"), "admin")
	if LogIDFromContext(ctx) != "log-1" || UserIDFromContext(ctx) != "admin" {
		t.Fatalf("unexpected context values")
	}
	if WithLogID(ctx, "") != ctx {
		t.Fatalf("empty id should not wrap context")
	}
}
