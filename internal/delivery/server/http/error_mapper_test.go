package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	domain "polyglot/internal/domain/auth"
	"polyglot/internal/domain/feedback"
)

func TestMapDomainError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"nil", nil, 0, ""},
		{"unknown", errors.New("boom"), 0, ""},
		{"credentials", domain.ErrInvalidCredentials, http.StatusUnauthorized, "Incorrect username or password"},
		{"expired", domain.ExpiredToken(), http.StatusUnauthorized, "Token has expired"},
		{"invalid token", fmt.Errorf("%w: bad signature", domain.ErrInvalidToken), http.StatusUnauthorized, "Could not validate credentials"},
		{"forbidden", domain.ErrForbidden, http.StatusForbidden, "Admin access required"},
		{"unknown product", fmt.Errorf("%w: Widget", feedback.ErrUnknownProduct), http.StatusBadRequest, "Unknown product: Widget"},
		{"validation", fmt.Errorf("%w: text is required", feedback.ErrValidation), http.StatusBadRequest, "Text is required"},
		{"wrapped not found", fmt.Errorf("delete: %w", feedback.ErrNotFound), http.StatusNotFound, "Not found"},
		{"conflict", feedback.ErrConflict, http.StatusConflict, "Already exists"},
		{"analysis", fmt.Errorf("list models: %w: HTTP 503", feedback.ErrAnalysisFailed), http.StatusBadGateway, "AI analysis failed: HTTP 503"},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout, "Request timed out"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, msg := mapDomainError(tt.err)
			if status != tt.wantStatus || msg != tt.wantMsg {
				t.Fatalf("mapDomainError(%v) = (%d, %q), want (%d, %q)", tt.err, status, msg, tt.wantStatus, tt.wantMsg)
			}
		})
	}
}

func TestCanonicalPathCollapsesIDs(t *testing.T) {
	if got := canonicalPath("/api/feedback/42"); got != "/api/feedback/:id" {
		t.Fatalf("unexpected canonical path %q", got)
	}
	if got := canonicalPath(""); got != "/" {
		t.Fatalf("unexpected canonical path %q", got)
	}
}

func TestExtractBearerToken(t *testing.T) {
	cases := map[string]string{
		"Bearer abc":   "abc",
		"bearer  abc ": "abc",
		"Basic abc":    "",
		"Bearer":       "",
		"":             "",
	}
	for header, want := range cases {
		if got := extractBearerToken(header); got != want {
			t.Fatalf("extractBearerToken(%q) = %q, want %q", header, got, want)
		}
	}
}
