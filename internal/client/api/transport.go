// Package api is the HTTP client for the polyglot server.
package api

import (
	"net/http"
	"strings"

	"polyglot/internal/client/events"
	"polyglot/internal/client/session"
	"polyglot/internal/shared/logging"
)

const (
	RefreshedTokenHeader = "X-Refreshed-Token"
	LoginPath            = "/auth/token"
	authorizationHeader  = "Authorization"
)

// AuthTransport attaches the stored bearer token to outbound requests and keeps
// the store in step with the server: refreshed tokens are saved, and a 401 ends
// the local session. Login requests pass through untouched; a rejected password
// says nothing about the stored token.
type AuthTransport struct {
	Base      http.RoundTripper
	Store     session.Store
	Publisher events.Publisher
	Logger    logging.Logger
}

// NewAuthTransport wraps base, or http.DefaultTransport when base is nil.
func NewAuthTransport(base http.RoundTripper, store session.Store, publisher events.Publisher) *AuthTransport {
	return &AuthTransport{
		Base:      base,
		Store:     store,
		Publisher: publisher,
		Logger:    logging.NewComponentLogger("AuthTransport"),
	}
}

// RoundTrip implements http.RoundTripper. The caller's request is never modified
// and the response is always returned as received.
func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if isLogin(req) {
		return t.base().RoundTrip(req)
	}
	outbound := req.Clone(req.Context())
	token := t.Store.Token()
	attached := false
	if token != "" && outbound.Header.Get(authorizationHeader) == "" {
		outbound.Header.Set(authorizationHeader, "Bearer "+token)
		attached = true
	}

	resp, err := t.base().RoundTrip(outbound)
	if err != nil {
		return nil, err
	}

	if refreshed := strings.TrimSpace(resp.Header.Get(RefreshedTokenHeader)); refreshed != "" {
		if err := t.Store.Save(refreshed); err != nil {
			t.logger().Warn("Failed to persist refreshed token: %v", err)
		} else {
			t.publish(events.TokenRefreshed(refreshed))
		}
	}

	if resp.StatusCode == http.StatusUnauthorized {
		hadSession := attached || t.Store.Token() != ""
		if err := t.Store.Clear(); err != nil {
			t.logger().Warn("Failed to clear token after 401: %v", err)
		}
		if hadSession {
			reason := logoutReason(resp.Header.Get("WWW-Authenticate"))
			t.logger().Info("Session ended by server (%s): %s %s", reason, req.Method, req.URL.Path)
			t.publish(events.LoggedOut(reason))
		}
	}
	return resp, nil
}

func isLogin(req *http.Request) bool {
	return req.Method == http.MethodPost && req.URL != nil && strings.HasSuffix(req.URL.Path, LoginPath)
}

func (t *AuthTransport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *AuthTransport) logger() logging.Logger {
	return logging.OrNop(t.Logger)
}

func (t *AuthTransport) publish(n events.Notification) {
	if t.Publisher != nil {
		t.Publisher.Publish(n)
	}
}

// logoutReason reads the RFC 6750 challenge. Without an error parameter the server
// saw no credentials at all.
func logoutReason(challenge string) events.LogoutReason {
	lower := strings.ToLower(challenge)
	switch {
	case strings.Contains(lower, "expired"):
		return events.ReasonExpired
	case strings.Contains(lower, "error="):
		return events.ReasonInvalid
	default:
		return events.ReasonMissing
	}
}
