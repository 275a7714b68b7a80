package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	authapp "polyglot/internal/app/auth"
	domain "polyglot/internal/domain/auth"
	id "polyglot/internal/shared/utils/id"
)

// RefreshedTokenHeader carries a replacement token when the presented one is close
// to expiry.
const RefreshedTokenHeader = "X-Refreshed-Token"

// AuthMode selects whether a route may be called without a token.
type AuthMode int

const (
	// AuthOptional lets anonymous requests through but still verifies and refreshes
	// a token when one is sent.
	AuthOptional AuthMode = iota
	// AuthRequired rejects requests without a valid token.
	AuthRequired
)

// AuthMiddleware verifies the bearer token, attaches the principal to the request
// context and sets RefreshedTokenHeader before the handler writes its response.
func AuthMiddleware(service *authapp.Service, mode AuthMode) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			token := extractBearerToken(r.Header.Get("Authorization"))
			if token == "" && isWebSocketUpgrade(r) {
				token = strings.TrimSpace(r.URL.Query().Get("access_token"))
			}
			if token == "" {
				if mode == AuthRequired {
					writeUnauthorized(w, domain.ErrUnauthenticated)
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			if service == nil {
				writeUnauthorized(w, domain.ErrInvalidToken)
				return
			}
			principal, refreshed, err := service.Authenticate(r.Context(), token)
			if err != nil {
				writeUnauthorized(w, err)
				return
			}
			if refreshed != nil {
				w.Header().Set(RefreshedTokenHeader, refreshed.Token)
			}
			ctx := withPrincipal(r.Context(), principal)
			ctx = id.WithUserID(ctx, principal.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects callers whose principal does not hold role. It must run after
// AuthMiddleware.
func RequireRole(role domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, _ := CurrentPrincipal(r.Context())
			if err := authapp.Authorize(principal, role); err != nil {
				if errors.Is(err, domain.ErrUnauthenticated) {
					writeUnauthorized(w, err)
					return
				}
				writeDetail(w, http.StatusForbidden, "Admin access required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, err error) {
	status, detail := mapDomainError(err)
	if status != http.StatusUnauthorized {
		detail = "Could not validate credentials"
	}
	if errors.Is(err, domain.ErrUnauthenticated) {
		w.Header().Set("WWW-Authenticate", `Bearer realm="polyglot"`)
	} else {
		w.Header().Set("WWW-Authenticate", fmt.Sprintf(`Bearer error="invalid_token", error_description=%q`, detail))
	}
	writeDetail(w, http.StatusUnauthorized, detail)
}

func extractBearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func isWebSocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(strings.TrimSpace(r.Header.Get("Upgrade")), "websocket")
}
