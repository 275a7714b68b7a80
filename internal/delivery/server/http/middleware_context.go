package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	domain "polyglot/internal/domain/auth"
)

type contextKey string

const (
	principalContextKey      contextKey = "principal"
	canonicalRouteContextKey contextKey = "canonicalRoute"
	clientIPContextKey       contextKey = "clientIP"
)

// routeSlot lets outer middleware read the route resolved by the mux after inner
// middleware has replaced the request.
type routeSlot struct {
	route string
}

func withRouteSlot(ctx context.Context) context.Context {
	if _, ok := ctx.Value(canonicalRouteContextKey).(*routeSlot); ok {
		return ctx
	}
	return context.WithValue(ctx, canonicalRouteContextKey, &routeSlot{})
}

func annotateRequestRoute(r *http.Request, route string) {
	if r == nil || route == "" {
		return
	}
	if slot, ok := r.Context().Value(canonicalRouteContextKey).(*routeSlot); ok {
		slot.route = route
		return
	}
	ctx := context.WithValue(r.Context(), canonicalRouteContextKey, &routeSlot{route: route})
	*r = *r.WithContext(ctx)
}

func routeFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if slot, ok := ctx.Value(canonicalRouteContextKey).(*routeSlot); ok {
		return slot.route
	}
	return ""
}

// withPrincipal stores the authenticated caller on ctx.
func withPrincipal(ctx context.Context, principal domain.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, principal)
}

// CurrentPrincipal returns the caller attached by AuthMiddleware. ok is false for
// anonymous requests.
func CurrentPrincipal(ctx context.Context) (domain.Principal, bool) {
	if ctx == nil {
		return domain.Principal{}, false
	}
	principal, ok := ctx.Value(principalContextKey).(domain.Principal)
	if !ok || principal.IsAnonymous() {
		return domain.Principal{}, false
	}
	return principal, true
}

// canonicalPath collapses numeric segments so metrics stay low-cardinality for
// unmatched routes.
func canonicalPath(path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "/"
	}
	segments := strings.Split(trimmed, "/")
	filtered := make([]string, 0, len(segments))
	for _, segment := range segments {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		if _, err := strconv.ParseInt(segment, 10, 64); err == nil {
			filtered = append(filtered, ":id")
			continue
		}
		filtered = append(filtered, segment)
	}
	if len(filtered) == 0 {
		return "/"
	}
	return "/" + strings.Join(filtered, "/")
}
