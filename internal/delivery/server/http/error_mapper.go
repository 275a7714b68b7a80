package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	domain "polyglot/internal/domain/auth"
	"polyglot/internal/domain/feedback"
	"polyglot/internal/shared/logging"
)

// mapDomainError translates a domain/service error into an HTTP status code and a
// user-facing message.
//
// Returns (0, "") if the error is not a recognized domain error, letting the caller
// decide on a default (typically 500).
func mapDomainError(err error) (status int, message string) {
	if err == nil {
		return 0, ""
	}

	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Incorrect username or password"

	case errors.Is(err, domain.ErrTokenExpired):
		return http.StatusUnauthorized, "Token has expired"

	case errors.Is(err, domain.ErrInvalidToken):
		return http.StatusUnauthorized, "Could not validate credentials"

	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, "Not authenticated"

	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "Admin access required"

	case errors.Is(err, domain.ErrWeakPassword):
		return http.StatusBadRequest, capitalize(err.Error())

	case errors.Is(err, feedback.ErrUnknownProduct):
		return http.StatusBadRequest, "Unknown product: " + detailAfter(err, feedback.ErrUnknownProduct)

	case errors.Is(err, feedback.ErrValidation):
		return http.StatusBadRequest, capitalize(detailAfter(err, feedback.ErrValidation))

	case errors.Is(err, feedback.ErrNotFound):
		return http.StatusNotFound, "Not found"

	case errors.Is(err, feedback.ErrConflict):
		return http.StatusConflict, "Already exists"

	case errors.Is(err, feedback.ErrAnalysisFailed):
		return http.StatusBadGateway, "AI analysis failed: " + detailAfter(err, feedback.ErrAnalysisFailed)

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, timeoutDetail

	default:
		return 0, ""
	}
}

// writeMappedError writes an error response using domain error mapping. Unmapped
// errors become a logged 500.
func writeMappedError(w http.ResponseWriter, r *http.Request, logger logging.Logger, err error) {
	if status, msg := mapDomainError(err); status != 0 {
		writeDetail(w, status, msg)
		return
	}
	if errors.Is(err, context.Canceled) {
		logging.FromContext(r.Context(), logger).Debug("%s %s cancelled by client", r.Method, r.URL.Path)
		return
	}
	logging.FromContext(r.Context(), logger).Error("%s %s failed: %v", r.Method, r.URL.Path, err)
	writeDetail(w, http.StatusInternalServerError, "Internal server error")
}

// detailAfter returns the text following "<sentinel>: " in err, or the whole message
// when the sentinel is not followed by a detail.
func detailAfter(err, sentinel error) string {
	msg := err.Error()
	marker := sentinel.Error() + ": "
	if idx := strings.Index(msg, marker); idx >= 0 {
		return msg[idx+len(marker):]
	}
	return msg
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
