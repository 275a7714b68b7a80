package http

import (
	"net/http"
	"strings"
	"time"

	"polyglot/internal/shared/logging"
	id "polyglot/internal/shared/utils/id"
)

// LogIDHeader echoes the request's log id back to the caller.
const LogIDHeader = "X-Log-Id"

var inboundLogIDHeaders = []string{LogIDHeader, "X-Request-Id", "X-Correlation-Id"}

func resolveLogID(r *http.Request) string {
	for _, header := range inboundLogIDHeaders {
		if value := strings.TrimSpace(r.Header.Get(header)); value != "" && len(value) <= 128 {
			return value
		}
	}
	return id.NewLogID()
}

// LoggingMiddleware assigns a log id to every request and writes one access line
// when it completes. Probes and scrapes are not logged.
func LoggingMiddleware(logger logging.Logger) func(http.Handler) http.Handler {
	logger = logging.OrNop(logger)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/metrics" || r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			logID := id.LogIDFromContext(ctx)
			if logID == "" {
				logID = resolveLogID(r)
				ctx = id.WithLogID(ctx, logID)
			}
			w.Header().Set(LogIDHeader, logID)

			rec := newResponseRecorder(w)
			start := time.Now()
			next.ServeHTTP(rec, r.WithContext(ctx))

			reqLogger := logging.WithLogID(logger, logID)
			status := rec.Status()
			line := "%s %s -> %d (%d bytes in %s) from %s"
			args := []any{r.Method, r.URL.Path, status, rec.bytes, time.Since(start).Round(time.Millisecond), clientIP(r)}
			if status >= http.StatusInternalServerError {
				reqLogger.Warn(line, args...)
				return
			}
			reqLogger.Info(line, args...)
		})
	}
}
