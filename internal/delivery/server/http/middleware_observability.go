package http

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"polyglot/internal/infra/observability"
)

// ObservabilityMiddleware opens a server span per request and records request
// metrics under the route resolved by the mux.
func ObservabilityMiddleware(obs *observability.Observability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if obs == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := withRouteSlot(r.Context())
			fallbackRoute := canonicalPath(r.URL.Path)
			rec := newResponseRecorder(w)
			start := time.Now()

			if obs.Tracer != nil {
				spanCtx, span := obs.Tracer.StartSpan(ctx, observability.SpanHTTPServer,
					attribute.String("http.method", r.Method),
					attribute.String("http.route", fallbackRoute),
				)
				ctx = spanCtx
				defer func() {
					status := rec.Status()
					span.SetAttributes(
						attribute.String("http.route", orDefault(routeFromContext(ctx), fallbackRoute)),
						attribute.Int("http.status_code", status),
					)
					if status >= http.StatusInternalServerError {
						span.SetStatus(codes.Error, http.StatusText(status))
					}
					span.End()
				}()
			}

			next.ServeHTTP(rec, r.WithContext(ctx))
			if obs.Metrics != nil {
				route := orDefault(routeFromContext(ctx), fallbackRoute)
				obs.Metrics.RecordHTTPServerRequest(ctx, r.Method, route, rec.Status(), time.Since(start))
			}
		})
	}
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
