package http

import (
	"net/http"

	domain "polyglot/internal/domain/auth"
	"polyglot/internal/infra/observability"
	"polyglot/internal/shared/logging"
)

// NewRouter creates a new HTTP router with all endpoints.
// Routes use Go 1.22+ method-specific patterns ("METHOD /path/{param}").
func NewRouter(deps RouterDeps, cfg RouterConfig) http.Handler {
	logger := logging.NewComponentLogger("Router")

	authHandler := NewAuthHandler(deps.AuthService)
	feedbackHandler := NewFeedbackHandler(deps.FeedbackService, deps.Obs, cfg.MaxBodyBytes)
	var metrics *observability.MetricsCollector
	var rateLimitMetrics rateLimitRecorder
	if deps.Obs != nil && deps.Obs.Metrics != nil {
		metrics = deps.Obs.Metrics
		rateLimitMetrics = metrics
	}
	var streamHandler *StreamHandler
	if deps.Broadcaster != nil {
		streamHandler = NewStreamHandler(deps.Broadcaster, metrics, cfg.Environment, cfg.AllowedOrigins)
	}

	optional := AuthMiddleware(deps.AuthService, AuthOptional)
	required := AuthMiddleware(deps.AuthService, AuthRequired)
	requireAdmin := RequireRole(domain.RoleAdmin)
	public := func(h http.HandlerFunc) http.Handler { return optional(h) }
	authed := func(h http.HandlerFunc) http.Handler { return required(h) }
	admin := func(h http.HandlerFunc) http.Handler { return required(requireAdmin(h)) }

	mux := http.NewServeMux()

	// ── Service endpoints ──

	mux.Handle("GET /{$}", routeHandler("/", http.HandlerFunc(handleRoot)))
	mux.Handle("GET /health", routeHandler("/health", handleHealth(deps.HealthChecker)))
	if metrics != nil {
		mux.Handle("GET /metrics", routeHandler("/metrics", metrics.Handler()))
	}

	// ── Auth endpoints ──

	mux.Handle("POST /auth/token", routeHandler("/auth/token", http.HandlerFunc(authHandler.HandleLogin)))
	mux.Handle("POST /auth/change-password", routeHandler("/auth/change-password", admin(authHandler.HandleChangePassword)))
	mux.Handle("GET /auth/me", routeHandler("/auth/me", authed(authHandler.HandleMe)))

	// ── Public form endpoints ──

	translateLimit := RateLimitMiddleware(cfg.Translate, "/api/translate", rateLimitMetrics)
	submitLimit := RateLimitMiddleware(cfg.Feedback, "/api/feedback", rateLimitMetrics)
	mux.Handle("POST /api/translate", routeHandler("/api/translate", translateLimit(public(feedbackHandler.HandleTranslate))))
	mux.Handle("POST /api/feedback", routeHandler("/api/feedback", submitLimit(public(feedbackHandler.HandleSubmit))))
	mux.Handle("GET /api/products", routeHandler("/api/products", public(feedbackHandler.HandleListProducts)))

	// ── Dashboard endpoints ──

	mux.Handle("GET /api/feedback", routeHandler("/api/feedback", admin(feedbackHandler.HandleList)))
	mux.Handle("DELETE /api/feedback", routeHandler("/api/feedback", admin(feedbackHandler.HandleBulkDelete)))
	mux.Handle("DELETE /api/feedback/all", routeHandler("/api/feedback/all", admin(feedbackHandler.HandleDeleteMatching)))
	mux.Handle("DELETE /api/feedback/{id}", routeHandler("/api/feedback/:id", admin(feedbackHandler.HandleDelete)))
	mux.Handle("GET /api/stats", routeHandler("/api/stats", admin(feedbackHandler.HandleStats)))
	mux.Handle("POST /api/products", routeHandler("/api/products", admin(feedbackHandler.HandleCreateProduct)))
	mux.Handle("DELETE /api/products/{id}", routeHandler("/api/products/:id", admin(feedbackHandler.HandleDeleteProduct)))
	mux.Handle("GET /api/llm/models", routeHandler("/api/llm/models", admin(feedbackHandler.HandleListModels)))
	mux.Handle("GET /api/llm/current-model", routeHandler("/api/llm/current-model", admin(feedbackHandler.HandleGetCurrentModel)))
	mux.Handle("POST /api/llm/current-model", routeHandler("/api/llm/current-model", admin(feedbackHandler.HandleSetCurrentModel)))
	if streamHandler != nil {
		mux.Handle("GET /api/feedback/stream", routeHandler("/api/feedback/stream", admin(streamHandler.HandleStream)))
	}

	logger.Info("Router configured (environment=%s)", cfg.Environment)

	// ── Middleware stack ──

	var handler http.Handler = mux
	handler = ObservabilityMiddleware(deps.Obs)(handler)
	handler = LoggingMiddleware(logger)(handler)
	handler = ClientIPMiddleware(cfg.TrustedProxies)(handler)
	handler = RequestTimeoutMiddleware(cfg.RequestTimeout, logger)(handler)
	handler = CompressionMiddleware()(handler)
	handler = CORSMiddleware(cfg.Environment, cfg.AllowedOrigins)(handler)

	return handler
}

func routeHandler(route string, handler http.Handler) http.Handler {
	if route == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		annotateRequestRoute(r, route)
		handler.ServeHTTP(w, r)
	})
}
