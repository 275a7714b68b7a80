package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	authapp "polyglot/internal/app/auth"
	feedbackapp "polyglot/internal/app/feedback"
	"polyglot/internal/delivery/server/app"
	serverHTTP "polyglot/internal/delivery/server/http"
	"polyglot/internal/domain/feedback/ports"
	"polyglot/internal/infra/observability"
	"polyglot/internal/shared/config"
	"polyglot/internal/shared/logging"
)

const shutdownTimeout = 10 * time.Second

// Server is a fully wired API server.
type Server struct {
	Handler         http.Handler
	Foundation      *Foundation
	Obs             *observability.Observability
	Broadcaster     *app.EventBroadcaster
	AuthService     *authapp.Service
	FeedbackService *feedbackapp.Service
	logger          logging.Logger
}

// BuildOption customizes Build.
type BuildOption func(*FeedbackDeps)

// WithAnalyzer replaces the LLM analyzer and model catalog.
func WithAnalyzer(analyzer ports.Analyzer, catalog ports.ModelCatalog) BuildOption {
	return func(deps *FeedbackDeps) {
		deps.Analyzer = analyzer
		deps.Catalog = catalog
	}
}

// Build wires storage, services and the router from cfg.
func Build(ctx context.Context, cfg config.Config, version string, opts ...BuildOption) (*Server, error) {
	logger := logging.NewComponentLogger("Bootstrap")

	trustedProxies, err := serverHTTP.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("server.trusted_proxies: %w", err)
	}
	foundation, err := BuildFoundation(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	obs := observability.New(cfg.Observability, version, logger)
	broadcaster := app.NewEventBroadcaster()

	authService, err := BuildAuthService(ctx, cfg, foundation.DB(), logger)
	if err != nil {
		foundation.Close()
		return nil, err
	}
	feedbackDeps := FeedbackDeps{DB: foundation.DB(), Broadcaster: broadcaster, Obs: obs}
	for _, opt := range opts {
		opt(&feedbackDeps)
	}
	feedbackService, err := BuildFeedbackService(ctx, cfg, feedbackDeps, logger)
	if err != nil {
		foundation.Close()
		return nil, err
	}

	health := app.NewHealthChecker()
	if foundation.Pool != nil {
		health.RegisterProbe(app.NewDatabaseProbe(foundation.Pool))
	} else {
		health.RegisterProbe(app.NewDatabaseProbe(nil))
	}
	health.RegisterProbe(app.NewAnalyzerProbe(cfg.LLM.APIKey != "" || feedbackDeps.Analyzer != nil, feedbackService.CurrentModel))

	router := serverHTTP.NewRouter(serverHTTP.RouterDeps{
		AuthService:     authService,
		FeedbackService: feedbackService,
		Broadcaster:     broadcaster,
		HealthChecker:   health,
		Obs:             obs,
	}, serverHTTP.RouterConfig{
		Environment:    cfg.Server.Environment,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RequestTimeout: cfg.Server.RequestTimeout,
		TrustedProxies: trustedProxies,
		Translate:      serverHTTP.RateLimitConfig{RequestsPerMinute: cfg.RateLimit.TranslatePerMinute},
		Feedback:       serverHTTP.RateLimitConfig{RequestsPerMinute: cfg.RateLimit.FeedbackPerMinute},
	})

	return &Server{
		Handler:         router,
		Foundation:      foundation,
		Obs:             obs,
		Broadcaster:     broadcaster,
		AuthService:     authService,
		FeedbackService: feedbackService,
		logger:          logger,
	}, nil
}

// Close flushes telemetry and releases the database pool.
func (s *Server) Close(ctx context.Context) error {
	if s == nil {
		return nil
	}
	err := s.Obs.Shutdown(ctx)
	s.Foundation.Close()
	return err
}

// RunServer builds the server and serves until ctx is cancelled.
func RunServer(ctx context.Context, cfg config.Config, version string) error {
	srv, err := Build(ctx, cfg, version)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Close(closeCtx); err != nil {
			srv.logger.Warn("Shutdown flush failed: %v", err)
		}
	}()

	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.Handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Minute,
		IdleTimeout:       120 * time.Second,
	}
	ln, err := net.Listen("tcp", httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", httpServer.Addr, err)
	}
	return Serve(ctx, httpServer, ln, srv.logger)
}

// Serve runs server on ln and shuts it down gracefully once ctx is cancelled.
func Serve(ctx context.Context, server *http.Server, ln net.Listener, logger logging.Logger) error {
	logger = logging.OrNop(logger)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Server listening on %s", ln.Addr())
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		logger.Info("Server stopped")
		return nil
	})
	return g.Wait()
}
