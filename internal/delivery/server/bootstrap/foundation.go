package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"polyglot/internal/infra/storage/postgres"
	"polyglot/internal/shared/config"
	"polyglot/internal/shared/logging"
)

// Foundation holds the shared infrastructure every service is built on.
type Foundation struct {
	Config config.Config
	// Pool is nil when the server runs on in-memory stores.
	Pool   *pgxpool.Pool
	Logger logging.Logger
}

// DB returns the pool as a postgres.DB, or nil for in-memory mode.
func (f *Foundation) DB() postgres.DB {
	if f == nil || f.Pool == nil {
		return nil
	}
	return f.Pool
}

// Close releases the database pool.
func (f *Foundation) Close() {
	if f != nil && f.Pool != nil {
		f.Pool.Close()
	}
}

// BuildFoundation connects and migrates Postgres when a database URL is configured.
// In development an unreachable database degrades to in-memory stores; elsewhere it
// is fatal.
func BuildFoundation(ctx context.Context, cfg config.Config, logger logging.Logger) (*Foundation, error) {
	logger = logging.OrNop(logger)
	f := &Foundation{Config: cfg, Logger: logger}

	if cfg.Database.URL == "" {
		if !cfg.IsDevelopment() {
			return nil, fmt.Errorf("database.url not configured")
		}
		logger.Warn("database.url not configured; using in-memory storage (data is lost on restart)")
		return f, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	pool, err := postgres.Connect(connectCtx, postgres.ConnectOptions{
		URL:      cfg.Database.URL,
		MaxConns: int32(cfg.Database.MaxConns),
		Retries:  uint64(max(cfg.Database.ConnectRetries, 0)),
		Logger:   logger,
	})
	if err != nil {
		if !cfg.IsDevelopment() {
			return nil, err
		}
		logger.Warn("Database unavailable; falling back to in-memory storage: %v", err)
		return f, nil
	}
	if err := postgres.Migrate(connectCtx, pool, uint64(max(cfg.Database.ConnectRetries, 0))); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	logger.Info("Storage backed by Postgres (max_conns=%d)", cfg.Database.MaxConns)
	f.Pool = pool
	return f, nil
}
