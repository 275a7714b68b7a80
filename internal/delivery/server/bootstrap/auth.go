package bootstrap

import (
	"context"
	"fmt"
	"strings"

	authapp "polyglot/internal/app/auth"
	authports "polyglot/internal/domain/auth/ports"
	authAdapters "polyglot/internal/infra/auth/adapters"
	"polyglot/internal/infra/auth/crypto"
	"polyglot/internal/infra/storage/postgres"
	"polyglot/internal/shared/config"
	"polyglot/internal/shared/logging"
)

const (
	developmentJWTSecret = "dev-secret-change-me"
	developmentAdminUser = "admin"
	developmentAdminPass = "admin"
)

// BuildAuthService wires the token service on Postgres, or on memory when db is nil.
func BuildAuthService(ctx context.Context, cfg config.Config, db postgres.DB, logger logging.Logger) (*authapp.Service, error) {
	logger = logging.OrNop(logger)
	allowDevelopmentFallback := cfg.IsDevelopment()

	secret := strings.TrimSpace(cfg.Auth.JWTSecret)
	if secret == "" {
		if !allowDevelopmentFallback {
			return nil, fmt.Errorf("auth.jwt_secret not configured")
		}
		secret = developmentJWTSecret
		logger.Warn("auth.jwt_secret not configured; using development fallback secret")
	}

	var credentials authports.CredentialStore = authAdapters.NewMemoryCredentialStore()
	if db != nil {
		credentials = authAdapters.NewPostgresCredentialStore(db)
	}
	tokens := authAdapters.NewJWTTokenManager(secret, cfg.Auth.Issuer, cfg.Auth.AccessTokenTTL)
	service := authapp.NewService(credentials, tokens, crypto.NewHasher(), authapp.Config{
		RefreshFraction: cfg.Auth.RefreshFraction,
	})

	if err := bootstrapAdmin(ctx, service, cfg, logger); err != nil {
		return nil, err
	}
	return service, nil
}

func bootstrapAdmin(ctx context.Context, service *authapp.Service, cfg config.Config, logger logging.Logger) error {
	username := strings.TrimSpace(cfg.Auth.BootstrapUsername)
	password := cfg.Auth.BootstrapPassword
	if username == "" || password == "" {
		if !cfg.IsDevelopment() {
			logger.Info("No bootstrap admin configured")
			return nil
		}
		username, password = developmentAdminUser, developmentAdminPass
	}

	created, err := service.EnsureAdmin(ctx, username, password)
	if err != nil {
		return fmt.Errorf("bootstrap admin %s: %w", username, err)
	}
	if !created {
		logger.Info("Bootstrap admin already exists: %s", username)
		return nil
	}
	if password == developmentAdminPass {
		logger.Warn("Bootstrap admin %s created with the default password; change it via /auth/change-password", username)
		return nil
	}
	logger.Info("Bootstrap admin created: %s", username)
	return nil
}
