package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	domain "polyglot/internal/domain/auth"
	"polyglot/internal/domain/auth/ports"
	"polyglot/internal/shared/logging"
)

// DefaultRefreshFraction refreshes tokens once less than half of the TTL remains.
const DefaultRefreshFraction = 0.5

// Config tunes the Service.
type Config struct {
	// RefreshFraction is the share of the TTL below which a valid token is reissued.
	// Zero selects DefaultRefreshFraction; a negative value disables refresh.
	RefreshFraction float64
}

// Service issues, verifies and refreshes session tokens.
type Service struct {
	credentials ports.CredentialStore
	tokens      ports.TokenManager
	hasher      ports.PasswordHasher
	config      Config
	now         func() time.Time
	logger      logging.Logger

	dummyOnce sync.Once
	dummyHash string
}

// NewService wires the auth service.
func NewService(credentials ports.CredentialStore, tokens ports.TokenManager, hasher ports.PasswordHasher, cfg Config) *Service {
	if cfg.RefreshFraction == 0 {
		cfg.RefreshFraction = DefaultRefreshFraction
	}
	return &Service{
		credentials: credentials,
		tokens:      tokens,
		hasher:      hasher,
		config:      cfg,
		now:         time.Now,
		logger:      logging.NewComponentLogger("AuthService"),
	}
}

// WithNow overrides the clock. Intended for tests.
func (s *Service) WithNow(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// TTL returns the lifetime of issued tokens.
func (s *Service) TTL() time.Duration {
	return s.tokens.TTL()
}

// Login verifies the credential and issues a session token. Unknown users and wrong
// passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, username, password string) (domain.IssuedToken, error) {
	username = strings.TrimSpace(username)
	credential, err := s.credentials.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrCredentialNotFound) {
			s.burnVerification(password)
			return domain.IssuedToken{}, domain.ErrInvalidCredentials
		}
		return domain.IssuedToken{}, fmt.Errorf("load credential: %w", err)
	}
	ok, err := s.hasher.Verify(password, credential.PasswordHash)
	if err != nil {
		s.logger.Warn("Password verification error for %s: %v", username, err)
		return domain.IssuedToken{}, domain.ErrInvalidCredentials
	}
	if !ok {
		return domain.IssuedToken{}, domain.ErrInvalidCredentials
	}
	role := credential.Role
	if role == "" {
		role = domain.RoleAdmin
	}
	return s.tokens.Issue(ctx, credential.Username, role, s.now())
}

// burnVerification spends the same hashing work as a real check so response time
// does not reveal whether the username exists.
func (s *Service) burnVerification(password string) {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash("polyglot-dummy-password")
		if err == nil {
			s.dummyHash = hash
		}
	})
	if s.dummyHash != "" {
		_, _ = s.hasher.Verify(password, s.dummyHash)
	}
}

// Authenticate verifies token and returns the principal. When the remaining validity
// is positive but below TTL*RefreshFraction, a replacement token is returned as well.
func (s *Service) Authenticate(ctx context.Context, token string) (domain.Principal, *domain.IssuedToken, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Principal{}, nil, domain.ErrUnauthenticated
	}
	now := s.now()
	claims, err := s.tokens.Parse(ctx, token, now)
	if err != nil {
		return domain.Principal{}, nil, err
	}
	principal := domain.Principal{Subject: claims.Subject, Role: claims.Role, ExpiresAt: claims.ExpiresAt}
	if !s.ShouldRefresh(claims.ExpiresAt, now) {
		return principal, nil, nil
	}
	refreshed, err := s.tokens.Issue(ctx, claims.Subject, claims.Role, now)
	if err != nil {
		// The presented token is still valid; serve the request without a refresh.
		s.logger.Warn("Token refresh for %s failed: %v", claims.Subject, err)
		return principal, nil, nil
	}
	return principal, &refreshed, nil
}

// ShouldRefresh reports whether a token expiring at expiresAt is inside the refresh
// window at now. Already expired tokens are never refreshed.
func (s *Service) ShouldRefresh(expiresAt, now time.Time) bool {
	if s.config.RefreshFraction < 0 {
		return false
	}
	remaining := expiresAt.Sub(now)
	if remaining <= 0 {
		return false
	}
	threshold := time.Duration(float64(s.tokens.TTL()) * s.config.RefreshFraction)
	return remaining < threshold
}

// Authorize fails with ErrForbidden when principal does not hold role.
func Authorize(principal domain.Principal, role domain.Role) error {
	if principal.IsAnonymous() {
		return domain.ErrUnauthenticated
	}
	if principal.Role != role {
		return domain.ErrForbidden
	}
	return nil
}

// ChangePassword replaces the password after re-checking the current one.
func (s *Service) ChangePassword(ctx context.Context, username, current, next string) error {
	credential, err := s.credentials.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrCredentialNotFound) {
			return domain.ErrInvalidCredentials
		}
		return fmt.Errorf("load credential: %w", err)
	}
	ok, err := s.hasher.Verify(current, credential.PasswordHash)
	if err != nil || !ok {
		return domain.ErrInvalidCredentials
	}
	if len(next) < domain.MinPasswordLength {
		return domain.ErrWeakPassword
	}
	hash, err := s.hasher.Hash(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.credentials.UpdatePassword(ctx, username, hash, s.now()); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	s.logger.Info("Password changed for %s", username)
	return nil
}

// EnsureAdmin creates the administrator credential if it does not exist yet.
func (s *Service) EnsureAdmin(ctx context.Context, username, password string) (bool, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return false, errors.New("bootstrap admin requires username and password")
	}
	if _, err := s.credentials.FindByUsername(ctx, username); err == nil {
		return false, nil
	} else if !errors.Is(err, domain.ErrCredentialNotFound) {
		return false, fmt.Errorf("load credential: %w", err)
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}
	now := s.now()
	_, err = s.credentials.Create(ctx, domain.Credential{
		Username:     username,
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if errors.Is(err, domain.ErrCredentialExists) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("create credential: %w", err)
	}
	return true, nil
}
