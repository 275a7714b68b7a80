package ports

import (
	"context"
	"time"

	auth "polyglot/internal/domain/auth"
)

// CredentialStore persists administrator credentials.
type CredentialStore interface {
	Create(ctx context.Context, credential auth.Credential) (auth.Credential, error)
	FindByUsername(ctx context.Context, username string) (auth.Credential, error)
	UpdatePassword(ctx context.Context, username, passwordHash string, updatedAt time.Time) error
}

// TokenManager signs and parses session tokens.
type TokenManager interface {
	Issue(ctx context.Context, subject string, role auth.Role, issuedAt time.Time) (auth.IssuedToken, error)
	Parse(ctx context.Context, token string, now time.Time) (auth.Claims, error)
	TTL() time.Duration
}

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
}
