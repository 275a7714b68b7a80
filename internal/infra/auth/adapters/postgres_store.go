package adapters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	auth "polyglot/internal/domain/auth"
	"polyglot/internal/domain/auth/ports"
	"polyglot/internal/infra/storage/postgres"
)

// PostgresCredentialStore persists credentials in the admin_users table.
type PostgresCredentialStore struct {
	db postgres.DB
}

// NewPostgresCredentialStore builds a store on the given pool.
func NewPostgresCredentialStore(db postgres.DB) *PostgresCredentialStore {
	return &PostgresCredentialStore{db: db}
}

func (s *PostgresCredentialStore) Create(ctx context.Context, credential auth.Credential) (auth.Credential, error) {
	query := `
INSERT INTO admin_users (username, password_hash, role, created_at, updated_at)
VALUES ($1, $2, $3, $4, $4)
RETURNING username, password_hash, role, created_at, updated_at
`
	var created auth.Credential
	var role string
	err := s.db.QueryRow(ctx, query,
		credential.Username,
		credential.PasswordHash,
		string(credential.Role),
		credential.CreatedAt,
	).Scan(&created.Username, &created.PasswordHash, &role, &created.CreatedAt, &created.UpdatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return auth.Credential{}, auth.ErrCredentialExists
		}
		return auth.Credential{}, fmt.Errorf("insert credential: %w", err)
	}
	created.Role = auth.Role(role)
	return created, nil
}

func (s *PostgresCredentialStore) FindByUsername(ctx context.Context, username string) (auth.Credential, error) {
	query := `
SELECT username, password_hash, role, created_at, updated_at
FROM admin_users
WHERE username = $1
`
	var credential auth.Credential
	var role string
	err := s.db.QueryRow(ctx, query, username).Scan(
		&credential.Username,
		&credential.PasswordHash,
		&role,
		&credential.CreatedAt,
		&credential.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return auth.Credential{}, auth.ErrCredentialNotFound
		}
		return auth.Credential{}, fmt.Errorf("select credential: %w", err)
	}
	credential.Role = auth.Role(role)
	return credential, nil
}

func (s *PostgresCredentialStore) UpdatePassword(ctx context.Context, username, passwordHash string, updatedAt time.Time) error {
	tag, err := s.db.Exec(ctx, `UPDATE admin_users SET password_hash = $2, updated_at = $3 WHERE username = $1`, username, passwordHash, updatedAt)
	if err != nil {
		return fmt.Errorf("update credential: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return auth.ErrCredentialNotFound
	}
	return nil
}

var _ ports.CredentialStore = (*PostgresCredentialStore)(nil)
