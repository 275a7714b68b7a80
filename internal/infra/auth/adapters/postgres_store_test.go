package adapters

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"

	auth "polyglot/internal/domain/auth"
)

func TestPostgresCredentialStoreFindByUsername(t *testing.T) {
	pool, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to build pgx mock: %v", err)
	}
	defer pool.Close()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows([]string{"username", "password_hash", "role", "created_at", "updated_at"}).
		AddRow("admin", "argon2id$hash", "admin", now, now)
	pool.ExpectQuery("SELECT username, password_hash, role").WithArgs("admin").WillReturnRows(rows)

	store := NewPostgresCredentialStore(pool)
	credential, err := store.FindByUsername(context.Background(), "admin")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if credential.Role != auth.RoleAdmin || credential.PasswordHash != "argon2id$hash" {
		t.Fatalf("unexpected credential: %+v", credential)
	}
	if err := pool.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresCredentialStoreMissingUser(t *testing.T) {
	pool, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to build pgx mock: %v", err)
	}
	defer pool.Close()

	pool.ExpectQuery("SELECT username, password_hash, role").WithArgs("ghost").WillReturnError(pgx.ErrNoRows)

	_, err = NewPostgresCredentialStore(pool).FindByUsername(context.Background(), "ghost")
	if !errors.Is(err, auth.ErrCredentialNotFound) {
		t.Fatalf("expected ErrCredentialNotFound, got %v", err)
	}
}

func TestPostgresCredentialStoreCreateDuplicate(t *testing.T) {
	pool, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to build pgx mock: %v", err)
	}
	defer pool.Close()

	now := time.Now()
	pool.ExpectQuery("INSERT INTO admin_users").
		WithArgs("admin", "hash", "admin", now).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err = NewPostgresCredentialStore(pool).Create(context.Background(), auth.Credential{
		Username: "admin", PasswordHash: "hash", Role: auth.RoleAdmin, CreatedAt: now,
	})
	if !errors.Is(err, auth.ErrCredentialExists) {
		t.Fatalf("expected ErrCredentialExists, got %v", err)
	}
}

func TestPostgresCredentialStoreUpdatePassword(t *testing.T) {
	pool, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to build pgx mock: %v", err)
	}
	defer pool.Close()

	now := time.Now()
	pool.ExpectExec("UPDATE admin_users").WithArgs("admin", "new-hash", now).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	pool.ExpectExec("UPDATE admin_users").WithArgs("ghost", "new-hash", now).WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	store := NewPostgresCredentialStore(pool)
	if err := store.UpdatePassword(context.Background(), "admin", "new-hash", now); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := store.UpdatePassword(context.Background(), "ghost", "new-hash", now); !errors.Is(err, auth.ErrCredentialNotFound) {
		t.Fatalf("expected ErrCredentialNotFound, got %v", err)
	}
}
