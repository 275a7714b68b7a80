package postgres

import (
	"context"
	"fmt"

	backoff "github.com/cenkalti/backoff/v4"
)

// Schema lists the statements applied by Migrate, in order. Each is idempotent.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS admin_users (
    username TEXT PRIMARY KEY,
    password_hash TEXT NOT NULL,
    role TEXT NOT NULL DEFAULT 'admin',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE TABLE IF NOT EXISTS products (
    id BIGSERIAL PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE TABLE IF NOT EXISTS feedback (
    id BIGSERIAL PRIMARY KEY,
    original_text TEXT NOT NULL,
    translated_text TEXT,
    sentiment TEXT NOT NULL,
    product TEXT,
    language TEXT,
    idempotency_key TEXT UNIQUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE INDEX IF NOT EXISTS feedback_created_at_idx ON feedback (created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
)`,
}

// Migrate applies Schema, retrying the whole batch with backoff while the database
// is still starting up.
func Migrate(ctx context.Context, db DB, retries uint64) error {
	apply := func() error {
		for i, stmt := range Schema {
			if _, err := db.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("schema statement %d: %w", i+1, err)
			}
		}
		return nil
	}
	return backoff.Retry(apply, newBackOff(ctx, retries))
}
