package identity

import (
	"context"
	"fmt"
)

// EnsureSchema creates the identity schema and tables if they are missing.
// It is idempotent and meant for development and integration tests;
// production databases are migrated out of band.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	const op = "identity.EnsureSchema"

	if s == nil || s.pool == nil {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}

	users := pgIdent(s.schema, "users")
	creds := pgIdent(s.schema, "user_credentials")
	resets := pgIdent(s.schema, "password_reset_tokens")
	onboarding := pgIdent(s.schema, "onboarding")

	ddl := fmt.Sprintf(`
CREATE SCHEMA IF NOT EXISTS %s;

CREATE TABLE IF NOT EXISTS %s (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL,
  email_norm TEXT NOT NULL,
  first_name TEXT NOT NULL,
  last_name TEXT NOT NULL,
  birth_date DATE NULL,
  google_id TEXT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),

  CONSTRAINT chk_users_id_ulid_len CHECK (char_length(id) = 26),
  CONSTRAINT uq_users_email_norm UNIQUE (email_norm),
  CONSTRAINT uq_users_google_id UNIQUE (google_id)
);

CREATE TABLE IF NOT EXISTS %s (
  user_id TEXT PRIMARY KEY REFERENCES %s(id) ON DELETE CASCADE,
  password_hash TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS %s (
  token_hash TEXT PRIMARY KEY,
  user_id TEXT NOT NULL REFERENCES %s(id) ON DELETE CASCADE,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  expires_at TIMESTAMPTZ NOT NULL,
  used_at TIMESTAMPTZ NULL,

  CONSTRAINT chk_reset_token_hash_len CHECK (char_length(token_hash) = 64),
  CONSTRAINT chk_reset_expires_after_created CHECK (expires_at > created_at)
);

CREATE INDEX IF NOT EXISTS idx_reset_tokens_user_id ON %s (user_id);

CREATE TABLE IF NOT EXISTS %s (
  user_id TEXT PRIMARY KEY REFERENCES %s(id) ON DELETE CASCADE,
  answers JSONB NOT NULL,
  completed_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
);
`, pgIdent1(s.schema), users, creds, users, resets, users, resets, onboarding, users)

	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
