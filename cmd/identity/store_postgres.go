package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"cronapp/cmd/security/password"
	"cronapp/cmd/security/token"
)

// PostgresStore implements Store over PostgreSQL.
//
// The pgx pool is owned by the caller and is never closed here. Schema and
// table identifiers are quoted with pgx.Identifier. Unique and foreign key
// violations are mapped to ConflictError and NotFoundError.
type PostgresStore struct {
	pool      *pgxpool.Pool
	schema    string
	passwords password.Config
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// DefaultSchema is the Postgres schema used when WithSchema is not given.
const DefaultSchema = "cronapp"

// WithSchema sets the Postgres schema used by the store.
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("identity: empty schema")
		}
		if !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("identity: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore hashing passwords with passwords.
func NewPostgresStore(pool *pgxpool.Pool, passwords password.Config, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:      pool,
		schema:    DefaultSchema,
		passwords: passwords,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("identity: nil pool")
	}
	return st, nil
}

var _ Store = (*PostgresStore)(nil)

// CreateUser inserts the user and its credentials in one transaction.
func (s *PostgresStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"

	if err := s.ready(ctx, op); err != nil {
		return User{}, err
	}

	u, hash, err := newUser(op, in, s.passwords)
	if err != nil {
		return User{}, err
	}

	err = pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		if err := s.insertUser(ctx, tx, u); err != nil {
			return err
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO `+pgIdent(s.schema, "user_credentials")+` (user_id, password_hash, created_at, updated_at)
			 VALUES ($1, $2, $3, $3)`,
			u.ID, hash, u.CreatedAt,
		)
		return err
	})
	if err != nil {
		if field, ok := pgClassifyUniqueViolation(err); ok {
			return User{}, ConflictError{Op: op, Field: field}
		}
		return User{}, err
	}
	return u, nil
}

// GetUserByID implements Store.
func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	const op = "identity.GetUserByID"

	if err := s.ready(ctx, op); err != nil {
		return User{}, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return User{}, invalid(op, "missing user_id")
	}

	var hash *string
	u, err := scanUser(s.pool.QueryRow(ctx, s.selectUser("u.id = $1"), userID), &hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, NotFoundError{Op: op, Resource: "user"}
		}
		return User{}, err
	}
	return u, nil
}

// GetUserAuthByEmail implements Store.
func (s *PostgresStore) GetUserAuthByEmail(ctx context.Context, email string) (UserAuth, error) {
	const op = "identity.GetUserAuthByEmail"

	if err := s.ready(ctx, op); err != nil {
		return UserAuth{}, err
	}
	norm := NormalizeEmail(email)
	if norm == "" {
		return UserAuth{}, invalid(op, "missing email")
	}

	var hash *string
	u, err := scanUser(s.pool.QueryRow(ctx, s.selectUser("u.email_norm = $1"), norm), &hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserAuth{}, NotFoundError{Op: op, Resource: "user"}
		}
		return UserAuth{}, err
	}

	out := UserAuth{User: u}
	if hash != nil {
		out.PasswordHash = *hash
	}
	return out, nil
}

// GetOrCreateGoogleUser implements Store. The email row is locked while the
// Google ID is linked so concurrent sign-ins for one address serialize.
func (s *PostgresStore) GetOrCreateGoogleUser(ctx context.Context, in GoogleUserInput) (User, bool, error) {
	const op = "identity.GetOrCreateGoogleUser"

	if err := s.ready(ctx, op); err != nil {
		return User{}, false, err
	}

	fresh, err := newGoogleUser(op, in)
	if err != nil {
		return User{}, false, err
	}

	var (
		out     User
		created bool
	)
	err = pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		var hash *string

		u, err := scanUser(tx.QueryRow(ctx, s.selectUser("u.google_id = $1"), *fresh.GoogleID), &hash)
		if err == nil {
			out = u
			return nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return err
		}

		u, err = scanUser(tx.QueryRow(ctx, s.selectUser("u.email_norm = $1")+` FOR UPDATE OF u`, fresh.EmailNorm), &hash)
		switch {
		case err == nil:
			if u.GoogleID != nil && *u.GoogleID != *fresh.GoogleID {
				return ConflictError{Op: op, Field: "google_id"}
			}
			if _, err := tx.Exec(ctx,
				`UPDATE `+pgIdent(s.schema, "users")+` SET google_id = $1, updated_at = $2 WHERE id = $3`,
				*fresh.GoogleID, fresh.UpdatedAt, u.ID,
			); err != nil {
				return err
			}
			u.GoogleID = fresh.GoogleID
			u.UpdatedAt = fresh.UpdatedAt
			out = u
			return nil
		case errors.Is(err, pgx.ErrNoRows):
			if err := s.insertUser(ctx, tx, fresh); err != nil {
				return err
			}
			out, created = fresh, true
			return nil
		default:
			return err
		}
	})
	if err != nil {
		if field, ok := pgClassifyUniqueViolation(err); ok {
			return User{}, false, ConflictError{Op: op, Field: field}
		}
		return User{}, false, err
	}
	return out, created, nil
}

// UpdateProfile implements Store.
func (s *PostgresStore) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (User, error) {
	const op = "identity.UpdateProfile"

	if err := s.ready(ctx, op); err != nil {
		return User{}, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return User{}, invalid(op, "missing user_id")
	}

	now := nowOr(in.Now)
	fields, err := profileFields(op, in.FirstName, in.LastName, in.Email, in.BirthDate, now)
	if err != nil {
		return User{}, err
	}

	var out User
	err = pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		var taken bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM `+pgIdent(s.schema, "users")+` WHERE email_norm = $1 AND id <> $2)`,
			fields.EmailNorm, userID,
		).Scan(&taken); err != nil {
			return err
		}
		if taken {
			return ConflictError{Op: op, Field: "email"}
		}

		ct, err := tx.Exec(ctx,
			`UPDATE `+pgIdent(s.schema, "users")+`
			    SET email = $1, email_norm = $2, first_name = $3, last_name = $4, birth_date = $5, updated_at = $6
			  WHERE id = $7`,
			fields.Email, fields.EmailNorm, fields.FirstName, fields.LastName, fields.BirthDate, now, userID,
		)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			return NotFoundError{Op: op, Resource: "user"}
		}

		var hash *string
		out, err = scanUser(tx.QueryRow(ctx, s.selectUser("u.id = $1"), userID), &hash)
		return err
	})
	if err != nil {
		if field, ok := pgClassifyUniqueViolation(err); ok {
			return User{}, ConflictError{Op: op, Field: field}
		}
		return User{}, err
	}
	return out, nil
}

// UpdatePassword implements Store. Accounts without a password get one.
func (s *PostgresStore) UpdatePassword(ctx context.Context, userID, newPassword string, now time.Time) error {
	const op = "identity.UpdatePassword"

	if err := s.ready(ctx, op); err != nil {
		return err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return invalid(op, "missing user_id")
	}

	hash, err := s.passwords.Hash(newPassword)
	if err != nil {
		return invalid(op, err.Error())
	}
	now = nowOr(now)

	_, err = s.pool.Exec(ctx,
		`INSERT INTO `+pgIdent(s.schema, "user_credentials")+` (user_id, password_hash, created_at, updated_at)
		 VALUES ($1, $2, $3, $3)
		 ON CONFLICT (user_id) DO UPDATE
		    SET password_hash = EXCLUDED.password_hash,
		        updated_at = EXCLUDED.updated_at`,
		userID, hash, now,
	)
	if err != nil {
		if pgIsForeignKeyViolation(err) {
			return NotFoundError{Op: op, Resource: "user"}
		}
		return err
	}

	_, err = s.pool.Exec(ctx,
		`UPDATE `+pgIdent(s.schema, "users")+` SET updated_at = $1 WHERE id = $2`,
		now, userID,
	)
	return err
}

// CreateResetToken implements Store.
func (s *PostgresStore) CreateResetToken(ctx context.Context, userID string, ttl time.Duration, now time.Time) (string, error) {
	const op = "identity.CreateResetToken"

	if err := s.ready(ctx, op); err != nil {
		return "", err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", invalid(op, "missing user_id")
	}
	now = nowOr(now)

	plain, err := token.NewOpaque(token.DefaultBytes)
	if err != nil {
		return "", err
	}
	resets := pgIdent(s.schema, "password_reset_tokens")

	err = pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`UPDATE `+resets+` SET used_at = $1 WHERE user_id = $2 AND used_at IS NULL`,
			now, userID,
		); err != nil {
			return err
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO `+resets+` (token_hash, user_id, created_at, expires_at) VALUES ($1, $2, $3, $4)`,
			token.HashHex(plain), userID, now, now.Add(resetTTL(ttl)),
		)
		return err
	})
	if err != nil {
		if pgIsForeignKeyViolation(err) {
			return "", NotFoundError{Op: op, Resource: "user"}
		}
		return "", err
	}
	return plain, nil
}

// ConsumeResetToken implements Store. The single UPDATE makes consumption
// atomic: of two concurrent requests only one gets the user id.
func (s *PostgresStore) ConsumeResetToken(ctx context.Context, plain string, now time.Time) (string, error) {
	const op = "identity.ConsumeResetToken"

	if err := s.ready(ctx, op); err != nil {
		return "", err
	}
	plain = strings.TrimSpace(plain)
	if plain == "" {
		return "", invalid(op, "missing token")
	}
	now = nowOr(now)

	var userID string
	err := s.pool.QueryRow(ctx,
		`UPDATE `+pgIdent(s.schema, "password_reset_tokens")+`
		    SET used_at = $1
		  WHERE token_hash = $2
		    AND used_at IS NULL
		    AND expires_at > $1
		RETURNING user_id`,
		now, token.HashHex(plain),
	).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", notActiveReset()
		}
		return "", err
	}
	return userID, nil
}

// SaveOnboarding implements Store. Answers are kept as one JSONB document.
func (s *PostgresStore) SaveOnboarding(ctx context.Context, userID string, answers OnboardingAnswers, now time.Time) (Onboarding, error) {
	const op = "identity.SaveOnboarding"

	if err := s.ready(ctx, op); err != nil {
		return Onboarding{}, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Onboarding{}, invalid(op, "missing user_id")
	}

	answers, err := normalizeOnboarding(op, answers)
	if err != nil {
		return Onboarding{}, err
	}
	doc, err := json.Marshal(answers)
	if err != nil {
		return Onboarding{}, fmt.Errorf("%s: %w", op, err)
	}
	now = nowOr(now)

	out := Onboarding{UserID: userID, Answers: answers}
	err = s.pool.QueryRow(ctx,
		`INSERT INTO `+pgIdent(s.schema, "onboarding")+` (user_id, answers, completed_at, updated_at)
		 VALUES ($1, $2, $3, $3)
		 ON CONFLICT (user_id) DO UPDATE
		    SET answers = EXCLUDED.answers,
		        updated_at = EXCLUDED.updated_at
		 RETURNING completed_at, updated_at`,
		userID, doc, now,
	).Scan(&out.CompletedAt, &out.UpdatedAt)
	if err != nil {
		if pgIsForeignKeyViolation(err) {
			return Onboarding{}, NotFoundError{Op: op, Resource: "user"}
		}
		return Onboarding{}, err
	}
	return out, nil
}

// GetOnboarding implements Store.
func (s *PostgresStore) GetOnboarding(ctx context.Context, userID string) (Onboarding, error) {
	const op = "identity.GetOnboarding"

	if err := s.ready(ctx, op); err != nil {
		return Onboarding{}, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Onboarding{}, invalid(op, "missing user_id")
	}

	out := Onboarding{UserID: userID}
	var doc []byte
	err := s.pool.QueryRow(ctx,
		`SELECT answers, completed_at, updated_at
		   FROM `+pgIdent(s.schema, "onboarding")+`
		  WHERE user_id = $1`,
		userID,
	).Scan(&doc, &out.CompletedAt, &out.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Onboarding{}, NotFoundError{Op: op, Resource: "onboarding"}
		}
		return Onboarding{}, err
	}
	if err := json.Unmarshal(doc, &out.Answers); err != nil {
		return Onboarding{}, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// ---- helpers ----

func (s *PostgresStore) ready(ctx context.Context, op string) error {
	if s == nil || s.pool == nil {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
	return ctx.Err()
}

func (s *PostgresStore) insertUser(ctx context.Context, tx pgx.Tx, u User) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO `+pgIdent(s.schema, "users")+` (
		     id, email, email_norm, first_name, last_name, birth_date, google_id, created_at, updated_at
		   ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		u.ID, u.Email, u.EmailNorm, u.FirstName, u.LastName, u.BirthDate, u.GoogleID, u.CreatedAt, u.UpdatedAt,
	)
	return err
}

// selectUser returns the user query joined with credentials, filtered by where.
func (s *PostgresStore) selectUser(where string) string {
	return `SELECT u.id, u.email, u.email_norm, u.first_name, u.last_name, u.birth_date, u.google_id,
	               u.created_at, u.updated_at, c.password_hash
	          FROM ` + pgIdent(s.schema, "users") + ` u
	          LEFT JOIN ` + pgIdent(s.schema, "user_credentials") + ` c ON c.user_id = u.id
	         WHERE ` + where
}

func scanUser(row pgx.Row, hash **string) (User, error) {
	var u User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.EmailNorm,
		&u.FirstName,
		&u.LastName,
		&u.BirthDate,
		&u.GoogleID,
		&u.CreatedAt,
		&u.UpdatedAt,
		hash,
	)
	if err != nil {
		return User{}, err
	}
	u.HasPassword = *hash != nil
	return u, nil
}

// pgIdent safely quotes a schema-qualified identifier: "schema"."name".
func pgIdent(schema, name string) string {
	return pgx.Identifier{schema, name}.Sanitize()
}

func pgIdent1(ident string) string {
	return pgx.Identifier{ident}.Sanitize()
}

func pgIsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23503" // foreign_key_violation
}

func pgClassifyUniqueViolation(err error) (field string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	if pgErr.Code != "23505" { // unique_violation
		return "", false
	}

	c := strings.ToLower(strings.TrimSpace(pgErr.ConstraintName))
	switch {
	case c == "uq_users_email_norm", strings.Contains(c, "email"):
		return "email", true
	case c == "uq_users_google_id", strings.Contains(c, "google"):
		return "google_id", true
	default:
		return "unique", true
	}
}
