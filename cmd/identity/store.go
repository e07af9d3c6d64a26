package identity

import (
	"context"
	"strings"
	"time"

	"cronapp/cmd/security/password"
)

// User is cronapp's account record.
type User struct {
	ID        string
	Email     string
	EmailNorm string

	FirstName string
	LastName  string
	BirthDate *time.Time

	// GoogleID is set once the account has signed in with Google.
	GoogleID *string

	// HasPassword is false for accounts created through Google sign-in only.
	HasPassword bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserAuth is a user together with its stored password hash. PasswordHash
// is empty when the account has no password.
type UserAuth struct {
	User         User
	PasswordHash string
}

// CreateUserInput describes a password registration.
type CreateUserInput struct {
	Email     string
	FirstName string
	LastName  string
	BirthDate *time.Time
	Password  string
	Now       time.Time
}

// GoogleUserInput carries the profile asserted by a Google sign-in.
type GoogleUserInput struct {
	GoogleID  string
	Email     string
	FirstName string
	LastName  string
	Now       time.Time
}

// ProfileInput replaces the editable profile fields of a user.
type ProfileInput struct {
	FirstName string
	LastName  string
	Email     string
	BirthDate *time.Time
	Now       time.Time
}

// Store is the identity persistence boundary.
type Store interface {
	CreateUser(ctx context.Context, in CreateUserInput) (User, error)
	GetUserByID(ctx context.Context, userID string) (User, error)
	GetUserAuthByEmail(ctx context.Context, email string) (UserAuth, error)

	// GetOrCreateGoogleUser links the Google account to an existing user with
	// the same email, or creates a password-less user. created reports which.
	GetOrCreateGoogleUser(ctx context.Context, in GoogleUserInput) (u User, created bool, err error)

	// UpdateProfile returns a ConflictError on "email" when another user
	// already owns the new address.
	UpdateProfile(ctx context.Context, userID string, in ProfileInput) (User, error)
	UpdatePassword(ctx context.Context, userID, newPassword string, now time.Time) error

	// CreateResetToken stores a hashed one-time token and returns the plain
	// value. Older unused tokens of the same user stop working.
	CreateResetToken(ctx context.Context, userID string, ttl time.Duration, now time.Time) (string, error)

	// ConsumeResetToken marks the token used and returns its user. Unknown,
	// expired, used and superseded tokens all return ErrNotActive.
	ConsumeResetToken(ctx context.Context, plain string, now time.Time) (string, error)

	// SaveOnboarding stores the user's questionnaire, replacing earlier
	// answers. CompletedAt keeps the first submission time.
	SaveOnboarding(ctx context.Context, userID string, answers OnboardingAnswers, now time.Time) (Onboarding, error)

	// GetOnboarding returns a NotFoundError on "onboarding" until the user
	// has submitted the questionnaire.
	GetOnboarding(ctx context.Context, userID string) (Onboarding, error)
}

const (
	defaultResetTTL = 6 * time.Minute
	maxResetTTL     = 24 * time.Hour
)

func resetTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return defaultResetTTL
	}
	if ttl > maxResetTTL {
		return maxResetTTL
	}
	return ttl
}

func nowOr(now time.Time) time.Time {
	if now.IsZero() {
		return time.Now().UTC()
	}
	return now.UTC()
}

// newUser validates a registration and hashes its password.
func newUser(op string, in CreateUserInput, passwords password.Config) (User, string, error) {
	now := nowOr(in.Now)

	u, err := profileFields(op, in.FirstName, in.LastName, in.Email, in.BirthDate, now)
	if err != nil {
		return User{}, "", err
	}
	if strings.TrimSpace(in.Password) == "" {
		return User{}, "", invalid(op, "password is required")
	}

	hash, err := passwords.Hash(in.Password)
	if err != nil {
		return User{}, "", invalid(op, err.Error())
	}

	id, err := NewULID(now)
	if err != nil {
		return User{}, "", err
	}

	u.ID = id
	u.HasPassword = true
	u.CreatedAt = now
	u.UpdatedAt = now
	return u, hash, nil
}

// newGoogleUser validates a Google sign-in and builds the user it would create.
func newGoogleUser(op string, in GoogleUserInput) (User, error) {
	now := nowOr(in.Now)

	googleID := strings.TrimSpace(in.GoogleID)
	if googleID == "" {
		return User{}, invalid(op, "google_id is required")
	}

	first := NormalizeName(in.FirstName)
	if first == "" {
		first = "Google"
	}
	last := NormalizeName(in.LastName)
	if last == "" {
		last = "User"
	}

	u, err := profileFields(op, first, last, in.Email, nil, now)
	if err != nil {
		return User{}, err
	}

	id, err := NewULID(now)
	if err != nil {
		return User{}, err
	}

	u.ID = id
	u.GoogleID = &googleID
	u.CreatedAt = now
	u.UpdatedAt = now
	return u, nil
}

func profileFields(op, firstName, lastName, email string, birth *time.Time, now time.Time) (User, error) {
	first := NormalizeName(firstName)
	last := NormalizeName(lastName)
	if !validName(first) {
		return User{}, invalid(op, "first_name is required")
	}
	if !validName(last) {
		return User{}, invalid(op, "last_name is required")
	}

	email = strings.TrimSpace(email)
	if !ValidEmail(email) {
		return User{}, invalid(op, "invalid email")
	}

	birth = dateOnly(birth)
	if !validBirthDate(birth, now) {
		return User{}, invalid(op, "invalid birth_date")
	}

	return User{
		Email:     email,
		EmailNorm: NormalizeEmail(email),
		FirstName: first,
		LastName:  last,
		BirthDate: birth,
	}, nil
}
