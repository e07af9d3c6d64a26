package identity

import (
	"context"
	"strings"
	"sync"
	"time"

	"cronapp/cmd/security/password"
	"cronapp/cmd/security/token"
)

// MemoryStore is an in-process Store used for development and tests.
// All state is lost on restart.
type MemoryStore struct {
	passwords password.Config

	mu       sync.Mutex
	users    map[string]*memUser // by id
	byEmail  map[string]string   // email_norm -> id
	byGoogle map[string]string   // google_id -> id
	resets   map[string]*memReset

	onboarding map[string]Onboarding // by user id
}

type memUser struct {
	user User
	hash string
}

type memReset struct {
	userID    string
	expiresAt time.Time
	usedAt    *time.Time
}

// NewMemoryStore returns an empty MemoryStore hashing passwords with passwords.
func NewMemoryStore(passwords password.Config) *MemoryStore {
	return &MemoryStore{
		passwords: passwords,
		users:     make(map[string]*memUser),
		byEmail:   make(map[string]string),
		byGoogle:  make(map[string]string),
		resets:    make(map[string]*memReset),

		onboarding: make(map[string]Onboarding),
	}
}

var _ Store = (*MemoryStore)(nil)

// CreateUser implements Store.
func (s *MemoryStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	u, hash, err := newUser(op, in, s.passwords)
	if err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byEmail[u.EmailNorm]; taken {
		return User{}, ConflictError{Op: op, Field: "email"}
	}
	s.users[u.ID] = &memUser{user: u, hash: hash}
	s.byEmail[u.EmailNorm] = u.ID
	return u, nil
}

// GetUserByID implements Store.
func (s *MemoryStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	const op = "identity.GetUserByID"
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	mu, ok := s.users[strings.TrimSpace(userID)]
	if !ok {
		return User{}, NotFoundError{Op: op, Resource: "user"}
	}
	return mu.user, nil
}

// GetUserAuthByEmail implements Store.
func (s *MemoryStore) GetUserAuthByEmail(ctx context.Context, email string) (UserAuth, error) {
	const op = "identity.GetUserAuthByEmail"
	if err := ctx.Err(); err != nil {
		return UserAuth{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[NormalizeEmail(email)]
	if !ok {
		return UserAuth{}, NotFoundError{Op: op, Resource: "user"}
	}
	mu := s.users[id]
	return UserAuth{User: mu.user, PasswordHash: mu.hash}, nil
}

// GetOrCreateGoogleUser implements Store.
func (s *MemoryStore) GetOrCreateGoogleUser(ctx context.Context, in GoogleUserInput) (User, bool, error) {
	const op = "identity.GetOrCreateGoogleUser"
	if err := ctx.Err(); err != nil {
		return User{}, false, err
	}

	fresh, err := newGoogleUser(op, in)
	if err != nil {
		return User{}, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byGoogle[*fresh.GoogleID]; ok {
		return s.users[id].user, false, nil
	}

	if id, ok := s.byEmail[fresh.EmailNorm]; ok {
		mu := s.users[id]
		if mu.user.GoogleID != nil && *mu.user.GoogleID != *fresh.GoogleID {
			return User{}, false, ConflictError{Op: op, Field: "google_id"}
		}
		gid := *fresh.GoogleID
		mu.user.GoogleID = &gid
		mu.user.UpdatedAt = fresh.UpdatedAt
		s.byGoogle[gid] = id
		return mu.user, false, nil
	}

	s.users[fresh.ID] = &memUser{user: fresh}
	s.byEmail[fresh.EmailNorm] = fresh.ID
	s.byGoogle[*fresh.GoogleID] = fresh.ID
	return fresh, true, nil
}

// UpdateProfile implements Store.
func (s *MemoryStore) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (User, error) {
	const op = "identity.UpdateProfile"
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	now := nowOr(in.Now)
	fields, err := profileFields(op, in.FirstName, in.LastName, in.Email, in.BirthDate, now)
	if err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	mu, ok := s.users[strings.TrimSpace(userID)]
	if !ok {
		return User{}, NotFoundError{Op: op, Resource: "user"}
	}
	if owner, taken := s.byEmail[fields.EmailNorm]; taken && owner != mu.user.ID {
		return User{}, ConflictError{Op: op, Field: "email"}
	}

	delete(s.byEmail, mu.user.EmailNorm)
	s.byEmail[fields.EmailNorm] = mu.user.ID

	mu.user.Email = fields.Email
	mu.user.EmailNorm = fields.EmailNorm
	mu.user.FirstName = fields.FirstName
	mu.user.LastName = fields.LastName
	mu.user.BirthDate = fields.BirthDate
	mu.user.UpdatedAt = now
	return mu.user, nil
}

// UpdatePassword implements Store.
func (s *MemoryStore) UpdatePassword(ctx context.Context, userID, newPassword string, now time.Time) error {
	const op = "identity.UpdatePassword"
	if err := ctx.Err(); err != nil {
		return err
	}

	hash, err := s.passwords.Hash(newPassword)
	if err != nil {
		return invalid(op, err.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	mu, ok := s.users[strings.TrimSpace(userID)]
	if !ok {
		return NotFoundError{Op: op, Resource: "user"}
	}
	mu.hash = hash
	mu.user.HasPassword = true
	mu.user.UpdatedAt = nowOr(now)
	return nil
}

// CreateResetToken implements Store.
func (s *MemoryStore) CreateResetToken(ctx context.Context, userID string, ttl time.Duration, now time.Time) (string, error) {
	const op = "identity.CreateResetToken"
	if err := ctx.Err(); err != nil {
		return "", err
	}
	now = nowOr(now)

	plain, err := token.NewOpaque(token.DefaultBytes)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	userID = strings.TrimSpace(userID)
	if _, ok := s.users[userID]; !ok {
		return "", NotFoundError{Op: op, Resource: "user"}
	}

	for _, r := range s.resets {
		if r.userID == userID && r.usedAt == nil {
			used := now
			r.usedAt = &used
		}
	}
	s.resets[token.HashHex(plain)] = &memReset{userID: userID, expiresAt: now.Add(resetTTL(ttl))}
	return plain, nil
}

// ConsumeResetToken implements Store.
func (s *MemoryStore) ConsumeResetToken(ctx context.Context, plain string, now time.Time) (string, error) {
	const op = "identity.ConsumeResetToken"
	if err := ctx.Err(); err != nil {
		return "", err
	}
	plain = strings.TrimSpace(plain)
	if plain == "" {
		return "", invalid(op, "missing token")
	}
	now = nowOr(now)

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.resets[token.HashHex(plain)]
	if !ok || r.usedAt != nil || !r.expiresAt.After(now) {
		return "", notActiveReset()
	}
	used := now
	r.usedAt = &used
	return r.userID, nil
}

// SaveOnboarding implements Store.
func (s *MemoryStore) SaveOnboarding(ctx context.Context, userID string, answers OnboardingAnswers, now time.Time) (Onboarding, error) {
	const op = "identity.SaveOnboarding"
	if err := ctx.Err(); err != nil {
		return Onboarding{}, err
	}

	answers, err := normalizeOnboarding(op, answers)
	if err != nil {
		return Onboarding{}, err
	}
	now = nowOr(now)

	s.mu.Lock()
	defer s.mu.Unlock()

	userID = strings.TrimSpace(userID)
	if _, ok := s.users[userID]; !ok {
		return Onboarding{}, NotFoundError{Op: op, Resource: "user"}
	}

	ob, ok := s.onboarding[userID]
	if !ok {
		ob = Onboarding{UserID: userID, CompletedAt: now}
	}
	ob.Answers = answers
	ob.UpdatedAt = now
	s.onboarding[userID] = ob
	return ob, nil
}

// GetOnboarding implements Store.
func (s *MemoryStore) GetOnboarding(ctx context.Context, userID string) (Onboarding, error) {
	const op = "identity.GetOnboarding"
	if err := ctx.Err(); err != nil {
		return Onboarding{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ob, ok := s.onboarding[strings.TrimSpace(userID)]
	if !ok {
		return Onboarding{}, NotFoundError{Op: op, Resource: "onboarding"}
	}
	return ob, nil
}
