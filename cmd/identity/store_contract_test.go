package identity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cronapp/cmd/security/password"
)

const testPassword = "Correct-Horse-42"

func testPasswords() password.Config {
	cfg := password.DefaultConfig()
	cfg.Params.MemoryKiB = 8 * 1024
	cfg.Params.Iterations = 1
	cfg.Params.Parallelism = 1
	return cfg
}

var testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func mustCreateUser(t *testing.T, s Store, email string) User {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	u, err := s.CreateUser(ctx, CreateUserInput{
		Email:     email,
		FirstName: "Ana",
		LastName:  "García",
		Password:  testPassword,
		Now:       testNow,
	})
	if err != nil {
		t.Fatalf("CreateUser(%s): %v", email, err)
	}
	return u
}

// runStoreContract exercises behavior every Store implementation must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("CreateUser_NormalizesAndHashes", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		birth := time.Date(1990, 5, 17, 13, 45, 0, 0, time.UTC)
		u, err := s.CreateUser(ctx, CreateUserInput{
			Email:     "  Ana@Example.com ",
			FirstName: "  Ana   María ",
			LastName:  "García",
			BirthDate: &birth,
			Password:  testPassword,
			Now:       testNow,
		})
		if err != nil {
			t.Fatalf("CreateUser: %v", err)
		}
		if len(u.ID) != 26 {
			t.Fatalf("id=%q want ULID", u.ID)
		}
		if u.Email != "Ana@Example.com" || u.EmailNorm != "ana@example.com" {
			t.Fatalf("email=%q norm=%q", u.Email, u.EmailNorm)
		}
		if u.FirstName != "Ana María" {
			t.Fatalf("first_name=%q", u.FirstName)
		}
		if u.BirthDate == nil || !u.BirthDate.Equal(time.Date(1990, 5, 17, 0, 0, 0, 0, time.UTC)) {
			t.Fatalf("birth_date=%v", u.BirthDate)
		}
		if !u.HasPassword {
			t.Fatalf("expected HasPassword")
		}

		auth, err := s.GetUserAuthByEmail(ctx, "ANA@example.COM")
		if err != nil {
			t.Fatalf("GetUserAuthByEmail: %v", err)
		}
		if auth.User.ID != u.ID {
			t.Fatalf("id=%q want=%q", auth.User.ID, u.ID)
		}
		ok, err := testPasswords().Verify(auth.PasswordHash, testPassword)
		if err != nil || !ok {
			t.Fatalf("stored hash does not verify: ok=%v err=%v", ok, err)
		}
	})

	t.Run("CreateUser_ConflictEmail_CaseInsensitive", func(t *testing.T) {
		s := newStore(t)
		mustCreateUser(t, s, "User@Example.com")

		_, err := s.CreateUser(context.Background(), CreateUserInput{
			Email:     "user@EXAMPLE.com",
			FirstName: "Other",
			LastName:  "Person",
			Password:  testPassword,
			Now:       testNow,
		})
		if !IsConflict(err) {
			t.Fatalf("expected conflict, got %v", err)
		}
	})

	t.Run("CreateUser_InvalidInput", func(t *testing.T) {
		s := newStore(t)
		future := testNow.Add(48 * time.Hour)

		cases := []CreateUserInput{
			{Email: "not-an-email", FirstName: "A", LastName: "B", Password: testPassword},
			{Email: "a@example.com", FirstName: "", LastName: "B", Password: testPassword},
			{Email: "a@example.com", FirstName: "A", LastName: "B", Password: "weak"},
			{Email: "a@example.com", FirstName: "A", LastName: "B", Password: testPassword, BirthDate: &future},
		}
		for i, in := range cases {
			in.Now = testNow
			if _, err := s.CreateUser(context.Background(), in); !IsInvalidInput(err) {
				t.Fatalf("case %d: expected invalid input, got %v", i, err)
			}
		}
	})

	t.Run("GetUser_NotFound", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if _, err := s.GetUserByID(ctx, "01HZZZZZZZZZZZZZZZZZZZZZZZ"); !IsNotFound(err) {
			t.Fatalf("expected not found, got %v", err)
		}
		if _, err := s.GetUserAuthByEmail(ctx, "nobody@example.com"); !IsNotFound(err) {
			t.Fatalf("expected not found, got %v", err)
		}
	})

	t.Run("GoogleUser_CreateThenReuse", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		in := GoogleUserInput{GoogleID: "g-123", Email: "g@example.com", FirstName: "Gabi", Now: testNow}
		u, created, err := s.GetOrCreateGoogleUser(ctx, in)
		if err != nil || !created {
			t.Fatalf("first sign-in: created=%v err=%v", created, err)
		}
		if u.HasPassword || u.GoogleID == nil || *u.GoogleID != "g-123" {
			t.Fatalf("user=%+v", u)
		}
		if u.LastName != "User" {
			t.Fatalf("last_name default=%q", u.LastName)
		}

		again, created, err := s.GetOrCreateGoogleUser(ctx, in)
		if err != nil || created {
			t.Fatalf("second sign-in: created=%v err=%v", created, err)
		}
		if again.ID != u.ID {
			t.Fatalf("id=%q want=%q", again.ID, u.ID)
		}

		auth, err := s.GetUserAuthByEmail(ctx, "g@example.com")
		if err != nil {
			t.Fatalf("GetUserAuthByEmail: %v", err)
		}
		if auth.PasswordHash != "" {
			t.Fatalf("google-only user must not have a password hash")
		}
	})

	t.Run("GoogleUser_LinksExistingEmail", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		existing := mustCreateUser(t, s, "link@example.com")

		u, created, err := s.GetOrCreateGoogleUser(ctx, GoogleUserInput{
			GoogleID: "g-link", Email: "LINK@example.com", FirstName: "X", LastName: "Y", Now: testNow,
		})
		if err != nil || created {
			t.Fatalf("created=%v err=%v", created, err)
		}
		if u.ID != existing.ID || u.GoogleID == nil || *u.GoogleID != "g-link" {
			t.Fatalf("user=%+v", u)
		}
		if u.FirstName != existing.FirstName || !u.HasPassword {
			t.Fatalf("linking must keep profile and password: %+v", u)
		}

		_, _, err = s.GetOrCreateGoogleUser(ctx, GoogleUserInput{
			GoogleID: "g-other", Email: "link@example.com", Now: testNow,
		})
		if !IsConflict(err) {
			t.Fatalf("expected conflict for second google id, got %v", err)
		}
	})

	t.Run("UpdateProfile", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		a := mustCreateUser(t, s, "a@example.com")
		mustCreateUser(t, s, "b@example.com")

		later := testNow.Add(time.Hour)
		u, err := s.UpdateProfile(ctx, a.ID, ProfileInput{
			FirstName: "Alicia", LastName: "Pérez", Email: "A@example.com", Now: later,
		})
		if err != nil {
			t.Fatalf("UpdateProfile own email: %v", err)
		}
		if u.FirstName != "Alicia" || u.Email != "A@example.com" || !u.UpdatedAt.Equal(later) {
			t.Fatalf("user=%+v", u)
		}

		_, err = s.UpdateProfile(ctx, a.ID, ProfileInput{
			FirstName: "Alicia", LastName: "Pérez", Email: "B@example.com", Now: later,
		})
		var ce ConflictError
		if !errors.As(err, &ce) || ce.Field != "email" {
			t.Fatalf("expected email conflict, got %v", err)
		}

		moved, err := s.UpdateProfile(ctx, a.ID, ProfileInput{
			FirstName: "Alicia", LastName: "Pérez", Email: "new@example.com", Now: later,
		})
		if err != nil {
			t.Fatalf("UpdateProfile new email: %v", err)
		}
		if _, err := s.GetUserAuthByEmail(ctx, "a@example.com"); !IsNotFound(err) {
			t.Fatalf("old email must be released, got %v", err)
		}
		if auth, err := s.GetUserAuthByEmail(ctx, "new@example.com"); err != nil || auth.User.ID != moved.ID {
			t.Fatalf("lookup by new email: %+v err=%v", auth.User, err)
		}

		if _, err := s.UpdateProfile(ctx, "01HZZZZZZZZZZZZZZZZZZZZZZZ", ProfileInput{
			FirstName: "X", LastName: "Y", Email: "x@example.com", Now: later,
		}); !IsNotFound(err) {
			t.Fatalf("expected not found, got %v", err)
		}
	})

	t.Run("UpdatePassword", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		u := mustCreateUser(t, s, "pw@example.com")

		if err := s.UpdatePassword(ctx, u.ID, "short", testNow); !IsInvalidInput(err) {
			t.Fatalf("expected invalid input, got %v", err)
		}
		if err := s.UpdatePassword(ctx, u.ID, "Brand-New-Pass-7", testNow); err != nil {
			t.Fatalf("UpdatePassword: %v", err)
		}

		auth, err := s.GetUserAuthByEmail(ctx, "pw@example.com")
		if err != nil {
			t.Fatalf("GetUserAuthByEmail: %v", err)
		}
		if ok, _ := testPasswords().Verify(auth.PasswordHash, "Brand-New-Pass-7"); !ok {
			t.Fatalf("new password does not verify")
		}
		if ok, _ := testPasswords().Verify(auth.PasswordHash, testPassword); ok {
			t.Fatalf("old password still verifies")
		}
	})

	t.Run("ResetToken_SingleUse", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		u := mustCreateUser(t, s, "reset@example.com")

		plain, err := s.CreateResetToken(ctx, u.ID, 6*time.Minute, testNow)
		if err != nil {
			t.Fatalf("CreateResetToken: %v", err)
		}
		if len(plain) < 40 {
			t.Fatalf("token too short: %q", plain)
		}

		got, err := s.ConsumeResetToken(ctx, plain, testNow.Add(time.Minute))
		if err != nil || got != u.ID {
			t.Fatalf("consume: user=%q err=%v", got, err)
		}
		if _, err := s.ConsumeResetToken(ctx, plain, testNow.Add(time.Minute)); !IsNotActive(err) {
			t.Fatalf("second consume: expected not active, got %v", err)
		}
	})

	t.Run("ResetToken_ExpiredUnknownSuperseded", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		u := mustCreateUser(t, s, "exp@example.com")

		expired, err := s.CreateResetToken(ctx, u.ID, 6*time.Minute, testNow)
		if err != nil {
			t.Fatalf("CreateResetToken: %v", err)
		}
		if _, err := s.ConsumeResetToken(ctx, expired, testNow.Add(6*time.Minute)); !IsNotActive(err) {
			t.Fatalf("expired: expected not active, got %v", err)
		}

		first, err := s.CreateResetToken(ctx, u.ID, 6*time.Minute, testNow.Add(10*time.Minute))
		if err != nil {
			t.Fatalf("CreateResetToken first: %v", err)
		}
		second, err := s.CreateResetToken(ctx, u.ID, 6*time.Minute, testNow.Add(11*time.Minute))
		if err != nil {
			t.Fatalf("CreateResetToken second: %v", err)
		}
		if _, err := s.ConsumeResetToken(ctx, first, testNow.Add(12*time.Minute)); !IsNotActive(err) {
			t.Fatalf("superseded: expected not active, got %v", err)
		}
		if got, err := s.ConsumeResetToken(ctx, second, testNow.Add(12*time.Minute)); err != nil || got != u.ID {
			t.Fatalf("latest token: user=%q err=%v", got, err)
		}

		if _, err := s.ConsumeResetToken(ctx, "never-issued", testNow); !IsNotActive(err) {
			t.Fatalf("unknown: expected not active, got %v", err)
		}
		if _, err := s.CreateResetToken(ctx, "01HZZZZZZZZZZZZZZZZZZZZZZZ", time.Minute, testNow); !IsNotFound(err) {
			t.Fatalf("unknown user: expected not found, got %v", err)
		}
	})

	t.Run("Onboarding_SaveAndReplace", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		u := mustCreateUser(t, s, "onb@example.com")

		if _, err := s.GetOnboarding(ctx, u.ID); !IsNotFound(err) {
			t.Fatalf("before save: expected not found, got %v", err)
		}

		answers := OnboardingAnswers{
			Diet:     DietHabits{FruitDaysPerWeek: 5, VegetableDaysPerWeek: 4, FastFoodDaysPerWeek: 1},
			Activity: PhysicalActivity{ExerciseDaysPerWeek: 3, ExerciseMinutesPerDay: 40, ExerciseType: " walking "},
			Care:     HealthCare{GlucoseCheckDaysPerWeek: 7, RegularDoctorVisits: true},
			Personal: PersonalData{WeightKg: 80, HeightCm: 200, Sex: "Female"},
		}
		saved, err := s.SaveOnboarding(ctx, u.ID, answers, testNow)
		if err != nil {
			t.Fatalf("SaveOnboarding: %v", err)
		}
		if saved.Answers.Personal.BMI != 20 {
			t.Fatalf("bmi=%v want=20", saved.Answers.Personal.BMI)
		}
		if saved.Answers.Activity.ExerciseType != "walking" || saved.Answers.Personal.Sex != "female" {
			t.Fatalf("answers not normalized: %+v", saved.Answers)
		}

		answers.Diet.FastFoodDaysPerWeek = 0
		later := testNow.Add(time.Hour)
		if _, err := s.SaveOnboarding(ctx, u.ID, answers, later); err != nil {
			t.Fatalf("SaveOnboarding again: %v", err)
		}

		got, err := s.GetOnboarding(ctx, u.ID)
		if err != nil {
			t.Fatalf("GetOnboarding: %v", err)
		}
		if got.Answers.Diet.FastFoodDaysPerWeek != 0 || got.Answers.Diet.FruitDaysPerWeek != 5 {
			t.Fatalf("answers=%+v", got.Answers.Diet)
		}
		if !got.CompletedAt.Equal(testNow) || !got.UpdatedAt.Equal(later) {
			t.Fatalf("completed_at=%v updated_at=%v", got.CompletedAt, got.UpdatedAt)
		}
	})

	t.Run("Onboarding_Invalid", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		u := mustCreateUser(t, s, "onb-bad@example.com")

		cases := []OnboardingAnswers{
			{Diet: DietHabits{FruitDaysPerWeek: 8}},
			{Care: HealthCare{FootCheckDaysPerWeek: -1}},
			{Activity: PhysicalActivity{ExerciseMinutesPerDay: 2000}},
			{Personal: PersonalData{WeightKg: -3}},
			{Personal: PersonalData{Sex: "unknown"}},
		}
		for i, in := range cases {
			if _, err := s.SaveOnboarding(ctx, u.ID, in, testNow); !IsInvalidInput(err) {
				t.Fatalf("case %d: expected invalid input, got %v", i, err)
			}
		}
		if _, err := s.SaveOnboarding(ctx, "01HZZZZZZZZZZZZZZZZZZZZZZZ", OnboardingAnswers{}, testNow); !IsNotFound(err) {
			t.Fatalf("unknown user: expected not found, got %v", err)
		}
	})

	t.Run("ResetToken_ConcurrentConsume", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		u := mustCreateUser(t, s, "race@example.com")

		plain, err := s.CreateResetToken(ctx, u.ID, 6*time.Minute, testNow)
		if err != nil {
			t.Fatalf("CreateResetToken: %v", err)
		}

		const workers = 8
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := s.ConsumeResetToken(ctx, plain, testNow.Add(time.Second)); err == nil {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		if wins != 1 {
			t.Fatalf("wins=%d want=1", wins)
		}
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		return NewMemoryStore(testPasswords())
	})
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	s := NewMemoryStore(testPasswords())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.GetUserByID(ctx, "x"); !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v want=%v", err, context.Canceled)
	}
}
