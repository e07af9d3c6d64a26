package authapi

import (
	"time"

	"cronapp/cmd/identity"
)

type registerRequest struct {
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Email     string  `json:"email"`
	Password  string  `json:"password"`
	BirthDate *string `json:"birth_date"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type googleRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	GoogleID  string `json:"google_id"`
}

type logoutRequest struct {
	SessionID string `json:"session_id"`
	All       bool   `json:"all"`
}

type settingsRequest struct {
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Email     string  `json:"email"`
	BirthDate *string `json:"birth_date"`
}

type recoverRequest struct {
	Email string `json:"email"`
}

type resetRequest struct {
	NewPassword string `json:"new_password"`
}

type userResponse struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	BirthDate    *string   `json:"birth_date"`
	HasPassword  bool      `json:"has_password"`
	GoogleLinked bool      `json:"google_linked"`
	CreatedAt    time.Time `json:"created_at"`
}

type sessionResponse struct {
	SessionID        string    `json:"session_id"`
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

type authResponse struct {
	User    userResponse    `json:"user"`
	Session sessionResponse `json:"session"`
}

type googleResponse struct {
	User    userResponse    `json:"user"`
	Session sessionResponse `json:"session"`
	Created bool            `json:"created"`
}

type refreshResponse struct {
	Session sessionResponse `json:"session"`
}

type authMethodsResponse struct {
	Password            bool   `json:"password"`
	GoogleAuthAvailable bool   `json:"google_auth_available"`
	GoogleClientID      string `json:"google_client_id,omitempty"`
}

type logoutResponse struct {
	Revoked int `json:"revoked"`
}

type validateSession struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
}

type validateResponse struct {
	Valid   bool            `json:"valid"`
	User    userResponse    `json:"user"`
	Session validateSession `json:"session"`
}

type sessionSummaryResponse struct {
	SessionID        string    `json:"session_id"`
	CreatedAt        time.Time `json:"created_at"`
	ExpiresAt        time.Time `json:"expires_at"`
	RemainingSeconds int64     `json:"remaining_seconds"`
	Current          bool      `json:"current"`
}

type sessionsResponse struct {
	Sessions []sessionSummaryResponse `json:"sessions"`
}

type settingsResponse struct {
	User userResponse `json:"user"`
}

type recoverResponse struct {
	Message string `json:"message"`
}

type resetResponse struct {
	RevokedSessions int `json:"revoked_sessions"`
}

// onboardingRequest is the questionnaire body; its JSON shape is the stored one.
type onboardingRequest = identity.OnboardingAnswers

type onboardingResponse struct {
	Answers     identity.OnboardingAnswers `json:"answers"`
	CompletedAt time.Time                  `json:"completed_at"`
	UpdatedAt   time.Time                  `json:"updated_at"`
}

type onboardingStatusResponse struct {
	HasCompletedOnboarding bool                `json:"has_completed_onboarding"`
	Onboarding             *onboardingResponse `json:"onboarding,omitempty"`
}
