package session

import "errors"

var (
	// ErrInvalidInput is returned when a required argument (user ID) is missing.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidToken is returned when a token fails signature, claim, or expiry checks.
	ErrInvalidToken = errors.New("invalid token")

	// ErrSessionInvalid is the single outcome reported to callers for any
	// rejected session: expired, revoked, unknown, or carried by a bad token.
	ErrSessionInvalid = errors.New("session invalid or expired")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)
