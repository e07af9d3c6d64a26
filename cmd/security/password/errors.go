package password

import "errors"

var (
	// ErrPasswordTooShort is returned when the password is under Policy.MinLength runes.
	ErrPasswordTooShort = errors.New("password too short")
	// ErrPasswordTooLong is returned when the password exceeds Policy.MaxLength runes.
	ErrPasswordTooLong = errors.New("password too long")
	// ErrPasswordComplexity is returned when a required character class is missing.
	ErrPasswordComplexity = errors.New("password must mix upper, lower, digit and symbol")
	// ErrWeakPassword is returned for trivially guessable passwords.
	ErrWeakPassword = errors.New("weak password")
	// ErrInvalidHash is returned when a stored hash cannot be decoded.
	ErrInvalidHash = errors.New("invalid password hash")
)
