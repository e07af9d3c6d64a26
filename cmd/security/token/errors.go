package token

import "errors"

var (
	// ErrHMACKeyMissing is returned when CRONAPP_TOKEN_HMAC_KEY is unset or blank.
	ErrHMACKeyMissing = errors.New("token HMAC key missing")
	// ErrHMACKeyTooShort is returned when the key is below the required length.
	ErrHMACKeyTooShort = errors.New("token HMAC key too short")
)
