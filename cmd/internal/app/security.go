package app

import (
	"errors"

	"cronapp/cmd/security/token"
)

// minTokenHMACKeyBytes is measured in bytes; the key is used raw.
const minTokenHMACKeyBytes = 32

// ValidateSecurityConfig enforces the startup security policy. It fails
// instead of silently running with SHA-256 reset-token hashing when HMAC is
// required.
func ValidateSecurityConfig(cfg Config) error {
	if !cfg.RequireTokenHMAC {
		return nil
	}

	if _, err := token.HMACKeyFromEnv(minTokenHMACKeyBytes); err != nil {
		switch {
		case errors.Is(err, token.ErrHMACKeyMissing):
			return errors.New("security policy: CRONAPP_REQUIRE_TOKEN_HMAC=true but CRONAPP_TOKEN_HMAC_KEY is missing")
		case errors.Is(err, token.ErrHMACKeyTooShort):
			return errors.New("security policy: CRONAPP_REQUIRE_TOKEN_HMAC=true but CRONAPP_TOKEN_HMAC_KEY is too short (min 32 bytes)")
		default:
			return err
		}
	}

	if !token.HMACEnabled() {
		return errors.New("security policy: CRONAPP_REQUIRE_TOKEN_HMAC=true but token hasher is not in HMAC mode")
	}

	return nil
}
