package session

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// MinJWTSecretBytes is the shortest accepted HS256 signing secret.
const MinJWTSecretBytes = 32

// Config defines all runtime configuration for the session subsystem.
//
// It controls token lifetimes, the session lifetime tracked by the Registry,
// the background sweep cadence, and the JWT signing secret.
type Config struct {
	// Issuer is the value set in the "iss" claim of issued tokens.
	Issuer string

	// AccessTokenTTL defines the lifetime of access tokens.
	AccessTokenTTL time.Duration

	// SessionTTL is how long a registered session stays valid without a refresh.
	// Refresh tokens share this lifetime.
	SessionTTL time.Duration

	// ClockSkew is the leeway applied when verifying token time claims.
	ClockSkew time.Duration

	// SweepInterval is the period of the background expiry sweep.
	SweepInterval time.Duration

	// ActivityLogSize caps the in-memory activity ring buffer.
	ActivityLogSize int

	// JWTSecret signs access and refresh tokens (HS256).
	JWTSecret string
}

// DefaultConfig returns defaults suitable for development.
//
// JWTSecret is left empty; LoadConfigFromEnv requires it.
func DefaultConfig() Config {
	return Config{
		Issuer:          "cronapp",
		AccessTokenTTL:  15 * time.Minute,
		SessionTTL:      7 * 24 * time.Hour,
		ClockSkew:       30 * time.Second,
		SweepInterval:   time.Minute,
		ActivityLogSize: 1000,
	}
}

// DenyTTL is how long a revoked session ID stays on the denylist: long enough
// to outlast any access or refresh token minted for it.
func (c Config) DenyTTL() time.Duration {
	if c.AccessTokenTTL > c.SessionTTL {
		return c.AccessTokenTTL
	}
	return c.SessionTTL
}

// LoadConfigFromEnv loads session configuration from environment variables.
//
// Required:
//   - CRONAPP_JWT_SECRET (at least 32 bytes)
//
// Optional (durations must be valid Go duration strings):
//   - CRONAPP_AUTH_ISSUER
//   - CRONAPP_AUTH_ACCESS_TTL
//   - CRONAPP_AUTH_SESSION_TTL
//   - CRONAPP_AUTH_CLOCK_SKEW
//   - CRONAPP_SESSION_SWEEP_INTERVAL
//   - CRONAPP_SESSION_ACTIVITY_LOG_SIZE
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := strings.TrimSpace(os.Getenv("CRONAPP_AUTH_ISSUER")); v != "" {
		cfg.Issuer = v
	}

	var err error
	if cfg.AccessTokenTTL, err = envPositiveDuration("CRONAPP_AUTH_ACCESS_TTL", cfg.AccessTokenTTL); err != nil {
		return Config{}, err
	}
	if cfg.SessionTTL, err = envPositiveDuration("CRONAPP_AUTH_SESSION_TTL", cfg.SessionTTL); err != nil {
		return Config{}, err
	}
	if cfg.SweepInterval, err = envPositiveDuration("CRONAPP_SESSION_SWEEP_INTERVAL", cfg.SweepInterval); err != nil {
		return Config{}, err
	}

	if v := os.Getenv("CRONAPP_AUTH_CLOCK_SKEW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return Config{}, ErrConfig
		}
		cfg.ClockSkew = d
	}

	if v := os.Getenv("CRONAPP_SESSION_ACTIVITY_LOG_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > 100000 {
			return Config{}, ErrConfig
		}
		cfg.ActivityLogSize = n
	}

	cfg.JWTSecret = strings.TrimSpace(os.Getenv("CRONAPP_JWT_SECRET"))
	if len(cfg.JWTSecret) < MinJWTSecretBytes {
		return Config{}, ErrConfig
	}

	// Sessions must outlive the access tokens minted for them.
	if cfg.SessionTTL < cfg.AccessTokenTTL {
		return Config{}, ErrConfig
	}

	return cfg, nil
}

func envPositiveDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, ErrConfig
	}
	return d, nil
}
