package authapi

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config controls auth API behavior and security defaults.
type Config struct {
	TrustProxy   bool
	MaxBodyBytes int64

	// Per client IP, counted over every attempt.
	LoginMax       int
	LoginWindow    time.Duration
	RecoveryMax    int
	RecoveryWindow time.Duration

	ResetTokenTTL time.Duration
	// FrontendURL is the base of the reset link sent by email.
	FrontendURL string

	// GoogleClientID enables POST /api/auth/google when set.
	GoogleClientID string

	// ResendAPIKey enables reset email delivery when set.
	ResendAPIKey string
	EmailFrom    string
}

// DefaultConfig returns the auth API defaults.
func DefaultConfig() Config {
	return Config{
		MaxBodyBytes:   1 << 20, // 1 MiB
		LoginMax:       5,
		LoginWindow:    time.Minute,
		RecoveryMax:    3,
		RecoveryWindow: time.Minute,
		ResetTokenTTL:  6 * time.Minute,
		FrontendURL:    "http://localhost:5173",
		EmailFrom:      "cronapp <no-reply@cronapp.local>",
	}
}

// GoogleEnabled reports whether Google sign-in is configured.
func (c Config) GoogleEnabled() bool {
	return strings.TrimSpace(c.GoogleClientID) != ""
}

// LoadConfigFromEnv loads auth config from environment variables with safe defaults.
func LoadConfigFromEnv() Config {
	def := DefaultConfig()
	cfg := Config{
		TrustProxy:     envBool("CRONAPP_AUTH_TRUST_PROXY", false),
		MaxBodyBytes:   envInt64("CRONAPP_AUTH_MAX_BODY_BYTES", def.MaxBodyBytes),
		LoginMax:       envInt("CRONAPP_AUTH_LOGIN_MAX", def.LoginMax),
		LoginWindow:    envDuration("CRONAPP_AUTH_LOGIN_WINDOW", def.LoginWindow),
		RecoveryMax:    envInt("CRONAPP_AUTH_RECOVERY_MAX", def.RecoveryMax),
		RecoveryWindow: envDuration("CRONAPP_AUTH_RECOVERY_WINDOW", def.RecoveryWindow),
		ResetTokenTTL:  envDuration("CRONAPP_AUTH_RESET_TOKEN_TTL", def.ResetTokenTTL),
		FrontendURL:    envString("CRONAPP_FRONTEND_URL", def.FrontendURL),
		GoogleClientID: envString("CRONAPP_GOOGLE_CLIENT_ID", ""),
		ResendAPIKey:   envString("CRONAPP_RESEND_API_KEY", ""),
		EmailFrom:      envString("CRONAPP_EMAIL_FROM", def.EmailFrom),
	}

	// Same ceiling the identity store applies.
	if cfg.ResetTokenTTL > 24*time.Hour {
		cfg.ResetTokenTTL = 24 * time.Hour
	}
	cfg.FrontendURL = strings.TrimRight(cfg.FrontendURL, "/")

	return cfg
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
