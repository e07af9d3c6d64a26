package session

import (
	"testing"
	"time"
)

func TestLoadConfigFromEnv_MissingSecret(t *testing.T) {
	t.Setenv("CRONAPP_JWT_SECRET", "")
	_, err := LoadConfigFromEnv()
	if err != ErrConfig {
		t.Fatalf("expected ErrConfig on missing secret, got %v", err)
	}
}

func TestLoadConfigFromEnv_ShortSecret(t *testing.T) {
	t.Setenv("CRONAPP_JWT_SECRET", "   too-short   ")
	_, err := LoadConfigFromEnv()
	if err != ErrConfig {
		t.Fatalf("expected ErrConfig on short secret, got %v", err)
	}
}

func TestLoadConfigFromEnv_InvalidDurations(t *testing.T) {
	cases := []struct {
		key string
		val string
	}{
		{"CRONAPP_AUTH_ACCESS_TTL", "-5m"},
		{"CRONAPP_AUTH_ACCESS_TTL", "soon"},
		{"CRONAPP_AUTH_SESSION_TTL", "0s"},
		{"CRONAPP_SESSION_SWEEP_INTERVAL", "-1s"},
		{"CRONAPP_AUTH_CLOCK_SKEW", "-1s"},
	}
	for _, tc := range cases {
		t.Run(tc.key+"="+tc.val, func(t *testing.T) {
			t.Setenv("CRONAPP_JWT_SECRET", testJWTSecret)
			t.Setenv(tc.key, tc.val)
			if _, err := LoadConfigFromEnv(); err != ErrConfig {
				t.Fatalf("expected ErrConfig, got %v", err)
			}
		})
	}
}

func TestLoadConfigFromEnv_InvalidActivityLogSize(t *testing.T) {
	t.Setenv("CRONAPP_JWT_SECRET", testJWTSecret)
	t.Setenv("CRONAPP_SESSION_ACTIVITY_LOG_SIZE", "1000001")
	if _, err := LoadConfigFromEnv(); err != ErrConfig {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}

func TestLoadConfigFromEnv_SessionShorterThanAccess(t *testing.T) {
	t.Setenv("CRONAPP_JWT_SECRET", testJWTSecret)
	t.Setenv("CRONAPP_AUTH_ACCESS_TTL", "2h")
	t.Setenv("CRONAPP_AUTH_SESSION_TTL", "1h")
	if _, err := LoadConfigFromEnv(); err != ErrConfig {
		t.Fatalf("expected ErrConfig when session ttl < access ttl, got %v", err)
	}
}

func TestLoadConfigFromEnv_Overrides(t *testing.T) {
	t.Setenv("CRONAPP_JWT_SECRET", "  "+testJWTSecret+"  ")
	t.Setenv("CRONAPP_AUTH_ISSUER", "cronapp-test")
	t.Setenv("CRONAPP_AUTH_ACCESS_TTL", "10m")
	t.Setenv("CRONAPP_AUTH_SESSION_TTL", "24h")
	t.Setenv("CRONAPP_AUTH_CLOCK_SKEW", "0s")
	t.Setenv("CRONAPP_SESSION_SWEEP_INTERVAL", "30s")
	t.Setenv("CRONAPP_SESSION_ACTIVITY_LOG_SIZE", "0")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}
	if cfg.JWTSecret != testJWTSecret {
		t.Fatalf("secret not trimmed: %q", cfg.JWTSecret)
	}
	if cfg.Issuer != "cronapp-test" {
		t.Fatalf("issuer=%q", cfg.Issuer)
	}
	if cfg.AccessTokenTTL != 10*time.Minute || cfg.SessionTTL != 24*time.Hour {
		t.Fatalf("ttls=%v/%v", cfg.AccessTokenTTL, cfg.SessionTTL)
	}
	if cfg.ClockSkew != 0 || cfg.SweepInterval != 30*time.Second || cfg.ActivityLogSize != 0 {
		t.Fatalf("cfg=%+v", cfg)
	}
}

func TestConfig_DenyTTL(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.DenyTTL(); got != cfg.SessionTTL {
		t.Fatalf("DenyTTL=%v want=%v", got, cfg.SessionTTL)
	}

	cfg.AccessTokenTTL = 30 * 24 * time.Hour
	if got := cfg.DenyTTL(); got != cfg.AccessTokenTTL {
		t.Fatalf("DenyTTL=%v want=%v", got, cfg.AccessTokenTTL)
	}
}
