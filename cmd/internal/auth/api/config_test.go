package authapi

import (
	"testing"
	"time"
)

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	cfg := LoadConfigFromEnv()

	if cfg.LoginMax != 5 || cfg.LoginWindow != time.Minute {
		t.Fatalf("login limit=%d/%v want=5/1m", cfg.LoginMax, cfg.LoginWindow)
	}
	if cfg.RecoveryMax != 3 || cfg.RecoveryWindow != time.Minute {
		t.Fatalf("recovery limit=%d/%v want=3/1m", cfg.RecoveryMax, cfg.RecoveryWindow)
	}
	if cfg.ResetTokenTTL != 6*time.Minute {
		t.Fatalf("ResetTokenTTL=%v want=6m", cfg.ResetTokenTTL)
	}
	if cfg.GoogleEnabled() {
		t.Fatalf("google must be disabled without a client id")
	}
	if cfg.MaxBodyBytes != 1<<20 {
		t.Fatalf("MaxBodyBytes=%d", cfg.MaxBodyBytes)
	}
}

func TestLoadConfigFromEnv_Overrides(t *testing.T) {
	t.Setenv("CRONAPP_AUTH_TRUST_PROXY", "true")
	t.Setenv("CRONAPP_AUTH_LOGIN_MAX", "10")
	t.Setenv("CRONAPP_AUTH_LOGIN_WINDOW", "2m")
	t.Setenv("CRONAPP_AUTH_RESET_TOKEN_TTL", "72h")
	t.Setenv("CRONAPP_FRONTEND_URL", "https://app.example.com/")
	t.Setenv("CRONAPP_GOOGLE_CLIENT_ID", "client-123")

	cfg := LoadConfigFromEnv()

	if !cfg.TrustProxy {
		t.Fatalf("TrustProxy=false")
	}
	if cfg.LoginMax != 10 || cfg.LoginWindow != 2*time.Minute {
		t.Fatalf("login limit=%d/%v", cfg.LoginMax, cfg.LoginWindow)
	}
	if cfg.ResetTokenTTL != 24*time.Hour {
		t.Fatalf("ResetTokenTTL=%v want clamp to 24h", cfg.ResetTokenTTL)
	}
	if cfg.FrontendURL != "https://app.example.com" {
		t.Fatalf("FrontendURL=%q", cfg.FrontendURL)
	}
	if !cfg.GoogleEnabled() {
		t.Fatalf("google must be enabled")
	}
}

func TestLoadConfigFromEnv_InvalidFallsBack(t *testing.T) {
	t.Setenv("CRONAPP_AUTH_LOGIN_MAX", "-1")
	t.Setenv("CRONAPP_AUTH_RECOVERY_WINDOW", "soon")
	t.Setenv("CRONAPP_AUTH_TRUST_PROXY", "maybe")

	cfg := LoadConfigFromEnv()

	if cfg.LoginMax != 5 {
		t.Fatalf("LoginMax=%d want=5", cfg.LoginMax)
	}
	if cfg.RecoveryWindow != time.Minute {
		t.Fatalf("RecoveryWindow=%v want=1m", cfg.RecoveryWindow)
	}
	if cfg.TrustProxy {
		t.Fatalf("TrustProxy must fall back to false")
	}
}
