package password

import (
	"os"
	"testing"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{
		"CRONAPP_PASSWORD_MIN_LEN",
		"CRONAPP_PASSWORD_MAX_LEN",
		"CRONAPP_PASSWORD_REQUIRE_MIXED",
		"CRONAPP_PASSWORD_REJECT_VERY_WEAK",
		"CRONAPP_ARGON2_MEMORY_KIB",
		"CRONAPP_ARGON2_ITERATIONS",
		"CRONAPP_ARGON2_PARALLELISM",
		"CRONAPP_ARGON2_SALT_LEN",
		"CRONAPP_ARGON2_KEY_LEN",
	} {
		t.Setenv(k, "")
		_ = os.Unsetenv(k)
	}

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv error: %v", err)
	}

	def := DefaultConfig()
	if cfg.Policy != def.Policy {
		t.Fatalf("policy=%+v want=%+v", cfg.Policy, def.Policy)
	}
	if cfg.Params.MemoryKiB != def.Params.MemoryKiB {
		t.Fatalf("memory mismatch")
	}
	if !cfg.Policy.RequireMixed || cfg.Policy.MinLength != 12 {
		t.Fatalf("default policy should require mixed classes and 12 chars: %+v", cfg.Policy)
	}
}

func TestFromEnv_Override(t *testing.T) {
	t.Setenv("CRONAPP_PASSWORD_MIN_LEN", "10")
	t.Setenv("CRONAPP_PASSWORD_MAX_LEN", "200")
	t.Setenv("CRONAPP_PASSWORD_REQUIRE_MIXED", "off")
	t.Setenv("CRONAPP_PASSWORD_REJECT_VERY_WEAK", "false")
	t.Setenv("CRONAPP_ARGON2_MEMORY_KIB", "32768")
	t.Setenv("CRONAPP_ARGON2_ITERATIONS", "4")
	t.Setenv("CRONAPP_ARGON2_PARALLELISM", "2")
	t.Setenv("CRONAPP_ARGON2_SALT_LEN", "24")
	t.Setenv("CRONAPP_ARGON2_KEY_LEN", "32")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv error: %v", err)
	}

	if cfg.Policy.MinLength != 10 || cfg.Policy.MaxLength != 200 {
		t.Fatalf("policy override failed: %+v", cfg.Policy)
	}
	if cfg.Policy.RequireMixed || cfg.Policy.RejectVeryWeak {
		t.Fatalf("bool override failed: %+v", cfg.Policy)
	}
	if cfg.Params.MemoryKiB != 32768 || cfg.Params.Iterations != 4 || cfg.Params.Parallelism != 2 {
		t.Fatalf("argon2 override failed: %+v", cfg.Params)
	}
	if cfg.Params.SaltLength != 24 || cfg.Params.KeyLength != 32 {
		t.Fatalf("len override failed: %+v", cfg.Params)
	}
}

func TestFromEnv_Invalid(t *testing.T) {
	cases := map[string]string{
		"CRONAPP_ARGON2_MEMORY_KIB":      "1024",
		"CRONAPP_ARGON2_ITERATIONS":      "zero",
		"CRONAPP_ARGON2_PARALLELISM":     "65",
		"CRONAPP_PASSWORD_REQUIRE_MIXED": "maybe",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			if _, err := FromEnv(); err == nil {
				t.Fatalf("expected error for %s=%s", key, val)
			}
		})
	}
}

func TestFromEnv_InvalidMinMax(t *testing.T) {
	t.Setenv("CRONAPP_PASSWORD_MIN_LEN", "20")
	t.Setenv("CRONAPP_PASSWORD_MAX_LEN", "10")

	if _, err := FromEnv(); err == nil {
		t.Fatalf("expected error")
	}
}
