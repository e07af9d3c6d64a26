package password

import (
	"fmt"
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// Argon2idParams controls Argon2id hashing cost. MemoryKiB is in KiB as
// argon2.IDKey expects.
type Argon2idParams struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Policy controls which passwords are accepted.
type Policy struct {
	MinLength int
	MaxLength int

	// RequireMixed demands upper, lower, digit and symbol characters.
	RequireMixed bool

	// RejectVeryWeak enables a small blocklist of trivial passwords.
	RejectVeryWeak bool
}

// Config is the single configuration surface for this package.
type Config struct {
	Params Argon2idParams
	Policy Policy
}

// DefaultConfig returns the production baseline.
func DefaultConfig() Config {
	// Parallelism follows the CPU count, clamped to [1..4] for containers.
	threads := runtime.NumCPU()
	if threads <= 0 {
		threads = 1
	}
	if threads > 4 {
		threads = 4
	}

	return Config{
		Params: Argon2idParams{
			MemoryKiB:   64 * 1024,
			Iterations:  3,
			Parallelism: uint8(threads), // #nosec G115 -- clamped to [1..4] above.
			SaltLength:  16,
			KeyLength:   32,
		},
		Policy: Policy{
			MinLength:      12,
			MaxLength:      256,
			RequireMixed:   true,
			RejectVeryWeak: true,
		},
	}
}

// FromEnv loads config from environment variables.
//
// Env surface:
//   - CRONAPP_PASSWORD_MIN_LEN
//   - CRONAPP_PASSWORD_MAX_LEN
//   - CRONAPP_PASSWORD_REQUIRE_MIXED (true/false)
//   - CRONAPP_PASSWORD_REJECT_VERY_WEAK (true/false)
//   - CRONAPP_ARGON2_MEMORY_KIB
//   - CRONAPP_ARGON2_ITERATIONS
//   - CRONAPP_ARGON2_PARALLELISM
//   - CRONAPP_ARGON2_SALT_LEN
//   - CRONAPP_ARGON2_KEY_LEN
func FromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v, ok := os.LookupEnv("CRONAPP_PASSWORD_MIN_LEN"); ok {
		n, err := atoiInRange(v, 1, 1024)
		if err != nil {
			return Config{}, fmt.Errorf("CRONAPP_PASSWORD_MIN_LEN: %w", err)
		}
		cfg.Policy.MinLength = n
	}
	if v, ok := os.LookupEnv("CRONAPP_PASSWORD_MAX_LEN"); ok {
		n, err := atoiInRange(v, 1, 4096)
		if err != nil {
			return Config{}, fmt.Errorf("CRONAPP_PASSWORD_MAX_LEN: %w", err)
		}
		cfg.Policy.MaxLength = n
	}
	if v, ok := os.LookupEnv("CRONAPP_PASSWORD_REQUIRE_MIXED"); ok {
		b, err := parseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("CRONAPP_PASSWORD_REQUIRE_MIXED: %w", err)
		}
		cfg.Policy.RequireMixed = b
	}
	if v, ok := os.LookupEnv("CRONAPP_PASSWORD_REJECT_VERY_WEAK"); ok {
		b, err := parseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("CRONAPP_PASSWORD_REJECT_VERY_WEAK: %w", err)
		}
		cfg.Policy.RejectVeryWeak = b
	}

	params := []struct {
		key      string
		min, max uint32
		dst      *uint32
	}{
		{"CRONAPP_ARGON2_MEMORY_KIB", 8 * 1024, 1024 * 1024, &cfg.Params.MemoryKiB},
		{"CRONAPP_ARGON2_ITERATIONS", 1, 20, &cfg.Params.Iterations},
		{"CRONAPP_ARGON2_SALT_LEN", 8, 64, &cfg.Params.SaltLength},
		{"CRONAPP_ARGON2_KEY_LEN", 16, 64, &cfg.Params.KeyLength},
	}
	for _, p := range params {
		v, ok := os.LookupEnv(p.key)
		if !ok {
			continue
		}
		u, err := atou32(v, p.min, p.max)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", p.key, err)
		}
		*p.dst = u
	}

	if v, ok := os.LookupEnv("CRONAPP_ARGON2_PARALLELISM"); ok {
		u, err := atou32(v, 1, 64)
		if err != nil {
			return Config{}, fmt.Errorf("CRONAPP_ARGON2_PARALLELISM: %w", err)
		}
		p, err := u32ToU8(u)
		if err != nil {
			return Config{}, fmt.Errorf("CRONAPP_ARGON2_PARALLELISM: %w", err)
		}
		cfg.Params.Parallelism = p
	}

	if cfg.Policy.MinLength > cfg.Policy.MaxLength {
		return Config{}, fmt.Errorf(
			"password policy invalid: min_len(%d) > max_len(%d)",
			cfg.Policy.MinLength,
			cfg.Policy.MaxLength,
		)
	}

	return cfg, nil
}

func atoiInRange(s string, minVal, maxVal int) (int, error) {
	i64, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("not an integer")
	}
	i := int(i64)
	if i < minVal || i > maxVal {
		return 0, fmt.Errorf("out of range [%d..%d]", minVal, maxVal)
	}
	return i, nil
}

func atou32(s string, minVal, maxVal uint32) (uint32, error) {
	u64, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("not an unsigned integer")
	}
	u := uint32(u64)
	if u < minVal || u > maxVal {
		return 0, fmt.Errorf("out of range [%d..%d]", minVal, maxVal)
	}
	return u, nil
}

func u32ToU8(u uint32) (uint8, error) {
	if u > math.MaxUint8 {
		return 0, fmt.Errorf("out of range [0..%d]", math.MaxUint8)
	}
	return uint8(u), nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean")
	}
}
