package app

import "time"

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// DBAutoMigrate runs identity.EnsureSchema at startup.
	DBAutoMigrate bool

	// If true:
	// - /readyz returns 503 unless DB is configured and reachable.
	ReadinessRequireDB bool

	// Security policy:
	// If true, CRONAPP_TOKEN_HMAC_KEY MUST be set (>= 32 bytes) and reset-token hashing must be HMAC-based.
	RequireTokenHMAC bool

	MetricsEnabled bool

	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
	CORSMaxAgeSeconds    int
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr:  EnvString("CRONAPP_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("CRONAPP_LOG_LEVEL", "info"),
		LogFormat: EnvString("CRONAPP_LOG_FORMAT", "json"),

		ReadHeaderTimeout: EnvDuration("CRONAPP_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("CRONAPP_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("CRONAPP_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("CRONAPP_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("CRONAPP_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL:   EnvString("CRONAPP_DATABASE_URL", ""),
		DBMaxConns:    EnvInt32("CRONAPP_DB_MAX_CONNS", 10),
		DBMinConns:    EnvInt32("CRONAPP_DB_MIN_CONNS", 0),
		DBAutoMigrate: EnvBool("CRONAPP_DB_AUTO_MIGRATE", false),

		ReadinessRequireDB: EnvBool("CRONAPP_READINESS_REQUIRE_DB", false),

		RequireTokenHMAC: EnvBool("CRONAPP_REQUIRE_TOKEN_HMAC", false),

		MetricsEnabled: EnvBool("CRONAPP_METRICS_ENABLED", true),

		CORSAllowedOrigins:   EnvList("CRONAPP_CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		CORSAllowCredentials: EnvBool("CRONAPP_CORS_ALLOW_CREDENTIALS", false),
		CORSMaxAgeSeconds:    EnvInt("CRONAPP_CORS_MAX_AGE_SECONDS", 600),
	}
}
