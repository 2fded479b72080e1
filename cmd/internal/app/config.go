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

	// If true:
	// - /readyz returns 503 unless DB is configured and reachable.
	ReadinessRequireDB bool

	// Browser clients live on a different origin in dev; the cookie-based
	// refresh flow requires credentialed CORS.
	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
	CORSMaxAgeSeconds    int
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr:  EnvString("CONFLUX_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("CONFLUX_LOG_LEVEL", "info"),
		LogFormat: EnvString("CONFLUX_LOG_FORMAT", "json"),

		ReadHeaderTimeout: EnvDuration("CONFLUX_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("CONFLUX_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("CONFLUX_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("CONFLUX_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("CONFLUX_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("CONFLUX_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("CONFLUX_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("CONFLUX_DB_MIN_CONNS", 0),

		ReadinessRequireDB: EnvBool("CONFLUX_READINESS_REQUIRE_DB", false),

		CORSAllowedOrigins:   EnvCSV("CONFLUX_CORS_ALLOWED_ORIGINS", "http://localhost:5173,http://127.0.0.1:5173"),
		CORSAllowCredentials: EnvBool("CONFLUX_CORS_ALLOW_CREDENTIALS", true),
		CORSMaxAgeSeconds:    EnvInt("CONFLUX_CORS_MAX_AGE_SECONDS", 600),
	}
}
