package authapi

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config controls auth API behavior and cookie transport.
type Config struct {
	MaxBodyBytes int64
	TrustProxy   bool

	// Refresh cookie transport. The cookie is httpOnly and path-scoped to
	// the refresh endpoint so scripts never see the raw token.
	RefreshCookieName string
	RefreshCookiePath string
	CookieDomain      string
	CookieSecure      bool

	// Login throttling (per client IP, sliding window).
	LoginIPMax    int
	LoginIPWindow time.Duration
}

// LoadConfigFromEnv loads auth API config from environment variables with
// safe defaults.
func LoadConfigFromEnv() Config {
	cfg := Config{
		MaxBodyBytes:      envInt64("CONFLUX_AUTH_MAX_BODY_BYTES", 1<<20), // 1 MiB
		TrustProxy:        envBool("CONFLUX_AUTH_TRUST_PROXY", false),
		RefreshCookieName: envString("CONFLUX_AUTH_REFRESH_COOKIE", "conflux_refresh"),
		RefreshCookiePath: envString("CONFLUX_AUTH_REFRESH_COOKIE_PATH", "/api/auth/refresh"),
		CookieDomain:      envString("CONFLUX_AUTH_COOKIE_DOMAIN", ""),
		CookieSecure:      envBool("CONFLUX_AUTH_COOKIE_SECURE", false),
		LoginIPMax:        envInt("CONFLUX_AUTH_LOGIN_IP_MAX", 20),
		LoginIPWindow:     envDuration("CONFLUX_AUTH_LOGIN_IP_WINDOW", 5*time.Minute),
	}

	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	if cfg.RefreshCookieName == "" {
		cfg.RefreshCookieName = "conflux_refresh"
	}
	if !strings.HasPrefix(cfg.RefreshCookiePath, "/") {
		cfg.RefreshCookiePath = "/api/auth/refresh"
	}

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
