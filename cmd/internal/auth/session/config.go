package session

import (
	"os"
	"time"
)

// Config defines runtime configuration for the session subsystem.
//
// Access and refresh tokens are signed in two independent domains: each has
// its own secret and lifetime, so a leaked refresh secret cannot mint access
// tokens and vice versa.
type Config struct {
	// Issuer is the value set in the "iss" claim of both token classes.
	Issuer string

	// AccessTTL is the access token lifetime.
	AccessTTL time.Duration

	// RefreshTTL is the refresh token lifetime.
	RefreshTTL time.Duration

	// AccessSecret and RefreshSecret are the HMAC signing keys. They are
	// required, must differ, and their absence is fatal at startup: the
	// process refuses to run with an undefined trust boundary.
	AccessSecret  []byte
	RefreshSecret []byte
}

// DefaultConfig returns defaults matching the public contract (15m / 7d).
// Secrets have no default.
func DefaultConfig() Config {
	return Config{
		Issuer:     "conflux",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	}
}

const minSecretBytes = 32

// LoadConfigFromEnv loads session configuration from environment variables.
//
// Required:
//   - CONFLUX_JWT_ACCESS_SECRET  (>= 32 bytes)
//   - CONFLUX_JWT_REFRESH_SECRET (>= 32 bytes, distinct from access secret)
//
// Optional:
//   - CONFLUX_AUTH_ISSUER
//   - CONFLUX_AUTH_ACCESS_TTL  (Go duration)
//   - CONFLUX_AUTH_REFRESH_TTL (Go duration)
//
// Returns ErrConfig when configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("CONFLUX_AUTH_ISSUER"); v != "" {
		cfg.Issuer = v
	}

	if v := os.Getenv("CONFLUX_AUTH_ACCESS_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.AccessTTL = d
	}

	if v := os.Getenv("CONFLUX_AUTH_REFRESH_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.RefreshTTL = d
	}

	cfg.AccessSecret = []byte(os.Getenv("CONFLUX_JWT_ACCESS_SECRET"))
	cfg.RefreshSecret = []byte(os.Getenv("CONFLUX_JWT_REFRESH_SECRET"))

	return cfg, cfg.Validate()
}

// Validate enforces the secret policy and TTL sanity.
func (c Config) Validate() error {
	if len(c.AccessSecret) < minSecretBytes || len(c.RefreshSecret) < minSecretBytes {
		return ErrConfig
	}
	if string(c.AccessSecret) == string(c.RefreshSecret) {
		return ErrConfig
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 || c.Issuer == "" {
		return ErrConfig
	}
	if c.RefreshTTL < c.AccessTTL {
		return ErrConfig
	}
	return nil
}
