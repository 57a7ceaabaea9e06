package app

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/campusware/campus/pkg/jwtx"
)

// Configuration errors are fatal: the process must not start serving traffic
// with missing or identical signing secrets.
var (
	ErrMissingAccessSecret  = errors.New("config: AUTH_ACCESS_SECRET is required")
	ErrMissingRefreshSecret = errors.New("config: AUTH_REFRESH_SECRET is required")
	ErrIdenticalSecrets     = errors.New("config: AUTH_ACCESS_SECRET and AUTH_REFRESH_SECRET must differ")
)

type Config struct {
	Issuer string // Issuer claim for tokens (default: campus-auth)

	AccessSecret  string // Required: HMAC secret for access tokens
	RefreshSecret string // Required: HMAC secret for refresh tokens, must differ from AccessSecret

	AccessTokenTTL  time.Duration // Access token lifetime (default: 15m)
	RefreshTokenTTL time.Duration // Refresh token lifetime (default: 168h)
	CsrfTokenTTL    time.Duration // CSRF token lifetime (default: 15m)

	DatabaseFile string // Path to SQLite database file (default: ./campus.db)
	RedisAddr    string // Optional: switches the CSRF store to the Redis driver

	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	Port                int           // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
	SweepInterval       time.Duration // Expiry sweep interval (default: 5m)
}

func LoadConfig() Config {
	return Config{
		Issuer: getEnvOrDefault("AUTH_ISSUER", "campus-auth"),

		AccessSecret:  os.Getenv("AUTH_ACCESS_SECRET"),
		RefreshSecret: os.Getenv("AUTH_REFRESH_SECRET"),

		AccessTokenTTL:  getEnvDurationOrDefault("ACCESS_TOKEN_TTL", jwtx.DefaultAccessTokenTTL),
		RefreshTokenTTL: getEnvDurationOrDefault("REFRESH_TOKEN_TTL", jwtx.DefaultRefreshTokenTTL),
		CsrfTokenTTL:    getEnvDurationOrDefault("CSRF_TOKEN_TTL", 15*time.Minute),

		DatabaseFile: getEnvOrDefault("DATABASE_FILE", "campus.db"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),

		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		SweepInterval:       getEnvDurationOrDefault("SWEEP_INTERVAL", 5*time.Minute),
	}
}

// Validate enforces the startup invariants on signing secrets. Called once
// before the server starts; a returned error is fatal.
func (c Config) Validate() error {
	if c.AccessSecret == "" {
		return ErrMissingAccessSecret
	}
	if c.RefreshSecret == "" {
		return ErrMissingRefreshSecret
	}
	if c.AccessSecret == c.RefreshSecret {
		return ErrIdenticalSecrets
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes (for backwards compatibility)
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
