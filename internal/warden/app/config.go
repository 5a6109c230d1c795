package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/warden/internal/warden/identity"
	"github.com/aussiebroadwan/warden/internal/warden/service"
	"github.com/aussiebroadwan/warden/pkg/httpx"
)

type Config struct {
	Database   string // Optional: sqlite file path or postgres:// URL (default: warden.db)
	PepperFile string // Optional: path to the password pepper file (default: pepper)

	LockoutThreshold int           // Failures before an account locks (default: 5)
	LockoutDuration  time.Duration // How long a lock lasts (default: 15m)

	TrustedProxyHeaders []string      // Headers set by the reverse proxy (default: none, peer address only)
	IdentityOverride    string        // Optional: address reported for every session
	IdentityLookupURLs  []string      // Optional: external "what is my address" services
	StrategyTimeout     time.Duration // Per strategy deadline (default: 3s)
	SessionTTL          time.Duration // Idle resolver sessions are forgotten after this (default: 24h)
	OperatorToken       string        // Optional: bearer token for the override endpoints

	AuditRetention       time.Duration // Login attempts older than this are pruned (default: 30 days)
	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)

	LoginLimit    httpx.RateLimitConfig // RATELIMIT_LOGIN_*
	IdentityLimit httpx.RateLimitConfig // RATELIMIT_IDENTITY_*
}

func LoadConfig() Config {
	return Config{
		Database:   getEnvOrDefault("WARDEN_DATABASE", "warden.db"),
		PepperFile: getEnvOrDefault("WARDEN_PEPPER_FILE", "pepper"),

		LockoutThreshold: getEnvIntOrDefault("WARDEN_LOCKOUT_THRESHOLD", service.DefaultLockoutThreshold),
		LockoutDuration:  getEnvDurationOrDefault("WARDEN_LOCKOUT_DURATION", service.DefaultLockoutDuration),

		TrustedProxyHeaders: getEnvListOrDefault("WARDEN_TRUSTED_PROXY_HEADERS", nil),
		IdentityOverride:    os.Getenv("WARDEN_IDENTITY_OVERRIDE"),
		IdentityLookupURLs:  getEnvListOrDefault("WARDEN_IDENTITY_LOOKUP_URLS", nil),
		StrategyTimeout:     getEnvDurationOrDefault("WARDEN_STRATEGY_TIMEOUT", identity.DefaultStrategyTimeout),
		SessionTTL:          getEnvDurationOrDefault("WARDEN_SESSION_TTL", 24*time.Hour),
		OperatorToken:       os.Getenv("WARDEN_OPERATOR_TOKEN"),

		AuditRetention:       getEnvDurationOrDefault("WARDEN_AUDIT_RETENTION", 30*24*time.Hour),
		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),

		LoginLimit:    httpx.ParseRateLimit("LOGIN", httpx.StrictLimit, os.Getenv),
		IdentityLimit: httpx.ParseRateLimit("IDENTITY", httpx.ModerateLimit, os.Getenv),
	}
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error

	if c.Database == "" {
		errs = append(errs, errors.New("WARDEN_DATABASE must not be empty"))
	}
	if c.LockoutThreshold < 1 {
		errs = append(errs, fmt.Errorf("WARDEN_LOCKOUT_THRESHOLD must be at least 1, got %d", c.LockoutThreshold))
	}

	for name, d := range map[string]time.Duration{
		"WARDEN_LOCKOUT_DURATION": c.LockoutDuration,
		"WARDEN_STRATEGY_TIMEOUT": c.StrategyTimeout,
		"WARDEN_SESSION_TTL":      c.SessionTTL,
		"WARDEN_AUDIT_RETENTION":  c.AuditRetention,
		"SHUTDOWN_GRACE_PERIOD":   c.ShutdownGracePeriod,
		"HOUSEKEEPING_INTERVAL":   c.HousekeepingInterval,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}

	if c.IdentityOverride != "" {
		if _, err := identity.Normalize(c.IdentityOverride); err != nil {
			errs = append(errs, fmt.Errorf("WARDEN_IDENTITY_OVERRIDE %q is not a usable address", c.IdentityOverride))
		}
	}
	for _, u := range c.IdentityLookupURLs {
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			errs = append(errs, fmt.Errorf("WARDEN_IDENTITY_LOOKUP_URLS entry %q is not an http(s) URL", u))
		}
	}
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT out of range: %d", c.Port))
	}

	return errors.Join(errs...)
}

// LockoutPolicy builds the policy described by the config.
func (c Config) LockoutPolicy() service.LockoutPolicy {
	return service.LockoutPolicy{Threshold: c.LockoutThreshold, Duration: c.LockoutDuration}
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

	// Try parsing as integer minutes
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}

// getEnvListOrDefault splits a comma separated value, dropping blanks.
func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
