package app

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/aussiebroadwan/warden/pkg/httpx"
	"github.com/stretchr/testify/require"
)

var allKeys = []string{
	"WARDEN_DATABASE", "WARDEN_PEPPER_FILE", "WARDEN_LOCKOUT_THRESHOLD", "WARDEN_LOCKOUT_DURATION",
	"WARDEN_TRUSTED_PROXY_HEADERS", "WARDEN_IDENTITY_OVERRIDE", "WARDEN_IDENTITY_LOOKUP_URLS",
	"WARDEN_STRATEGY_TIMEOUT", "WARDEN_SESSION_TTL", "WARDEN_OPERATOR_TOKEN", "WARDEN_AUDIT_RETENTION",
	"ENV", "LOG_LEVEL", "LOG_FORMAT", "PORT", "SHUTDOWN_GRACE_PERIOD", "HOUSEKEEPING_INTERVAL",
	"RATELIMIT_LOGIN_REQUESTS", "RATELIMIT_LOGIN_WINDOW_SEC", "RATELIMIT_LOGIN_BURST",
	"RATELIMIT_IDENTITY_REQUESTS", "RATELIMIT_IDENTITY_WINDOW_SEC", "RATELIMIT_IDENTITY_BURST",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)

	cfg := LoadConfig()
	require.Equal(t, "warden.db", cfg.Database)
	require.Equal(t, "pepper", cfg.PepperFile)
	require.Equal(t, 5, cfg.LockoutThreshold)
	require.Equal(t, 15*time.Minute, cfg.LockoutDuration)
	require.Empty(t, cfg.TrustedProxyHeaders, "no proxy headers are trusted unless configured")
	require.Empty(t, cfg.IdentityOverride)
	require.Empty(t, cfg.IdentityLookupURLs)
	require.Equal(t, 3*time.Second, cfg.StrategyTimeout)
	require.Equal(t, 24*time.Hour, cfg.SessionTTL)
	require.Equal(t, 30*24*time.Hour, cfg.AuditRetention)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, httpx.StrictLimit, cfg.LoginLimit)
	require.Equal(t, httpx.ModerateLimit, cfg.IdentityLimit)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("WARDEN_DATABASE", "postgres://warden@db/warden")
	t.Setenv("WARDEN_LOCKOUT_THRESHOLD", "3")
	t.Setenv("WARDEN_LOCKOUT_DURATION", "30") // bare minutes
	t.Setenv("WARDEN_TRUSTED_PROXY_HEADERS", " Forwarded , ,X-Real-IP")
	t.Setenv("WARDEN_IDENTITY_OVERRIDE", "198.51.100.7")
	t.Setenv("WARDEN_IDENTITY_LOOKUP_URLS", "https://api.ipify.org?format=json,https://httpbin.org/ip")
	t.Setenv("WARDEN_STRATEGY_TIMEOUT", "500ms")
	t.Setenv("RATELIMIT_LOGIN_REQUESTS", "10")
	t.Setenv("RATELIMIT_LOGIN_BURST", "nope")

	cfg := LoadConfig()
	require.True(t, IsPostgres(cfg.Database))
	require.Equal(t, 3, cfg.LockoutThreshold)
	require.Equal(t, 30*time.Minute, cfg.LockoutDuration)
	require.Equal(t, []string{"Forwarded", "X-Real-IP"}, cfg.TrustedProxyHeaders)
	require.Equal(t, "198.51.100.7", cfg.IdentityOverride)
	require.Len(t, cfg.IdentityLookupURLs, 2)
	require.Equal(t, 500*time.Millisecond, cfg.StrategyTimeout)
	require.Equal(t, 10, cfg.LoginLimit.RequestsPerWindow)
	require.Equal(t, httpx.StrictLimit.Burst, cfg.LoginLimit.Burst)
	require.NoError(t, cfg.Validate())

	policy := cfg.LockoutPolicy()
	require.Equal(t, 3, policy.Threshold)
	require.Equal(t, 30*time.Minute, policy.Duration)
}

func TestConfigValidate(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"zero threshold", func(c *Config) { c.LockoutThreshold = 0 }},
		{"negative lock duration", func(c *Config) { c.LockoutDuration = -time.Minute }},
		{"zero strategy timeout", func(c *Config) { c.StrategyTimeout = 0 }},
		{"zero session ttl", func(c *Config) { c.SessionTTL = 0 }},
		{"loopback override", func(c *Config) { c.IdentityOverride = "127.0.0.1" }},
		{"non http lookup url", func(c *Config) { c.IdentityLookupURLs = []string{"ftp://example.com"} }},
		{"empty database", func(c *Config) { c.Database = "" }},
		{"bad port", func(c *Config) { c.Port = 70000 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := LoadConfig()
			tt.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestIsPostgres(t *testing.T) {
	require.True(t, IsPostgres("postgres://localhost/warden"))
	require.True(t, IsPostgres("postgresql://localhost/warden"))
	require.False(t, IsPostgres("warden.db"))
	require.False(t, IsPostgres("/var/lib/postgres/warden.db"))
}

func TestNewApplication(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv("WARDEN_DATABASE", filepath.Join(dir, "warden.db"))
	t.Setenv("WARDEN_PEPPER_FILE", filepath.Join(dir, "pepper"))
	t.Setenv("LOG_LEVEL", "error")

	app, err := New(LoadConfig())
	require.NoError(t, err)
	t.Cleanup(func() {
		app.housekeepingService.Stop()
		_ = app.db.Close()
	})
	app.housekeepingService.Start()

	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	require.FileExists(t, filepath.Join(dir, "pepper"))
}

func TestNewApplicationRejectsInvalidConfig(t *testing.T) {
	clearEnv(t)
	t.Setenv("WARDEN_LOCKOUT_THRESHOLD", "0")

	_, err := New(LoadConfig())
	require.Error(t, err)
}
