package app

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Addr:        "0.0.0.0:8080",
		DatabaseURL: "postgres://localhost/store",
		Redis:       RedisConfig{URL: "redis://localhost:6379/0", CartTTL: 720 * time.Hour, IdempotencyTTL: 24 * time.Hour},
		Auth:        AuthConfig{JWTSecret: "0123456789abcdef", Issuer: "storefront", SessionTTL: 12 * time.Hour},
		RateLimit:   RateLimitConfig{Backend: "memory", Max: 100, Window: time.Minute, LoginMax: 10, LoginWindow: 15 * time.Minute},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "no database", mutate: func(c *Config) { c.DatabaseURL = "" }, wantErr: "database URL is required"},
		{name: "short secret", mutate: func(c *Config) { c.Auth.JWTSecret = "short" }, wantErr: "STORE_AUTH_JWT_SECRET"},
		{name: "zero cart ttl", mutate: func(c *Config) { c.Redis.CartTTL = 0 }, wantErr: "redis TTLs must be positive"},
		{name: "zero rate limit", mutate: func(c *Config) { c.RateLimit.Max = 0 }, wantErr: "rate limit max and window"},
		{name: "zero login window", mutate: func(c *Config) { c.RateLimit.LoginWindow = 0 }, wantErr: "login rate limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_PlatformDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://platform/db")
	t.Setenv("REDIS_URL", "redis://platform:6379/1")
	t.Setenv("PORT", "3000")

	cfg := validConfig()
	cfg.DatabaseURL = ""
	cfg.applyPlatformDefaults()

	assert.Equal(t, "postgres://platform/db", cfg.DatabaseURL)
	assert.Equal(t, "redis://platform:6379/1", cfg.Redis.URL)
	assert.Equal(t, "0.0.0.0:3000", cfg.Addr)

	// Explicit STORE_ settings win over platform names.
	t.Setenv("STORE_REDIS_URL", "redis://explicit:6379/0")
	cfg = validConfig()
	cfg.Addr = "127.0.0.1:9000"
	cfg.applyPlatformDefaults()

	assert.Equal(t, "postgres://localhost/store", cfg.DatabaseURL)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
	assert.Equal(t, "127.0.0.1:9000", cfg.Addr)
}

func TestIsProbe(t *testing.T) {
	assert.True(t, isProbe(httptest.NewRequest("GET", "/livez", nil)))
	assert.True(t, isProbe(httptest.NewRequest("GET", "/readyz", nil)))
	assert.False(t, isProbe(httptest.NewRequest("GET", "/api/products", nil)))
}

func TestNewAPILimiter(t *testing.T) {
	ctx := t.Context()
	cfg := validConfig().RateLimit

	l, err := newAPILimiter(ctx, cfg, nil)
	require.NoError(t, err)
	d, err := l.Allow(ctx, "api:1.2.3.4", time.Now())
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 100, d.Limit)

	cfg.Backend = "etcd"
	_, err = newAPILimiter(ctx, cfg, nil)
	assert.EqualError(t, err, `unknown rate limit backend "etcd"`)
}
