package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (STORE_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (STORE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	ImageBaseURL string `default:"" usage:"Base URL for product images (e.g. https://cdn.example.com/images)" flag:"image-base-url"`
	Redis        RedisConfig
	Auth         AuthConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// RedisConfig controls the cart and idempotency store.
type RedisConfig struct {
	URL            string        `default:"redis://localhost:6379/0" usage:"Redis connection URL (STORE_REDIS_URL or REDIS_URL)"`
	CartTTL        time.Duration `default:"720h" usage:"Lifetime of an untouched cart" flag:"cart-ttl"`
	IdempotencyTTL time.Duration `default:"24h" usage:"How long order responses are kept for replay" flag:"idempotency-ttl"`
}

// AuthConfig controls admin session tokens.
type AuthConfig struct {
	JWTSecret  string        `usage:"HMAC secret for admin session tokens (at least 16 bytes)" flag:"jwt-secret"`
	Issuer     string        `default:"storefront" usage:"Session token issuer"`
	SessionTTL time.Duration `default:"12h" usage:"Admin session lifetime" flag:"session-ttl"`
}

// RateLimitConfig controls per-client request limits. Login attempts always
// count in Redis so every replica sees the same budget.
type RateLimitConfig struct {
	Backend     string        `default:"memory" usage:"Global limiter backend: memory or redis"`
	Max         int           `default:"100" usage:"Max requests per window"`
	Window      time.Duration `default:"1m"  usage:"Rate limit window duration"`
	LoginMax    int           `default:"10" usage:"Max admin login attempts per window" flag:"login-max"`
	LoginWindow time.Duration `default:"15m" usage:"Admin login attempt window" flag:"login-window"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "STORE",
		Files:     []string{"config.yaml", "/etc/storefront/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.DatabaseURL == "":
		return errors.New("database URL is required: set STORE_DATABASE_URL or DATABASE_URL")
	case len(c.Auth.JWTSecret) < 16:
		return errors.New("admin session secret is required: set STORE_AUTH_JWT_SECRET (at least 16 bytes)")
	case c.Redis.CartTTL <= 0 || c.Redis.IdempotencyTTL <= 0:
		return errors.New("redis TTLs must be positive")
	case c.RateLimit.Max < 1 || c.RateLimit.Window <= 0:
		return errors.New("rate limit max and window must be positive")
	case c.RateLimit.LoginMax < 1 || c.RateLimit.LoginWindow <= 0:
		return errors.New("login rate limit max and window must be positive")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's STORE_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if v := os.Getenv("REDIS_URL"); v != "" && os.Getenv("STORE_REDIS_URL") == "" {
		c.Redis.URL = v
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
