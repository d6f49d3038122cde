package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (STITCH_ prefix), flags, or YAML config files.
type Config struct {
	Addr           string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL    string `usage:"PostgreSQL connection URL (STITCH_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	LocalStorePath string `default:"stitchbag.db" usage:"SQLite file for device-local drafts, wishlists and markers" flag:"local-store"`
	Currency       string `default:"INR" usage:"ISO currency code of all prices"`
	Redis          RedisConfig
	Auth           AuthConfig
	Pricing        PricingConfig
	LocalQuota     LocalQuotaConfig
	RateLimit      RateLimitConfig
	CORS           CORSConfig
	Graceful       GracefulConfig
}

// RedisConfig locates the remote wishlist store. With neither URL nor Addr
// set, user wishlists are kept in process memory.
type RedisConfig struct {
	URL      string `usage:"Redis URL (STITCH_REDIS_URL or REDIS_URL)" flag:"redis-url"`
	Addr     string `usage:"Redis host:port" flag:"redis-addr"`
	Password string `usage:"Redis password" flag:"redis-password"`
	DB       int    `default:"0" usage:"Redis database number" flag:"redis-db"`
}

// AuthConfig configures bearer token validation.
type AuthConfig struct {
	JWTSecret string `usage:"HMAC secret for HS256 tokens (STITCH_AUTH_JWT_SECRET)" flag:"jwt-secret"`
	Issuer    string `default:"stitchbag" usage:"Expected token issuer" flag:"jwt-issuer"`
}

// PricingConfig holds pricing constants that are not catalog data.
type PricingConfig struct {
	StitchingFee string `default:"1500" usage:"Flat stitching fee per stitched garment" flag:"stitching-fee"`
}

// LocalQuotaConfig bounds the device-local store.
type LocalQuotaConfig struct {
	MaxDrafts int `default:"50" usage:"Maximum drafts per anonymous device" flag:"max-local-drafts"`
}

// RateLimitConfig controls the per-device sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"300" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
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
		EnvPrefix: "STITCH",
		Files:     []string{"config.yaml", "/etc/stitchbag/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports settings the server cannot start with.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set STITCH_DATABASE_URL or DATABASE_URL")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("token secret is required: set STITCH_AUTH_JWT_SECRET")
	}
	fee, err := c.StitchingFee()
	if err != nil {
		return err
	}
	if fee.IsNegative() {
		return errors.Errorf("stitching fee must not be negative, got %s", fee)
	}
	if c.LocalQuota.MaxDrafts < 1 {
		return errors.Errorf("local draft quota must be positive, got %d", c.LocalQuota.MaxDrafts)
	}
	return nil
}

// StitchingFee parses the configured fee.
func (c *Config) StitchingFee() (decimal.Decimal, error) {
	fee, err := decimal.NewFromString(c.Pricing.StitchingFee)
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "parse stitching fee %q", c.Pricing.StitchingFee)
	}
	return fee, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's STITCH_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.Redis.URL == "" && c.Redis.Addr == "" {
		c.Redis.URL = os.Getenv("REDIS_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
