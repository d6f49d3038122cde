package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Addr:        defaultAddr,
		DatabaseURL: "postgres://localhost/stitchbag",
		Currency:    "INR",
		Auth:        AuthConfig{JWTSecret: "secret", Issuer: "stitchbag"},
		Pricing:     PricingConfig{StitchingFee: "1500"},
		LocalQuota:  LocalQuotaConfig{MaxDrafts: 50},
	}
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	for _, tt := range []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"NoDatabase", func(c *Config) { c.DatabaseURL = "" }, "database URL is required"},
		{"NoSecret", func(c *Config) { c.Auth.JWTSecret = "" }, "token secret is required"},
		{"BadFee", func(c *Config) { c.Pricing.StitchingFee = "a lot" }, "parse stitching fee"},
		{"NegativeFee", func(c *Config) { c.Pricing.StitchingFee = "-1" }, "must not be negative"},
		{"NoQuota", func(c *Config) { c.LocalQuota.MaxDrafts = 0 }, "quota must be positive"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestConfig_StitchingFee(t *testing.T) {
	cfg := validConfig()
	cfg.Pricing.StitchingFee = "1750.50"
	fee, err := cfg.StitchingFee()
	require.NoError(t, err)
	assert.Equal(t, "1750.5", fee.String())
}

func TestConfig_PlatformDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://platform/db")
	t.Setenv("REDIS_URL", "redis://platform:6379/0")
	t.Setenv("PORT", "9000")

	t.Run("Fills", func(t *testing.T) {
		cfg := &Config{Addr: defaultAddr}
		cfg.applyPlatformDefaults()
		assert.Equal(t, "postgres://platform/db", cfg.DatabaseURL)
		assert.Equal(t, "redis://platform:6379/0", cfg.Redis.URL)
		assert.Equal(t, "0.0.0.0:9000", cfg.Addr)
	})

	t.Run("ExplicitWins", func(t *testing.T) {
		cfg := &Config{
			Addr:        "127.0.0.1:7000",
			DatabaseURL: "postgres://explicit/db",
			Redis:       RedisConfig{Addr: "cache:6379"},
		}
		cfg.applyPlatformDefaults()
		assert.Equal(t, "postgres://explicit/db", cfg.DatabaseURL)
		assert.Empty(t, cfg.Redis.URL)
		assert.Equal(t, "127.0.0.1:7000", cfg.Addr)
	})
}

func TestRedisClient(t *testing.T) {
	t.Run("Unconfigured", func(t *testing.T) {
		client, err := redisClient(RedisConfig{})
		require.NoError(t, err)
		assert.Nil(t, client)
	})

	t.Run("URL", func(t *testing.T) {
		client, err := redisClient(RedisConfig{URL: "redis://:pw@cache:6380/2"})
		require.NoError(t, err)
		t.Cleanup(func() { _ = client.Close() })
		assert.Equal(t, "cache:6380", client.Options().Addr)
		assert.Equal(t, 2, client.Options().DB)
		assert.Equal(t, "pw", client.Options().Password)
	})

	t.Run("Addr", func(t *testing.T) {
		client, err := redisClient(RedisConfig{Addr: "cache:6379", DB: 1})
		require.NoError(t, err)
		t.Cleanup(func() { _ = client.Close() })
		assert.Equal(t, "cache:6379", client.Options().Addr)
		assert.Equal(t, 1, client.Options().DB)
	})

	t.Run("BadURL", func(t *testing.T) {
		_, err := redisClient(RedisConfig{URL: "http://nope"})
		require.Error(t, err)
	})
}
