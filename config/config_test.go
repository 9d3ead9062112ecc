package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("RATE_LIMIT_MAX", "")
	t.Setenv("REDIS_HOST", "")

	cfg := LoadConfig()

	assert.Equal(t, 10, cfg.RateLimitMax)
	assert.Equal(t, 60*time.Second, cfg.RateLimitWindow)
	assert.Equal(t, 30, cfg.RetentionDays)
	assert.Equal(t, 30*24*time.Hour, cfg.RetentionHorizon())
	assert.False(t, cfg.RedisEnabled())
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("RATE_LIMIT_WINDOW", "30s")
	t.Setenv("RETENTION_DAYS", "7")
	t.Setenv("REDIS_DB", "not-a-number")

	cfg := LoadConfig()

	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.True(t, cfg.RedisEnabled())
	assert.Equal(t, 30*time.Second, cfg.RateLimitWindow)
	assert.Equal(t, 7*24*time.Hour, cfg.RetentionHorizon())
	assert.Equal(t, 0, cfg.RedisDB)
}

func TestAllowedOrigins(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", "")
	assert.Equal(t, []string{"*"}, LoadConfig().AllowedOrigins)

	t.Setenv("ALLOWED_ORIGINS", " https://a.example.com, ,https://b.example.com")
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, LoadConfig().AllowedOrigins)
}
