package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	// Test with default values
	config := LoadConfig()
	assert.Equal(t, StoreSQLite, config.StoreDriver)
	assert.Equal(t, "harvest.db", config.SQLitePath)
	assert.Equal(t, RendererBrowser, config.Renderer)
	assert.Equal(t, 2, config.MaxPages)
	assert.Equal(t, 10, config.MaxItemsPerPage)
	assert.Equal(t, 20*time.Second, config.PageLoadTimeout)
	assert.Equal(t, 2*time.Second, config.PageDelay)
	assert.Equal(t, 500*time.Millisecond, config.ItemDelay)
	assert.Equal(t, "", config.RedisAddr)
	assert.Equal(t, "products", config.RedisStream)
	assert.NoError(t, config.Validate())

	// Test with environment variables
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://harvest@localhost/harvest")
	t.Setenv("RENDERER", "http")
	t.Setenv("MAX_PAGES", "5")
	t.Setenv("PAGE_DELAY_MS", "0")
	t.Setenv("REDIS_ADDR", "redis.example.com:6379")
	t.Setenv("COOLDOWN_SECONDS", "30")

	config = LoadConfig()
	assert.Equal(t, StorePostgres, config.StoreDriver)
	assert.Equal(t, "postgres://harvest@localhost/harvest", config.DatabaseURL)
	assert.Equal(t, RendererHTTP, config.Renderer)
	assert.Equal(t, 5, config.MaxPages)
	assert.Equal(t, time.Duration(0), config.PageDelay)
	assert.Equal(t, "redis.example.com:6379", config.RedisAddr)
	assert.Equal(t, 30*time.Second, config.CooldownTime)
	assert.NoError(t, config.Validate())
}

func TestLoadConfigMalformedInt(t *testing.T) {
	t.Setenv("MAX_ITEMS_PER_PAGE", "ten")
	assert.Equal(t, 10, LoadConfig().MaxItemsPerPage)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.StoreDriver = "mysql" }},
		{"postgres without url", func(c *Config) { c.StoreDriver = StorePostgres; c.DatabaseURL = "" }},
		{"unknown renderer", func(c *Config) { c.Renderer = "selenium" }},
		{"zero pages", func(c *Config) { c.MaxPages = 0 }},
		{"zero items", func(c *Config) { c.MaxItemsPerPage = 0 }},
		{"negative delay", func(c *Config) { c.ItemDelay = -time.Second }},
		{"redis without stream", func(c *Config) { c.RedisAddr = "localhost:6379"; c.RedisStream = "" }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := LoadConfig()
			require.NoError(t, cfg.Validate())
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
