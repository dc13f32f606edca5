package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	herrors "sjsage522/harvester/pkg/errors"
)

// Store drivers
const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Renderer kinds
const (
	RendererBrowser = "browser"
	RendererHTTP    = "http"
)

// Config represents the application configuration
type Config struct {
	// Record store configuration
	StoreDriver string
	SQLitePath  string
	DatabaseURL string
	DBMaxConns  int

	// Renderer configuration
	Renderer          string
	BrowserControlURL string
	UserAgent         string
	PageLoadTimeout   time.Duration
	ProbeTimeout      time.Duration

	// Harvest pacing and bounds
	MaxPages        int
	MaxItemsPerPage int
	PageDelay       time.Duration
	ItemDelay       time.Duration

	// Memcache configuration (host cooldowns)
	MemcacheAddr string
	CooldownTime time.Duration

	// Redis configuration (downstream product streams)
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamMaxLength int

	// Worker and API
	HarvestInterval time.Duration
	APIAddr         string

	// Optional YAML file replacing the built-in site catalog
	SitesFile string

	// Environment
	Environment string
}

// DefaultUserAgent is sent by the prober and both renderers.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() *Config {
	return &Config{
		StoreDriver:          getEnv("STORE_DRIVER", StoreSQLite),
		SQLitePath:           getEnv("SQLITE_PATH", "harvest.db"),
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		DBMaxConns:           getEnvInt("DB_MAX_CONNS", 4),
		Renderer:             getEnv("RENDERER", RendererBrowser),
		BrowserControlURL:    getEnv("BROWSER_CONTROL_URL", ""),
		UserAgent:            getEnv("USER_AGENT", DefaultUserAgent),
		PageLoadTimeout:      time.Duration(getEnvInt("PAGE_LOAD_TIMEOUT_SECONDS", 20)) * time.Second,
		ProbeTimeout:         time.Duration(getEnvInt("PROBE_TIMEOUT_SECONDS", 10)) * time.Second,
		MaxPages:             getEnvInt("MAX_PAGES", 2),
		MaxItemsPerPage:      getEnvInt("MAX_ITEMS_PER_PAGE", 10),
		PageDelay:            time.Duration(getEnvInt("PAGE_DELAY_MS", 2000)) * time.Millisecond,
		ItemDelay:            time.Duration(getEnvInt("ITEM_DELAY_MS", 500)) * time.Millisecond,
		MemcacheAddr:         getEnv("MEMCACHE_ADDR", ""),
		CooldownTime:         time.Duration(getEnvInt("COOLDOWN_SECONDS", 500)) * time.Second,
		RedisAddr:            getEnv("REDIS_ADDR", ""),
		RedisDB:              getEnvInt("REDIS_DB", 0),
		RedisStream:          getEnv("REDIS_STREAM", "products"),
		RedisStreamMaxLength: getEnvInt("REDIS_STREAM_MAX_LENGTH", 1000),
		HarvestInterval:      time.Duration(getEnvInt("HARVEST_INTERVAL_SECONDS", 3600)) * time.Second,
		APIAddr:              getEnv("API_ADDR", ":8080"),
		SitesFile:            getEnv("SITES_FILE", ""),
		Environment:          getEnv("HARVEST_ENVIRONMENT", "development"),
	}
}

// Validate checks the configuration for values the harvester cannot run with
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreSQLite:
		if c.SQLitePath == "" {
			return herrors.NewConfiguration("SQLITE_PATH must be set for the sqlite store", nil)
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return herrors.NewConfiguration("DATABASE_URL must be set for the postgres store", nil)
		}
	default:
		return herrors.NewConfiguration(fmt.Sprintf("unsupported STORE_DRIVER %q", c.StoreDriver), nil)
	}

	if c.Renderer != RendererBrowser && c.Renderer != RendererHTTP {
		return herrors.NewConfiguration(fmt.Sprintf("unsupported RENDERER %q", c.Renderer), nil)
	}
	if c.MaxPages < 1 {
		return herrors.NewConfiguration("MAX_PAGES must be at least 1", nil)
	}
	if c.MaxItemsPerPage < 1 {
		return herrors.NewConfiguration("MAX_ITEMS_PER_PAGE must be at least 1", nil)
	}
	if c.PageLoadTimeout <= 0 || c.ProbeTimeout <= 0 {
		return herrors.NewConfiguration("timeouts must be positive", nil)
	}
	if c.PageDelay < 0 || c.ItemDelay < 0 {
		return herrors.NewConfiguration("pacing delays cannot be negative", nil)
	}
	if c.RedisAddr != "" && c.RedisStream == "" {
		return herrors.NewConfiguration("REDIS_STREAM must be set when REDIS_ADDR is", nil)
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt retrieves an integer environment variable, falling back to the
// default when unset or malformed
func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnv(key, strconv.Itoa(defaultValue)))
	if err != nil {
		return defaultValue
	}
	return value
}
