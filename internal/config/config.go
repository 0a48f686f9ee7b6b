package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the carsentry server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Scrape   ScrapeConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

type ScrapeConfig struct {
	// BaseURL is the global listing index swept by unscoped refreshes.
	BaseURL string
	// MaxPages is the page budget of an unscoped refresh.
	MaxPages int
	// TargetMaxPages is the smaller budget of a filter-scoped job.
	TargetMaxPages int
	// ExpandedMaxPages is the ceiling for the single widened re-fetch.
	ExpandedMaxPages int
	// MaxConcurrent bounds how many jobs may fetch/upsert at once.
	MaxConcurrent int
	// FetchTimeout is the per-request network timeout.
	FetchTimeout time.Duration
	// RendererEnabled toggles the headless-browser fallback strategy.
	RendererEnabled bool
	// RateLimitPerMinute is the per-API-key request budget.
	RateLimitPerMinute int
}

// Load reads configuration from environment variables and returns a validated
// Config. Returns an error with a descriptive message if any required value is
// missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("CARSENTRY_PORT", 8080),
			Env:  envString("CARSENTRY_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Scrape: ScrapeConfig{
			BaseURL:            envString("SCRAPE_BASE_URL", "https://www.carsensor.net/usedcar/"),
			MaxPages:           envInt("SCRAPE_MAX_PAGES", 3),
			TargetMaxPages:     envInt("SCRAPE_TARGET_MAX_PAGES", 2),
			ExpandedMaxPages:   envInt("SCRAPE_EXPANDED_MAX_PAGES", 5),
			MaxConcurrent:      envInt("SCRAPE_MAX_CONCURRENT", 1),
			FetchTimeout:       envDuration("SCRAPE_FETCH_TIMEOUT", 30*time.Second),
			RendererEnabled:    envBool("SCRAPE_RENDERER_ENABLED", true),
			RateLimitPerMinute: envInt("RATE_LIMIT_PER_MINUTE", 60),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if !strings.HasPrefix(c.Scrape.BaseURL, "http://") && !strings.HasPrefix(c.Scrape.BaseURL, "https://") {
		return fmt.Errorf("SCRAPE_BASE_URL must start with http:// or https://, got %q", c.Scrape.BaseURL)
	}

	if c.Scrape.MaxPages < 1 {
		return fmt.Errorf("SCRAPE_MAX_PAGES must be at least 1")
	}
	if c.Scrape.TargetMaxPages < 1 {
		return fmt.Errorf("SCRAPE_TARGET_MAX_PAGES must be at least 1")
	}
	if c.Scrape.ExpandedMaxPages < c.Scrape.TargetMaxPages {
		return fmt.Errorf("SCRAPE_EXPANDED_MAX_PAGES must not be below SCRAPE_TARGET_MAX_PAGES")
	}
	if c.Scrape.MaxConcurrent < 1 {
		return fmt.Errorf("SCRAPE_MAX_CONCURRENT must be at least 1")
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
