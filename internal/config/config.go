package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	cron "github.com/robfig/cron/v3"
)

// Config holds all cratewatch configuration from environment variables.
// RefreshInterval and Schedule may be changed at runtime while the engine
// goroutine reads them, so they live behind an RWMutex and must be
// accessed through the getter/setter methods.
type Config struct {
	// Upstream registry index (a git repository).
	IndexURL string

	// OSV export for the crates.io ecosystem.
	AdvisoryURL string

	// Root of all persisted state. The bare index mirror lives at
	// <CacheDir>/crates.io-index, the package database at
	// <CacheDir>/database.
	CacheDir string

	// Outbound proxy for git fetches and HTTP requests. Empty = direct.
	ProxyURL string

	// Web dashboard
	WebPort string

	// Logging
	LogJSON bool

	MetricsEnabled bool

	// mu protects the mutable runtime fields below.
	mu              sync.RWMutex
	refreshInterval time.Duration
	schedule        string // cron expression; empty = use refreshInterval
}

// Load reads all configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		IndexURL:        envStr("CRATEWATCH_INDEX_URL", "https://github.com/rust-lang/crates.io-index"),
		AdvisoryURL:     envStr("CRATEWATCH_ADVISORY_URL", "https://osv-vulnerabilities.storage.googleapis.com/crates.io/all.zip"),
		CacheDir:        envStr("CRATEWATCH_CACHE_DIR", "/data/cratewatch"),
		ProxyURL:        envStr("CRATEWATCH_PROXY", ""),
		WebPort:         envStr("CRATEWATCH_WEB_PORT", "8080"),
		LogJSON:         envBool("CRATEWATCH_LOG_JSON", true),
		MetricsEnabled:  envBool("CRATEWATCH_METRICS", false),
		refreshInterval: envDuration("CRATEWATCH_REFRESH_INTERVAL", 5*time.Minute),
		schedule:        envStr("CRATEWATCH_SCHEDULE", ""),
	}
}

// Validate checks configuration for invalid values.
func (c *Config) Validate() error {
	c.mu.RLock()
	ri := c.refreshInterval
	sched := c.schedule
	c.mu.RUnlock()

	var errs []error
	if ri <= 0 {
		errs = append(errs, fmt.Errorf("CRATEWATCH_REFRESH_INTERVAL must be > 0, got %s", ri))
	}
	if c.IndexURL == "" {
		errs = append(errs, fmt.Errorf("CRATEWATCH_INDEX_URL must not be empty"))
	}
	if c.CacheDir == "" {
		errs = append(errs, fmt.Errorf("CRATEWATCH_CACHE_DIR must not be empty"))
	}
	if c.ProxyURL != "" {
		if _, err := url.Parse(c.ProxyURL); err != nil {
			errs = append(errs, fmt.Errorf("CRATEWATCH_PROXY is not a valid URL: %w", err))
		}
	}
	if sched != "" {
		if _, err := cron.ParseStandard(sched); err != nil {
			errs = append(errs, fmt.Errorf("CRATEWATCH_SCHEDULE is not a valid cron expression: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Values returns all configuration as a string map for display.
func (c *Config) Values() map[string]string {
	c.mu.RLock()
	ri := c.refreshInterval
	sched := c.schedule
	c.mu.RUnlock()

	return map[string]string{
		"CRATEWATCH_INDEX_URL":        c.IndexURL,
		"CRATEWATCH_ADVISORY_URL":     c.AdvisoryURL,
		"CRATEWATCH_CACHE_DIR":        c.CacheDir,
		"CRATEWATCH_PROXY":            c.ProxyURL,
		"CRATEWATCH_WEB_PORT":         c.WebPort,
		"CRATEWATCH_LOG_JSON":         fmt.Sprintf("%t", c.LogJSON),
		"CRATEWATCH_METRICS":          fmt.Sprintf("%t", c.MetricsEnabled),
		"CRATEWATCH_REFRESH_INTERVAL": ri.String(),
		"CRATEWATCH_SCHEDULE":         sched,
	}
}

// MirrorDir returns the directory of the bare index mirror.
func (c *Config) MirrorDir() string {
	return filepath.Join(c.CacheDir, "crates.io-index")
}

// DatabasePath returns the path of the package database file.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.CacheDir, "database")
}

// RefreshInterval returns the current refresh interval (thread-safe).
func (c *Config) RefreshInterval() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.refreshInterval
}

// SetRefreshInterval updates the refresh interval at runtime (thread-safe).
func (c *Config) SetRefreshInterval(d time.Duration) {
	c.mu.Lock()
	c.refreshInterval = d
	c.mu.Unlock()
}

// Schedule returns the cron schedule expression (thread-safe).
func (c *Config) Schedule() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.schedule
}

// SetSchedule updates the cron schedule at runtime (thread-safe).
func (c *Config) SetSchedule(s string) {
	c.mu.Lock()
	c.schedule = s
	c.mu.Unlock()
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
