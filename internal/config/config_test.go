package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.IndexURL != "https://github.com/rust-lang/crates.io-index" {
		t.Errorf("IndexURL = %q", cfg.IndexURL)
	}
	if cfg.CacheDir != "/data/cratewatch" {
		t.Errorf("CacheDir = %q", cfg.CacheDir)
	}
	if cfg.RefreshInterval() != 5*time.Minute {
		t.Errorf("RefreshInterval = %v, want 5m", cfg.RefreshInterval())
	}
	if cfg.WebPort != "8080" {
		t.Errorf("WebPort = %q, want 8080", cfg.WebPort)
	}
	if !cfg.LogJSON {
		t.Error("LogJSON should default to true")
	}
	if cfg.MetricsEnabled {
		t.Error("MetricsEnabled should default to false")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("CRATEWATCH_INDEX_URL", "https://example.com/index")
	t.Setenv("CRATEWATCH_CACHE_DIR", "/tmp/cw")
	t.Setenv("CRATEWATCH_REFRESH_INTERVAL", "90s")
	t.Setenv("CRATEWATCH_LOG_JSON", "false")
	t.Setenv("CRATEWATCH_METRICS", "true")
	t.Setenv("CRATEWATCH_SCHEDULE", "*/10 * * * *")

	cfg := Load()
	if cfg.IndexURL != "https://example.com/index" {
		t.Errorf("IndexURL = %q", cfg.IndexURL)
	}
	if cfg.CacheDir != "/tmp/cw" {
		t.Errorf("CacheDir = %q", cfg.CacheDir)
	}
	if cfg.RefreshInterval() != 90*time.Second {
		t.Errorf("RefreshInterval = %v", cfg.RefreshInterval())
	}
	if cfg.LogJSON {
		t.Error("LogJSON should be false")
	}
	if !cfg.MetricsEnabled {
		t.Error("MetricsEnabled should be true")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadBadDurationFallsBack(t *testing.T) {
	t.Setenv("CRATEWATCH_REFRESH_INTERVAL", "soon")
	cfg := Load()
	if cfg.RefreshInterval() != 5*time.Minute {
		t.Errorf("RefreshInterval = %v, want default", cfg.RefreshInterval())
	}
}

func TestValidateRejectsBadSchedule(t *testing.T) {
	cfg := Load()
	cfg.SetSchedule("every day at noon")
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "CRATEWATCH_SCHEDULE") {
		t.Errorf("Validate = %v, want schedule error", err)
	}
}

func TestValidateRejectsNonPositiveInterval(t *testing.T) {
	cfg := Load()
	cfg.SetRefreshInterval(0)
	if err := cfg.Validate(); err == nil {
		t.Error("zero interval should be rejected")
	}
}

func TestValidateRejectsEmptyIndexURL(t *testing.T) {
	cfg := Load()
	cfg.IndexURL = ""
	if err := cfg.Validate(); err == nil {
		t.Error("empty index url should be rejected")
	}
}

func TestPaths(t *testing.T) {
	cfg := Load()
	cfg.CacheDir = "/data/cw"
	if got := cfg.MirrorDir(); got != "/data/cw/crates.io-index" {
		t.Errorf("MirrorDir = %q", got)
	}
	if got := cfg.DatabasePath(); got != "/data/cw/database" {
		t.Errorf("DatabasePath = %q", got)
	}
}

func TestRuntimeSettersThreadSafeValues(t *testing.T) {
	cfg := Load()
	cfg.SetRefreshInterval(time.Hour)
	cfg.SetSchedule("0 3 * * *")

	vals := cfg.Values()
	if vals["CRATEWATCH_REFRESH_INTERVAL"] != "1h0m0s" {
		t.Errorf("interval value = %q", vals["CRATEWATCH_REFRESH_INTERVAL"])
	}
	if vals["CRATEWATCH_SCHEDULE"] != "0 3 * * *" {
		t.Errorf("schedule value = %q", vals["CRATEWATCH_SCHEDULE"])
	}
}
