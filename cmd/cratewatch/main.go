package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/cratewatch/cratewatch/internal/advisory"
	"github.com/cratewatch/cratewatch/internal/analyze"
	"github.com/cratewatch/cratewatch/internal/clock"
	"github.com/cratewatch/cratewatch/internal/config"
	"github.com/cratewatch/cratewatch/internal/engine"
	"github.com/cratewatch/cratewatch/internal/fetch"
	"github.com/cratewatch/cratewatch/internal/index"
	"github.com/cratewatch/cratewatch/internal/logging"
	"github.com/cratewatch/cratewatch/internal/store"
	"github.com/cratewatch/cratewatch/internal/web"
)

// version and commit are set at build time via ldflags:
//
//	-X main.version=$(VERSION) -X main.commit=$(COMMIT)
var version = "dev"
var commit = "unknown"

func versionString() string {
	if commit != "" && commit != "unknown" {
		return version + " (" + commit + ")"
	}
	return version
}

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogJSON)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	fmt.Println("cratewatch " + versionString())
	fmt.Println("=============================================")
	fmt.Printf("CRATEWATCH_INDEX_URL=%s\n", cfg.IndexURL)
	fmt.Printf("CRATEWATCH_CACHE_DIR=%s\n", cfg.CacheDir)
	fmt.Printf("CRATEWATCH_REFRESH_INTERVAL=%s\n", cfg.RefreshInterval())
	fmt.Printf("CRATEWATCH_WEB_PORT=%s\n", cfg.WebPort)

	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		log.Error("failed to create cache directory", "dir", cfg.CacheDir, "error", err)
		os.Exit(1)
	}

	db, err := store.Open(cfg.DatabasePath())
	if err != nil {
		log.Error("failed to open package database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	mirror, err := index.Open(cfg.MirrorDir(), cfg.IndexURL, cfg.ProxyURL, log)
	if err != nil {
		log.Error("failed to open index mirror", "error", err)
		os.Exit(1)
	}

	advisories := advisory.NewHolder(nil)
	advFetcher := &advisory.HTTPFetcher{URL: cfg.AdvisoryURL, Client: advisoryClient(cfg, log)}

	fetcher, err := fetch.New(cfg.ProxyURL, db, log)
	if err != nil {
		log.Error("failed to build manifest fetcher", "error", err)
		os.Exit(1)
	}

	analyzer := analyze.New(db, advisories, fetcher, log)

	scheduler := engine.NewScheduler(mirror, db, advisories, advFetcher, cfg, log, clock.Real{})
	go func() {
		if err := scheduler.Run(ctx); err != nil {
			log.Error("refresh scheduler exited", "error", err)
		}
	}()

	server, err := web.NewServer(web.Dependencies{
		Analyzer:       analyzer,
		MetricsEnabled: cfg.MetricsEnabled,
		Version:        versionString(),
		Log:            log,
	})
	if err != nil {
		log.Error("failed to build web server", "error", err)
		os.Exit(1)
	}

	addr := net.JoinHostPort("", cfg.WebPort)
	log.Info("listening", "addr", addr)
	if err := server.Run(ctx, addr); err != nil && err != http.ErrServerClosed {
		log.Error("web server exited", "error", err)
		os.Exit(1)
	}
}

// advisoryClient builds the HTTP client for advisory downloads,
// honoring the configured proxy.
func advisoryClient(cfg *config.Config, log *logging.Logger) *http.Client {
	if cfg.ProxyURL == "" {
		return http.DefaultClient
	}
	u, err := url.Parse(cfg.ProxyURL)
	if err != nil {
		log.Warn("ignoring invalid proxy url", "proxy", cfg.ProxyURL, "error", err)
		return http.DefaultClient
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = http.ProxyURL(u)
	return &http.Client{Transport: transport}
}
