// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/vidsync/internal/api"
	"github.com/ManuGH/vidsync/internal/config"
	"github.com/ManuGH/vidsync/internal/identity"
	"github.com/ManuGH/vidsync/internal/ledger"
	vslog "github.com/ManuGH/vidsync/internal/log"
	"github.com/ManuGH/vidsync/internal/netstat"
	syncengine "github.com/ManuGH/vidsync/internal/sync"
	"github.com/ManuGH/vidsync/internal/store"
	"github.com/ManuGH/vidsync/internal/telemetry"
)

var (
	version   = "v1.0.0"
	commit    = "none"
	buildDate = "unknown"
)

// probeAddr derives a host:port connectivity probe target from the ledger
// base URL.
func probeAddr(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse ledger url: %w", err)
	}
	host := u.Host
	if host == "" {
		return "", fmt.Errorf("ledger url %q has no host", rawURL)
	}
	if u.Port() == "" {
		port := "443"
		if u.Scheme == "http" {
			port = "80"
		}
		host = host + ":" + port
	}
	return host, nil
}

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Determine config path:
	// - Explicit via -config
	// - Otherwise auto-load ${VIDSYNC_DATA}/config.yaml if it exists
	effectiveConfigPath := strings.TrimSpace(*configPath)
	if effectiveConfigPath == "" {
		dataDir := strings.TrimSpace(config.ParseString("VIDSYNC_DATA", ""))
		if dataDir != "" {
			autoPath := filepath.Join(dataDir, "config.yaml")
			if _, err := os.Stat(autoPath); err == nil {
				effectiveConfigPath = autoPath
			}
		}
	}

	cfg, err := config.Load(effectiveConfigPath)
	if err != nil {
		vslog.Configure(vslog.Config{Level: "info", Service: "vidsync", Version: version})
		daemonLogger := vslog.WithComponent("daemon")
		daemonLogger.Fatal().
			Err(err).
			Str("event", "config.load_failed").
			Str("config_path", effectiveConfigPath).
			Msg("failed to load configuration")
	}

	vslog.Configure(vslog.Config{
		Level:   cfg.LogLevel,
		Service: "vidsync",
		Version: version,
	})
	logger := vslog.WithComponent("daemon")

	if effectiveConfigPath != "" {
		logger.Info().
			Str("event", "config.loaded").
			Str("source", "file").
			Str("path", effectiveConfigPath).
			Msg("loaded configuration from file")
	} else {
		logger.Info().
			Str("event", "config.loaded").
			Str("source", "env+defaults").
			Msg("loaded configuration from environment and defaults")
	}

	tracing, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Tracing.Enabled,
		ServiceName:    "vidsyncd",
		ServiceVersion: version,
		ExporterType:   cfg.Tracing.ExporterType,
		Endpoint:       cfg.Tracing.Endpoint,
		SamplingRate:   cfg.Tracing.SamplingRate,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize tracing")
	}
	defer func() {
		if err := tracing.Shutdown(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("tracing shutdown failed")
		}
	}()

	st, err := store.Open(cfg.StoreBackend, cfg.StorePath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.StorePath).Msg("failed to open local store")
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Warn().Err(err).Msg("store close failed")
		}
	}()

	tokenPath := cfg.LedgerTokenFile
	if tokenPath == "" {
		tokenPath = filepath.Join(cfg.DataDir, "token.json")
	}
	ident := identity.NewFileProvider(cfg.Account, tokenPath)

	probe, err := probeAddr(cfg.LedgerBaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid ledger base url")
	}
	network := netstat.NewDialProbe(probe, 0, 0)

	client := ledger.NewClient(cfg.LedgerBaseURL, ident, ledger.WithTimeout(cfg.LedgerTimeout))

	var snapshots ledger.SnapshotCache
	switch cfg.CacheBackend {
	case "redis":
		snapshots, err = ledger.NewRedisCache(ledger.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.CacheTTL,
		}, vslog.WithComponent("redis-cache"))
		if err != nil {
			logger.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("failed to connect redis snapshot cache")
		}
	default:
		snapshots = ledger.NewMemoryCache(cfg.CacheTTL, 10*time.Minute)
	}

	led := ledger.NewCachingLedger(client, snapshots, vslog.WithComponent("ledger"))

	engine := syncengine.New(syncengine.Config{
		Store:       st,
		Ledger:      led,
		Identity:    ident,
		Network:     network,
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.BaseDelay,
		Logger:      vslog.WithComponent("sync"),
	})

	server := api.New(api.Config{
		Listen:    cfg.APIListen,
		Version:   version,
		TokenPath: tokenPath,
		Engine:    engine,
		Store:     st,
		Identity:  ident,
		Network:   network,
		Logger:    vslog.WithComponent("api"),
	})

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()

	go runPeriodicSync(ctx, engine, cfg.SyncInterval, logger)

	logger.Info().
		Str("account", cfg.Account).
		Str("listen", cfg.APIListen).
		Dur("sync_interval", cfg.SyncInterval).
		Msg("vidsyncd started")

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			logger.Error().Err(err).Msg("api server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("api server shutdown failed")
	}
	logger.Info().Msg("vidsyncd stopped")
}

// runPeriodicSync triggers a bidirectional sync on a fixed interval. The
// engine enforces the identity and consent gates, so an idle or signed-out
// device just logs at debug level and waits for the next tick.
func runPeriodicSync(ctx context.Context, engine *syncengine.Engine, interval time.Duration, logger zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		_, err := engine.Sync(ctx)
		kind := syncengine.Classify(err)
		switch {
		case err == nil:
			logger.Info().Msg("periodic sync complete")
		case kind == syncengine.KindNotSignedIn, kind == syncengine.KindAnonymous, kind == syncengine.KindConsentRequired:
			logger.Debug().Str("reason", string(kind)).Msg("periodic sync skipped")
		default:
			logger.Warn().Err(err).Str("kind", string(kind)).Msg("periodic sync failed")
		}
	}
}
