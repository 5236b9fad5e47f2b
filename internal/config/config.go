// SPDX-License-Identifier: MIT

// Package config provides configuration management for vidsyncd.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// FileConfig represents the YAML configuration structure.
type FileConfig struct {
	DataDir  string `yaml:"dataDir,omitempty"`
	LogLevel string `yaml:"logLevel,omitempty"`

	Account string       `yaml:"account"`
	Ledger  LedgerConfig `yaml:"ledger"`
	Store   StoreConfig  `yaml:"store,omitempty"`
	Sync    SyncConfig   `yaml:"sync,omitempty"`
	API     APIConfig    `yaml:"api,omitempty"`
	Tracing TraceConfig  `yaml:"tracing,omitempty"`
}

// LedgerConfig holds remote document store client configuration.
type LedgerConfig struct {
	BaseURL   string      `yaml:"baseUrl"`
	Timeout   string      `yaml:"timeout,omitempty"` // e.g. "10s"
	TokenFile string      `yaml:"tokenFile,omitempty"`
	Cache     CacheConfig `yaml:"cache,omitempty"`
}

// CacheConfig selects the ledger snapshot cache backend.
type CacheConfig struct {
	Backend string `yaml:"backend,omitempty"` // "memory" (default) or "redis"
	TTL     string `yaml:"ttl,omitempty"`     // e.g. "24h"
	Redis   struct {
		Addr     string `yaml:"addr,omitempty"`
		Password string `yaml:"password,omitempty"`
		DB       int    `yaml:"db,omitempty"`
	} `yaml:"redis,omitempty"`
}

// StoreConfig selects the local data store backend.
type StoreConfig struct {
	Backend string `yaml:"backend,omitempty"` // "badger" (default) or "memory"
	Path    string `yaml:"path,omitempty"`
}

// SyncConfig holds engine tuning knobs.
type SyncConfig struct {
	Interval    string `yaml:"interval,omitempty"`    // periodic sync interval, e.g. "15m"
	MaxAttempts int    `yaml:"maxAttempts,omitempty"` // remote read retry budget
	BaseDelay   string `yaml:"baseDelay,omitempty"`   // retry backoff unit, e.g. "1s"
}

// APIConfig holds the HTTP control surface settings.
type APIConfig struct {
	Listen string `yaml:"listen,omitempty"`
}

// TraceConfig holds OTLP tracing settings.
type TraceConfig struct {
	Enabled      bool    `yaml:"enabled,omitempty"`
	ExporterType string  `yaml:"exporterType,omitempty"` // "grpc", "http" or "noop"
	Endpoint     string  `yaml:"endpoint,omitempty"`
	SamplingRate float64 `yaml:"samplingRate,omitempty"`
}

// AppConfig is the resolved runtime configuration after file load, env
// overrides, defaults and validation.
type AppConfig struct {
	DataDir  string
	LogLevel string

	Account string

	LedgerBaseURL   string
	LedgerTimeout   time.Duration
	LedgerTokenFile string

	CacheBackend  string
	CacheTTL      time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	StoreBackend string
	StorePath    string

	SyncInterval time.Duration
	MaxAttempts  int
	BaseDelay    time.Duration

	APIListen string

	Tracing TraceConfig
}

// Load reads the YAML file at path (optional), applies VIDSYNC_* environment
// overrides, fills defaults and validates the result.
func Load(path string) (AppConfig, error) {
	var fc FileConfig
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return AppConfig{}, fmt.Errorf("read config file: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		if err := dec.Decode(&fc); err != nil {
			return AppConfig{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg, err := resolve(fc)
	if err != nil {
		return AppConfig{}, err
	}
	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func resolve(fc FileConfig) (AppConfig, error) {
	cfg := AppConfig{
		DataDir:  ParseString("VIDSYNC_DATA", firstNonEmpty(fc.DataDir, defaultDataDir())),
		LogLevel: ParseString("VIDSYNC_LOG_LEVEL", firstNonEmpty(fc.LogLevel, "info")),
		Account:  ParseString("VIDSYNC_ACCOUNT", fc.Account),

		LedgerBaseURL:   ParseString("VIDSYNC_LEDGER_URL", fc.Ledger.BaseURL),
		LedgerTokenFile: ParseString("VIDSYNC_TOKEN_FILE", fc.Ledger.TokenFile),

		CacheBackend:  ParseString("VIDSYNC_CACHE_BACKEND", firstNonEmpty(fc.Ledger.Cache.Backend, "memory")),
		RedisAddr:     ParseString("VIDSYNC_REDIS_ADDR", fc.Ledger.Cache.Redis.Addr),
		RedisPassword: ParseString("VIDSYNC_REDIS_PASSWORD", fc.Ledger.Cache.Redis.Password),
		RedisDB:       ParseInt("VIDSYNC_REDIS_DB", fc.Ledger.Cache.Redis.DB),

		StoreBackend: ParseString("VIDSYNC_STORE_BACKEND", firstNonEmpty(fc.Store.Backend, "badger")),
		StorePath:    ParseString("VIDSYNC_STORE_PATH", fc.Store.Path),

		MaxAttempts: ParseInt("VIDSYNC_SYNC_MAX_ATTEMPTS", defaultInt(fc.Sync.MaxAttempts, 3)),

		APIListen: ParseString("VIDSYNC_API_LISTEN", firstNonEmpty(fc.API.Listen, ":8484")),

		Tracing: fc.Tracing,
	}

	var err error
	if cfg.LedgerTimeout, err = resolveDuration("VIDSYNC_LEDGER_TIMEOUT", fc.Ledger.Timeout, 10*time.Second); err != nil {
		return cfg, err
	}
	if cfg.CacheTTL, err = resolveDuration("VIDSYNC_CACHE_TTL", fc.Ledger.Cache.TTL, 24*time.Hour); err != nil {
		return cfg, err
	}
	if cfg.SyncInterval, err = resolveDuration("VIDSYNC_SYNC_INTERVAL", fc.Sync.Interval, 15*time.Minute); err != nil {
		return cfg, err
	}
	if cfg.BaseDelay, err = resolveDuration("VIDSYNC_SYNC_BASE_DELAY", fc.Sync.BaseDelay, time.Second); err != nil {
		return cfg, err
	}

	if cfg.StorePath == "" {
		cfg.StorePath = cfg.DataDir + "/store"
	}
	return cfg, nil
}

func (c AppConfig) validate() error {
	var errs []error
	if c.Account == "" {
		errs = append(errs, errors.New("account must be set (VIDSYNC_ACCOUNT or account:)"))
	}
	if c.LedgerBaseURL == "" {
		errs = append(errs, errors.New("ledger baseUrl must be set (VIDSYNC_LEDGER_URL or ledger.baseUrl:)"))
	}
	switch c.CacheBackend {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("unknown cache backend %q (want memory or redis)", c.CacheBackend))
	}
	if c.CacheBackend == "redis" && c.RedisAddr == "" {
		errs = append(errs, errors.New("redis cache backend requires ledger.cache.redis.addr"))
	}
	switch c.StoreBackend {
	case "badger", "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown store backend %q (want badger or memory)", c.StoreBackend))
	}
	if c.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("sync.maxAttempts must be >= 1, got %d", c.MaxAttempts))
	}
	return errors.Join(errs...)
}

func defaultDataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home + "/.vidsync"
	}
	return "/var/lib/vidsync"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func defaultInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func resolveDuration(envKey, fileValue string, def time.Duration) (time.Duration, error) {
	d := def
	if fileValue != "" {
		parsed, err := time.ParseDuration(fileValue)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", fileValue, err)
		}
		d = parsed
	}
	return ParseDuration(envKey, d), nil
}
