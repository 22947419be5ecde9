// Package config loads greenroute settings from YAML, .env files and the environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/NERVsystems/greenroute/pkg/cache"
	"github.com/NERVsystems/greenroute/pkg/core"
	"github.com/NERVsystems/greenroute/pkg/gasprice"
	"github.com/NERVsystems/greenroute/pkg/provider"
	"github.com/NERVsystems/greenroute/pkg/tracing"
)

// Environment variables read by Load.
const (
	EnvPrefix      = "GREENROUTE_"
	EnvAccessToken = "MAPBOX_ACCESS_TOKEN"
	EnvOTLP        = "OTLP_ENDPOINT"
)

// CacheConfig controls one response cache.
type CacheConfig struct {
	TTLSeconds int  `yaml:"ttl_seconds"`
	Enabled    bool `yaml:"enabled"`
	MaxEntries int  `yaml:"max_entries"`
}

// CachesConfig groups the provider caches.
type CachesConfig struct {
	Geocoding              CacheConfig `yaml:"geocoding"`
	Directions             CacheConfig `yaml:"directions"`
	CleanupIntervalSeconds int         `yaml:"cleanup_interval_seconds"`
}

// ProviderConfig configures the geocoding and directions provider.
type ProviderConfig struct {
	BaseURL           string  `yaml:"base_url"`
	AccessToken       string  `yaml:"access_token"`
	UserAgent         string  `yaml:"user_agent"`
	TimeoutSeconds    int     `yaml:"timeout_seconds"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
	RetryAttempts     int     `yaml:"retry_attempts"`
}

// GasConfig overrides the built-in fuel price table.
type GasConfig struct {
	DefaultPricePerGallon float64          `yaml:"default_price_per_gallon"`
	Prices                []gasprice.Entry `yaml:"prices"`
}

// ServerConfig configures the REST API and the MCP HTTP transport.
type ServerConfig struct {
	Addr              string   `yaml:"addr"`
	AuthToken         string   `yaml:"auth_token"`
	CORSOrigins       []string `yaml:"cors_origins"`
	RequestsPerSecond float64  `yaml:"requests_per_second"`
	Burst             int      `yaml:"burst"`
	MaxBodyBytes      int64    `yaml:"max_body_bytes"`
	EnableMCP         bool     `yaml:"enable_mcp"`
}

// MonitoringConfig configures the metrics listener and dependency checks.
type MonitoringConfig struct {
	Enabled              bool   `yaml:"enabled"`
	Addr                 string `yaml:"addr"`
	CheckIntervalSeconds int    `yaml:"check_interval_seconds"`
}

// RegistryConfig announces the server to a service registry. An empty URL
// disables registration.
type RegistryConfig struct {
	URL                      string `yaml:"url"`
	ServiceName              string `yaml:"service_name"`
	ServiceURL               string `yaml:"service_url"`
	InternalURL              string `yaml:"internal_url"`
	HeartbeatIntervalSeconds int    `yaml:"heartbeat_interval_seconds"`
}

// Config is the complete greenroute configuration.
type Config struct {
	LogLevel   string           `yaml:"log_level"`
	LogFormat  string           `yaml:"log_format"`
	Provider   ProviderConfig   `yaml:"provider"`
	Cache      CachesConfig     `yaml:"cache"`
	Gas        GasConfig        `yaml:"gas"`
	Server     ServerConfig     `yaml:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Tracing    tracing.Config   `yaml:"tracing"`
	Registry   RegistryConfig   `yaml:"registry"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel:  "info",
		LogFormat: "text",
		Provider: ProviderConfig{
			BaseURL:           provider.DefaultBaseURL,
			UserAgent:         provider.DefaultUserAgent,
			TimeoutSeconds:    10,
			RequestsPerSecond: 10,
			Burst:             5,
			RetryAttempts:     core.DefaultRetryOptions.MaxAttempts,
		},
		Cache: CachesConfig{
			Geocoding:              CacheConfig{TTLSeconds: 86400, Enabled: true, MaxEntries: cache.DefaultMaxEntries},
			Directions:             CacheConfig{TTLSeconds: 3600, Enabled: true, MaxEntries: cache.DefaultMaxEntries},
			CleanupIntervalSeconds: 300,
		},
		Gas: GasConfig{
			DefaultPricePerGallon: gasprice.DefaultPricePerGallon,
		},
		Server: ServerConfig{
			Addr:              ":8080",
			CORSOrigins:       []string{"*"},
			RequestsPerSecond: 20,
			Burst:             40,
			MaxBodyBytes:      1 << 20,
			EnableMCP:         true,
		},
		Monitoring: MonitoringConfig{
			Enabled:              true,
			Addr:                 ":9090",
			CheckIntervalSeconds: 60,
		},
		Tracing: tracing.Config{
			Environment: "development",
			SampleRatio: 1.0,
		},
		Registry: RegistryConfig{
			ServiceName:              "greenroute",
			HeartbeatIntervalSeconds: 30,
		},
	}
}

// Load builds a Config from defaults, an optional YAML file, an optional
// .env file and the process environment, in that order.
func Load(path, envFile string) (Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return cfg, fmt.Errorf("open config %s: %w", path, err)
		}
		defer f.Close()
		if err := decodeYAML(f, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if envFile != "" {
		// godotenv never overrides variables already set in the environment.
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func decodeYAML(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	if v, ok := lookup(EnvAccessToken); ok {
		c.Provider.AccessToken = v
	}
	if v, ok := lookup(EnvOTLP); ok {
		c.Tracing.Endpoint = v
	}

	strVars := map[string]*string{
		"LOG_LEVEL":         &c.LogLevel,
		"LOG_FORMAT":        &c.LogFormat,
		"PROVIDER_BASE_URL": &c.Provider.BaseURL,
		"ACCESS_TOKEN":      &c.Provider.AccessToken,
		"ADDR":              &c.Server.Addr,
		"AUTH_TOKEN":        &c.Server.AuthToken,
		"METRICS_ADDR":      &c.Monitoring.Addr,
		"REGISTRY_URL":      &c.Registry.URL,
		"SERVICE_URL":       &c.Registry.ServiceURL,
		"INTERNAL_URL":      &c.Registry.InternalURL,
	}
	for name, dst := range strVars {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}

	intVars := map[string]*int{
		"GEOCODING_CACHE_TTL":  &c.Cache.Geocoding.TTLSeconds,
		"DIRECTIONS_CACHE_TTL": &c.Cache.Directions.TTLSeconds,
		"CACHE_MAX_ENTRIES":    &c.Cache.Geocoding.MaxEntries,
		"PROVIDER_BURST":       &c.Provider.Burst,
		"RETRY_ATTEMPTS":       &c.Provider.RetryAttempts,
	}
	for name, dst := range intVars {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = n
	}
	if _, ok := lookup(EnvPrefix + "CACHE_MAX_ENTRIES"); ok {
		c.Cache.Directions.MaxEntries = c.Cache.Geocoding.MaxEntries
	}

	if v, ok := lookup(EnvPrefix + "CACHE_ENABLED"); ok {
		enabled, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%sCACHE_ENABLED: %w", EnvPrefix, err)
		}
		c.Cache.Geocoding.Enabled = enabled
		c.Cache.Directions.Enabled = enabled
	}

	if v, ok := lookup(EnvPrefix + "PROVIDER_RPS"); ok {
		rps, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("%sPROVIDER_RPS: %w", EnvPrefix, err)
		}
		c.Provider.RequestsPerSecond = rps
	}

	if v, ok := lookup(EnvPrefix + "CORS_ORIGINS"); ok {
		c.Server.CORSOrigins = splitList(v)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log_format must be text or json, got %q", c.LogFormat)
	}
	if strings.TrimSpace(c.Provider.BaseURL) == "" {
		return errors.New("provider.base_url must not be empty")
	}
	if c.Provider.RequestsPerSecond <= 0 || c.Provider.Burst < 1 {
		return fmt.Errorf("provider rate limit must be positive, got %v rps burst %d", c.Provider.RequestsPerSecond, c.Provider.Burst)
	}
	if c.Provider.RetryAttempts < 1 {
		return fmt.Errorf("provider.retry_attempts must be at least 1, got %d", c.Provider.RetryAttempts)
	}
	for name, cc := range map[string]CacheConfig{"geocoding": c.Cache.Geocoding, "directions": c.Cache.Directions} {
		if cc.TTLSeconds < 0 {
			return fmt.Errorf("cache.%s.ttl_seconds must not be negative, got %d", name, cc.TTLSeconds)
		}
		if cc.MaxEntries < 0 {
			return fmt.Errorf("cache.%s.max_entries must not be negative, got %d", name, cc.MaxEntries)
		}
	}
	if c.Server.RequestsPerSecond <= 0 || c.Server.Burst < 1 {
		return fmt.Errorf("server rate limit must be positive, got %v rps burst %d", c.Server.RequestsPerSecond, c.Server.Burst)
	}
	for _, e := range c.Gas.Prices {
		if e.PricePerGallon <= 0 {
			return fmt.Errorf("gas price for %s %s must be positive", e.Country, e.Region)
		}
	}
	if c.Registry.URL != "" && c.Registry.ServiceURL == "" {
		return errors.New("registry.service_url is required when registry.url is set")
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be within [0,1], got %v", c.Tracing.SampleRatio)
	}
	return nil
}

// CacheOptions converts a cache section to a cache.Config.
func (c Config) CacheOptions(cc CacheConfig) cache.Config {
	return cache.Config{
		TTL:             time.Duration(cc.TTLSeconds) * time.Second,
		Enabled:         cc.Enabled,
		MaxEntries:      cc.MaxEntries,
		CleanupInterval: time.Duration(c.Cache.CleanupIntervalSeconds) * time.Second,
	}
}

// ProviderOptions converts the provider section to a provider.Config.
func (c Config) ProviderOptions() provider.Config {
	retry := core.DefaultRetryOptions
	retry.MaxAttempts = c.Provider.RetryAttempts
	return provider.Config{
		BaseURL:           c.Provider.BaseURL,
		AccessToken:       c.Provider.AccessToken,
		UserAgent:         c.Provider.UserAgent,
		Timeout:           time.Duration(c.Provider.TimeoutSeconds) * time.Second,
		RequestsPerSecond: c.Provider.RequestsPerSecond,
		Burst:             c.Provider.Burst,
		Retry:             retry,
	}
}

// PriceTable returns the built-in price table with configured overrides applied.
func (c Config) PriceTable() *gasprice.Table {
	entries := append(gasprice.DefaultTable().Entries(), c.Gas.Prices...)
	return gasprice.NewTable(entries, c.Gas.DefaultPricePerGallon)
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

// NewLogger builds the process logger. Output goes to w, normally stderr so
// stdout stays free for the MCP stdio transport.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := ParseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
