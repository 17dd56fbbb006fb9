// SPDX-License-Identifier: MIT

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading with precedence
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{} // every env key the loader consulted
}

// NewLoader creates a new configuration loader. An empty configPath skips
// the file layer.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, defaultVal)
}

// Load loads configuration with precedence: ENV > File > Defaults, then
// validates the result.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	l.mergeEnvConfig(&cfg)
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile decodes a YAML file over cfg with STRICT parsing: unknown keys,
// type mismatches and trailing documents are errors. Keys absent from the
// file keep their default.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("%w: %v", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return nil
}

// mergeEnvConfig applies environment overrides. The unprefixed provider and
// Redis keys are the names operators already export for this service.
func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	cfg.Server.ListenAddr = l.envString("ADDR", cfg.Server.ListenAddr)
	cfg.Server.ReadTimeout = l.envDuration("FLIGHT_IBE_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.ShutdownTimeout = l.envDuration("FLIGHT_IBE_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)
	cfg.Server.RateLimitRPM = l.envInt("FLIGHT_IBE_RATE_LIMIT_RPM", cfg.Server.RateLimitRPM)

	cfg.Upstream.Environment = l.envString("AMADEUS_ENV", cfg.Upstream.Environment)
	cfg.Upstream.BaseURL = l.envString("AMADEUS_BASE_URL", cfg.Upstream.BaseURL)
	cfg.Upstream.ClientID = l.envString("AMADEUS_CLIENT_ID", cfg.Upstream.ClientID)
	cfg.Upstream.ClientSecret = l.envString("AMADEUS_CLIENT_SECRET", cfg.Upstream.ClientSecret)
	cfg.Upstream.Timeout = l.envDuration("FLIGHT_IBE_UPSTREAM_TIMEOUT", cfg.Upstream.Timeout)
	cfg.Upstream.MaxRetries = l.envInt("FLIGHT_IBE_MAX_RETRIES", cfg.Upstream.MaxRetries)

	cfg.Secondary.Enabled = l.envBool("NDC_ENABLED", cfg.Secondary.Enabled)
	cfg.Secondary.BaseURL = l.envString("NDC_BASE_URL", cfg.Secondary.BaseURL)
	cfg.Secondary.ClientID = l.envString("NDC_CLIENT_ID", cfg.Secondary.ClientID)
	cfg.Secondary.ClientSecret = l.envString("NDC_CLIENT_SECRET", cfg.Secondary.ClientSecret)

	cfg.Limits.SearchTPS = l.envFloat("FLIGHT_IBE_SEARCH_TPS", cfg.Limits.SearchTPS)
	cfg.Limits.PricingTPS = l.envFloat("FLIGHT_IBE_PRICING_TPS", cfg.Limits.PricingTPS)
	cfg.Limits.MatrixConcurrency = l.envInt("FLIGHT_IBE_MATRIX_CONCURRENCY", cfg.Limits.MatrixConcurrency)
	cfg.Limits.ItemConcurrency = l.envInt("FLIGHT_IBE_ITEM_CONCURRENCY", cfg.Limits.ItemConcurrency)

	cfg.Cache.Redis.URL = l.envString("REDIS_URL", cfg.Cache.Redis.URL)
	if cfg.Cache.Redis.URL != "" && cfg.Cache.Backend == "none" {
		// Exporting REDIS_URL alone is enough to turn the cache on.
		cfg.Cache.Backend = "redis"
	}
	cfg.Cache.Backend = l.envString("FLIGHT_IBE_CACHE_BACKEND", cfg.Cache.Backend)
	cfg.Cache.SearchTTL = l.envDuration("FLIGHT_IBE_SEARCH_CACHE_TTL", cfg.Cache.SearchTTL)
	cfg.Cache.Badger.Path = l.envString("FLIGHT_IBE_BADGER_PATH", cfg.Cache.Badger.Path)

	cfg.Stream.KeepAlive = l.envDuration("FLIGHT_IBE_STREAM_KEEPALIVE", cfg.Stream.KeepAlive)

	cfg.Telemetry.Enabled = l.envBool("FLIGHT_IBE_TELEMETRY_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = l.envString("FLIGHT_IBE_TELEMETRY_EXPORTER", cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = l.envString("FLIGHT_IBE_TELEMETRY_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = l.envFloat("FLIGHT_IBE_TELEMETRY_SAMPLING_RATE", cfg.Telemetry.SamplingRate)

	cfg.Logging.Level = l.envString("LOG_LEVEL", cfg.Logging.Level)
}
