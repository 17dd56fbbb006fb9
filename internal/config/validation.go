// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/sersery88/flight-ibe/internal/validate"
)

// Validate reports every problem in cfg at once, wrapped in ErrInvalidConfig.
// Missing provider credentials are not an error here: the service starts
// and every request then fails with an authentication error.
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.HostPort("server.listenAddr", cfg.Server.ListenAddr)
	v.MinDuration("server.readTimeout", cfg.Server.ReadTimeout, time.Second)
	v.MinDuration("server.shutdownTimeout", cfg.Server.ShutdownTimeout, time.Second)
	v.NonNegative("server.rateLimitRpm", cfg.Server.RateLimitRPM)

	v.OneOf("upstream.environment", cfg.Upstream.Environment, []string{"test", "production"})
	if cfg.Upstream.BaseURL != "" {
		v.URL("upstream.baseUrl", cfg.Upstream.BaseURL, []string{"http", "https"})
	}
	v.NotEmpty("upstream.source", cfg.Upstream.Source)
	v.MinDuration("upstream.timeout", cfg.Upstream.Timeout, time.Second)
	v.Range("upstream.maxRetries", cfg.Upstream.MaxRetries, 0, 10)

	if cfg.Secondary.Enabled {
		v.URL("secondary.baseUrl", cfg.Secondary.BaseURL, []string{"http", "https"})
		v.NotEmpty("secondary.source", cfg.Secondary.Source)
		if strings.EqualFold(cfg.Secondary.Source, cfg.Upstream.Source) {
			v.AddError("secondary.source", "must differ from upstream.source", cfg.Secondary.Source)
		}
		v.FloatRange("secondary.searchTps", cfg.Secondary.SearchTPS, 0.1, 1000)
		v.FloatRange("secondary.pricingTps", cfg.Secondary.PricingTPS, 0.1, 1000)
	}

	v.FloatRange("limits.searchTps", cfg.Limits.SearchTPS, 0.1, 1000)
	v.FloatRange("limits.pricingTps", cfg.Limits.PricingTPS, 0.1, 1000)
	v.Range("limits.matrixConcurrency", cfg.Limits.MatrixConcurrency, 1, 64)
	v.Range("limits.itemConcurrency", cfg.Limits.ItemConcurrency, 1, 64)
	v.Range("limits.maxMatrixCells", cfg.Limits.MaxMatrixCells, 1, 961)

	v.OneOf("cache.backend", cfg.Cache.Backend, []string{"none", "memory", "redis", "badger"})
	v.MinDuration("cache.searchTtl", cfg.Cache.SearchTTL, time.Second)
	if cfg.Cache.Backend == "redis" && cfg.Cache.Redis.URL == "" {
		v.HostPort("cache.redis.addr", cfg.Cache.Redis.Addr)
	}
	if cfg.Cache.Backend == "badger" && cfg.Cache.Badger.Path != "" {
		v.Directory("cache.badger.path", cfg.Cache.Badger.Path, false)
	}

	v.MinDuration("stream.keepAlive", cfg.Stream.KeepAlive, 100*time.Millisecond)
	v.Positive("stream.matrixProgressEvery", cfg.Stream.MatrixProgressEvery)
	v.Positive("stream.pricingProgressEvery", cfg.Stream.PricingProgressEvery)

	if cfg.Telemetry.Enabled {
		v.OneOf("telemetry.exporter", cfg.Telemetry.Exporter, []string{"grpc", "http"})
		v.NotEmpty("telemetry.endpoint", cfg.Telemetry.Endpoint)
		v.FloatRange("telemetry.samplingRate", cfg.Telemetry.SamplingRate, 0, 1)
	}

	if _, err := validate.ParseLogLevel(cfg.Logging.Level); err != nil {
		v.AddError("logging.level", err.Error(), cfg.Logging.Level)
	}

	if err := v.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
