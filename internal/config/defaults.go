// SPDX-License-Identifier: MIT

package config

import "time"

// Defaults returns the built-in configuration, the lowest precedence layer.
func Defaults() AppConfig {
	return AppConfig{
		Server: ServerConfig{
			ListenAddr:      "0.0.0.0:3000",
			ReadTimeout:     15 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RateLimitRPM:    600,
		},
		Upstream: UpstreamConfig{
			Environment: "test",
			Source:      "GDS",
			Timeout:     30 * time.Second,
			MaxRetries:  3,
		},
		Secondary: SecondaryConfig{
			Source:     "NDC",
			SearchTPS:  4,
			PricingTPS: 10,
		},
		Limits: LimitsConfig{
			SearchTPS:         4,
			PricingTPS:        10,
			MatrixConcurrency: 4,
			ItemConcurrency:   10,
			MaxMatrixCells:    120,
		},
		Cache: CacheConfig{
			Backend:   "none",
			SearchTTL: 300 * time.Second,
		},
		Stream: StreamConfig{
			KeepAlive:            time.Second,
			MatrixProgressEvery:  5,
			PricingProgressEvery: 1,
		},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
			Environment:  "development",
		},
		Logging: LoggingConfig{
			Level:   "info",
			Service: "flight-ibe",
		},
	}
}
