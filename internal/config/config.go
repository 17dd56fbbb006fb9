// SPDX-License-Identifier: MIT

// Package config loads the service configuration with the precedence
// ENV > YAML file > defaults and validates the result.
package config

import "time"

// AppConfig is the fully resolved configuration.
type AppConfig struct {
	Version string `yaml:"-"`

	Server    ServerConfig    `yaml:"server"`
	Upstream  UpstreamConfig  `yaml:"upstream"`
	Secondary SecondaryConfig `yaml:"secondary"`
	Limits    LimitsConfig    `yaml:"limits"`
	Cache     CacheConfig     `yaml:"cache"`
	Stream    StreamConfig    `yaml:"stream"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig is the inbound HTTP surface.
type ServerConfig struct {
	ListenAddr      string        `yaml:"listenAddr"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	// RateLimitRPM caps requests per client IP per minute. Zero disables it.
	RateLimitRPM int `yaml:"rateLimitRpm"`
}

// UpstreamConfig is the primary provider account.
type UpstreamConfig struct {
	// Environment is "test" or "production" and selects the base URL.
	Environment  string        `yaml:"environment"`
	BaseURL      string        `yaml:"baseUrl"`
	ClientID     string        `yaml:"clientId"`
	ClientSecret string        `yaml:"clientSecret"`
	Source       string        `yaml:"source"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   int           `yaml:"maxRetries"`
}

// SecondaryConfig is the optional second content source. It shares the
// upstream timeout and retry policy.
type SecondaryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	BaseURL      string  `yaml:"baseUrl"`
	ClientID     string  `yaml:"clientId"`
	ClientSecret string  `yaml:"clientSecret"`
	Source       string  `yaml:"source"`
	SearchTPS    float64 `yaml:"searchTps"`
	PricingTPS   float64 `yaml:"pricingTps"`
}

// LimitsConfig bounds outbound pacing and fan-out width per endpoint class.
type LimitsConfig struct {
	SearchTPS         float64 `yaml:"searchTps"`
	PricingTPS        float64 `yaml:"pricingTps"`
	MatrixConcurrency int     `yaml:"matrixConcurrency"`
	ItemConcurrency   int     `yaml:"itemConcurrency"`
	MaxMatrixCells    int     `yaml:"maxMatrixCells"`
}

// CacheConfig selects the response cache backend.
type CacheConfig struct {
	Backend   string        `yaml:"backend"`
	SearchTTL time.Duration `yaml:"searchTtl"`
	Redis     RedisConfig   `yaml:"redis"`
	Badger    BadgerConfig  `yaml:"badger"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type BadgerConfig struct {
	// Path is the data directory. Empty runs in memory.
	Path string `yaml:"path"`
}

// StreamConfig tunes the event streams.
type StreamConfig struct {
	KeepAlive            time.Duration `yaml:"keepAlive"`
	MatrixProgressEvery  int           `yaml:"matrixProgressEvery"`
	PricingProgressEvery int           `yaml:"pricingProgressEvery"`
}

type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"samplingRate"`
	Environment  string  `yaml:"environment"`
}

type LoggingConfig struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
}
