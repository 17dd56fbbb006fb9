// SPDX-License-Identifier: MIT

// Package daemon wires the configured components into a running service and
// owns its lifecycle.
package daemon

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sersery88/flight-ibe/internal/api"
	"github.com/sersery88/flight-ibe/internal/cache"
	"github.com/sersery88/flight-ibe/internal/config"
	"github.com/sersery88/flight-ibe/internal/fanout"
	"github.com/sersery88/flight-ibe/internal/gds"
	"github.com/sersery88/flight-ibe/internal/health"
	xglog "github.com/sersery88/flight-ibe/internal/log"
	"github.com/sersery88/flight-ibe/internal/platform/httpx"
	"github.com/sersery88/flight-ibe/internal/provider"
	"github.com/sersery88/flight-ibe/internal/ratelimit"
	"github.com/sersery88/flight-ibe/internal/telemetry"
	"github.com/sersery88/flight-ibe/internal/upstream"
)

// Runtime is the assembled service: the root handler plus everything that
// must be released on shutdown.
type Runtime struct {
	Handler     http.Handler
	Health      *health.Manager
	Credentials []*upstream.CredentialManager

	store     cache.Store
	telemetry *telemetry.Provider
}

// Bootstrap builds every component from cfg. Optional subsystems (cache,
// tracing) that fail to start are logged and skipped; only configuration
// errors are returned.
func Bootstrap(ctx context.Context, cfg config.AppConfig, logger zerolog.Logger) (*Runtime, error) {
	rt := &Runtime{}

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Logging.Service,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		logger.Warn().Err(err).
			Str(xglog.FieldEvent, "telemetry.disabled").
			Msg("Telemetry initialization failed, continuing without tracing")
	} else {
		rt.telemetry = tp
		if cfg.Telemetry.Enabled {
			logger.Info().
				Str("endpoint", cfg.Telemetry.Endpoint).
				Float64("sampling_rate", cfg.Telemetry.SamplingRate).
				Msg("Telemetry initialized")
		}
	}

	client := httpx.NewInstrumentedClient(cfg.Upstream.Timeout)

	baseURL := strings.TrimSpace(cfg.Upstream.BaseURL)
	if baseURL == "" {
		baseURL = gds.BaseURLFor(cfg.Upstream.Environment)
	}
	primary, primaryCreds, err := newSource(account{
		name:         cfg.Upstream.Source,
		baseURL:      baseURL,
		clientID:     cfg.Upstream.ClientID,
		clientSecret: cfg.Upstream.ClientSecret,
		searchTPS:    cfg.Limits.SearchTPS,
		pricingTPS:   cfg.Limits.PricingTPS,
		maxRetries:   cfg.Upstream.MaxRetries,
	}, client, logger)
	if err != nil {
		return nil, err
	}
	rt.Credentials = append(rt.Credentials, primaryCreds)

	var secondary *provider.Source
	var secondaryCreds *upstream.CredentialManager
	if cfg.Secondary.Enabled {
		secondaryURL := strings.TrimSpace(cfg.Secondary.BaseURL)
		if secondaryURL == "" {
			secondaryURL = baseURL
		}
		secondary, secondaryCreds, err = newSource(account{
			name:         cfg.Secondary.Source,
			baseURL:      secondaryURL,
			clientID:     cfg.Secondary.ClientID,
			clientSecret: cfg.Secondary.ClientSecret,
			searchTPS:    cfg.Secondary.SearchTPS,
			pricingTPS:   cfg.Secondary.PricingTPS,
			maxRetries:   cfg.Upstream.MaxRetries,
		}, client, logger)
		if err != nil {
			return nil, err
		}
		rt.Credentials = append(rt.Credentials, secondaryCreds)
	}

	rt.store = cache.Open(ctx, cache.Options{
		Backend: cfg.Cache.Backend,
		Redis: cache.RedisConfig{
			URL:      cfg.Cache.Redis.URL,
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		},
		BadgerPath: cfg.Cache.Badger.Path,
	}, xglog.WithComponent("cache"))
	aside := cache.NewAside(rt.store, 0)

	exec := fanout.NewExecutor(aside, nil)
	svc := provider.New(exec, primary, secondary, cfg.Cache.SearchTTL)

	rt.Health = health.NewManager(cfg.Version)
	rt.Health.RegisterChecker(health.NewCacheChecker(aside))
	rt.Health.RegisterChecker(health.NewCredentialsChecker(primary.Name(), primaryCreds, true))
	if secondaryCreds != nil {
		rt.Health.RegisterChecker(health.NewCredentialsChecker(secondary.Name(), secondaryCreds, false))
	}

	srv := api.New(api.Config{
		ServiceName:          cfg.Logging.Service,
		RateLimitRPM:         cfg.Server.RateLimitRPM,
		TracingEnabled:       cfg.Telemetry.Enabled,
		MatrixConcurrency:    cfg.Limits.MatrixConcurrency,
		ItemConcurrency:      cfg.Limits.ItemConcurrency,
		MaxMatrixCells:       cfg.Limits.MaxMatrixCells,
		KeepAlive:            cfg.Stream.KeepAlive,
		MatrixProgressEvery:  cfg.Stream.MatrixProgressEvery,
		PricingProgressEvery: cfg.Stream.PricingProgressEvery,
	}, api.Deps{
		Provider: svc,
		Executor: exec,
		Tokens:   primaryCreds,
		Health:   rt.Health,
	})
	rt.Handler = srv.Handler()

	logger.Info().
		Str("primary", primary.Name()).
		Bool("secondary", secondary != nil).
		Str("cache", aside.Backend()).
		Str(xglog.FieldEvent, "bootstrap.complete").
		Msg("service components wired")
	return rt, nil
}

type account struct {
	name         string
	baseURL      string
	clientID     string
	clientSecret string
	searchTPS    float64
	pricingTPS   float64
	maxRetries   int
}

// newSource builds one provider account: its token manager, its retrying
// caller and one pacer per endpoint class.
func newSource(acct account, client *http.Client, logger zerolog.Logger) (*provider.Source, *upstream.CredentialManager, error) {
	searchGate, err := ratelimit.NewPacer(acct.name+"/search", acct.searchTPS)
	if err != nil {
		return nil, nil, fmt.Errorf("source %s: %w", acct.name, err)
	}
	pricingGate, err := ratelimit.NewPacer(acct.name+"/pricing", acct.pricingTPS)
	if err != nil {
		return nil, nil, fmt.Errorf("source %s: %w", acct.name, err)
	}
	for _, p := range []*ratelimit.Pacer{searchGate, pricingGate} {
		logger.Info().
			Str(xglog.FieldSource, acct.name).
			Str("class", p.Class()).
			Float64("tps", p.TPS()).
			Dur("interval", p.Interval()).
			Msg("upstream pacing configured")
	}

	creds := upstream.NewCredentialManager(acct.name, acct.baseURL, upstream.Credentials{
		ClientID:     acct.clientID,
		ClientSecret: acct.clientSecret,
	}, client)
	caller := upstream.NewCaller(acct.baseURL, client, creds, upstream.WithMaxRetries(acct.maxRetries))

	return &provider.Source{
		Client:      gds.NewClient(caller, acct.name),
		SearchGate:  searchGate,
		PricingGate: pricingGate,
	}, creds, nil
}

// RegisterShutdownHooks releases the runtime's resources after the server
// has drained.
func (rt *Runtime) RegisterShutdownHooks(m Manager) {
	if rt.telemetry != nil {
		m.RegisterShutdownHook("telemetry", rt.telemetry.Shutdown)
	}
	if rt.store != nil {
		store := rt.store
		m.RegisterShutdownHook("cache", func(context.Context) error { return store.Close() })
	}
}
