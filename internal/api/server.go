// SPDX-License-Identifier: MIT

// Package api serves the flight query endpoints: plain JSON for single
// searches and pricing, Server-Sent Events for batches.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/sersery88/flight-ibe/internal/fanout"
	"github.com/sersery88/flight-ibe/internal/health"
	xglog "github.com/sersery88/flight-ibe/internal/log"
	"github.com/sersery88/flight-ibe/internal/provider"
	"github.com/sersery88/flight-ibe/internal/upstream"
)

// Config holds the HTTP-facing limits and stream settings.
type Config struct {
	ServiceName          string
	RateLimitRPM         int
	AllowedOrigins       []string
	TracingEnabled       bool
	MatrixConcurrency    int
	ItemConcurrency      int
	MaxMatrixCells       int
	KeepAlive            time.Duration
	MatrixProgressEvery  int
	PricingProgressEvery int
}

// TokenSource is the primary account's credential manager. Batches check it
// once up front so an authentication failure fails the whole request.
type TokenSource interface {
	Token(ctx context.Context) (upstream.Token, error)
}

// Deps are the collaborators the handlers call into.
type Deps struct {
	Provider *provider.Service
	Executor *fanout.Executor
	// Search answers /flight-search. Nil means Provider, which combines
	// every configured source.
	Search provider.SearchProvider
	Tokens TokenSource
	Health *health.Manager
}

// Server owns the router and the batch schedulers.
type Server struct {
	cfg      Config
	provider *provider.Service
	search   provider.SearchProvider
	tokens   TokenSource
	health   *health.Manager
	matrix   *fanout.Scheduler
	items    *fanout.Scheduler
	logger   zerolog.Logger
	handler  http.Handler
}

// New wires the server. Zero limits fall back to the defaults of a fresh
// configuration.
func New(cfg Config, deps Deps) *Server {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "flight-ibe"
	}
	if cfg.MatrixConcurrency < 1 {
		cfg.MatrixConcurrency = 4
	}
	if cfg.ItemConcurrency < 1 {
		cfg.ItemConcurrency = 10
	}
	if cfg.MaxMatrixCells < 1 {
		cfg.MaxMatrixCells = 120
	}
	if cfg.MatrixProgressEvery < 1 {
		cfg.MatrixProgressEvery = 5
	}
	if cfg.PricingProgressEvery < 1 {
		cfg.PricingProgressEvery = 1
	}
	if deps.Health == nil {
		deps.Health = health.NewManager("")
	}

	s := &Server{
		cfg:      cfg,
		provider: deps.Provider,
		search:   deps.Search,
		tokens:   deps.Tokens,
		health:   deps.Health,
		matrix:   fanout.NewScheduler(deps.Executor, cfg.MatrixConcurrency),
		items:    fanout.NewScheduler(deps.Executor, cfg.ItemConcurrency),
		logger:   xglog.WithComponent("api"),
	}
	if s.search == nil {
		s.search = deps.Provider
	}
	s.handler = s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }

// checkCredentials fails fast when the primary account cannot authenticate.
func (s *Server) checkCredentials(ctx context.Context) error {
	if s.tokens == nil {
		return nil
	}
	_, err := s.tokens.Token(ctx)
	return err
}
