// SPDX-License-Identifier: MIT

// Package provider binds the provider accounts (a primary content source and
// an optional secondary one) to the fan-out executor: it builds the
// sub-queries for every operation and merges multi-source searches.
package provider

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sersery88/flight-ibe/internal/fanout"
	"github.com/sersery88/flight-ibe/internal/flight"
	"github.com/sersery88/flight-ibe/internal/gds"
	xglog "github.com/sersery88/flight-ibe/internal/log"
)

// DefaultSearchTTL is how long raw search responses stay cached.
const DefaultSearchTTL = 300 * time.Second

// Source is one provider account with its own pacers.
type Source struct {
	Client      *gds.Client
	SearchGate  fanout.Gate
	PricingGate fanout.Gate
}

// Name is the content tag of the source ("GDS", "NDC").
func (s *Source) Name() string { return s.Client.Source() }

// Service builds and runs sub-queries against the configured sources.
type Service struct {
	primary   *Source
	secondary *Source
	exec      *fanout.Executor
	searchTTL time.Duration
	logger    zerolog.Logger
}

// New wires a service. secondary may be nil. searchTTL <= 0 uses
// DefaultSearchTTL.
func New(exec *fanout.Executor, primary, secondary *Source, searchTTL time.Duration) *Service {
	if searchTTL <= 0 {
		searchTTL = DefaultSearchTTL
	}
	return &Service{
		primary:   primary,
		secondary: secondary,
		exec:      exec,
		searchTTL: searchTTL,
		logger:    xglog.WithComponent("provider"),
	}
}

// Primary returns the primary source.
func (s *Service) Primary() *Source { return s.primary }

// Secondary returns the secondary source, nil when not configured.
func (s *Service) Secondary() *Source { return s.secondary }

// Sources lists the configured sources, primary first.
func (s *Service) Sources() []*Source {
	if s.secondary == nil {
		return []*Source{s.primary}
	}
	return []*Source{s.primary, s.secondary}
}

// SourceFor routes an offer to the account that issued it. Offers without a
// recognised source tag go to the primary.
func (s *Service) SourceFor(o flight.Offer) *Source {
	if s.secondary != nil && o.Source != "" && strings.EqualFold(o.Source, s.secondary.Name()) {
		return s.secondary
	}
	return s.primary
}

// searchKey prefixes the shared search key with the source tag for every
// source but the primary, so two accounts never read each other's entries.
func (s *Service) searchKey(src *Source, req flight.SearchRequest) string {
	key := req.CacheKey()
	if src == s.primary {
		return key
	}
	return strings.ToLower(src.Name()) + ":" + key
}

// SearchQuery is the cache-aside search sub-query for src. decode turns the
// raw provider body into the outcome payload.
func (s *Service) SearchQuery(src *Source, id string, req flight.SearchRequest, decode func([]byte) (any, error)) fanout.SubQuery {
	req = req.Normalize()
	return fanout.SubQuery{
		ID:       id,
		CacheKey: s.searchKey(src, req),
		TTL:      s.searchTTL,
		Gate:     src.SearchGate,
		Fetch: func(ctx context.Context) ([]byte, error) {
			return src.Client.FetchSearch(ctx, req)
		},
		Decode: decode,
	}
}

func decodeOffers(operation string) func([]byte) (any, error) {
	return func(raw []byte) (any, error) {
		return gds.DecodeOffers(operation, raw)
	}
}

func decodePrice(raw []byte) (any, error) {
	return gds.DecodePrice(gds.OpPricing, raw)
}

func (s *Service) searchSource(ctx context.Context, src *Source, req flight.SearchRequest) (*flight.OffersResponse, error) {
	out := s.exec.Run(ctx, s.SearchQuery(src, src.Name(), req, decodeOffers(gds.OpSearch)))
	if out.Err != nil {
		return nil, out.Err
	}
	return out.Payload.(*flight.OffersResponse), nil
}

// SearchProvider answers a flight search. *Service implements it by
// combining every configured source; SourceSearcher binds one source.
type SearchProvider interface {
	Search(ctx context.Context, req flight.SearchRequest) (*flight.OffersResponse, error)
}

type sourceSearcher struct {
	svc *Service
	src *Source
}

// SourceSearcher returns a provider that queries src alone, through the
// same cache and pacing as the combined search.
func (s *Service) SourceSearcher(src *Source) SearchProvider {
	return sourceSearcher{svc: s, src: src}
}

func (p sourceSearcher) Search(ctx context.Context, req flight.SearchRequest) (*flight.OffersResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return p.svc.searchSource(ctx, p.src, req)
}
