// SPDX-License-Identifier: MIT

package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sersery88/flight-ibe/internal/cache"
	"github.com/sersery88/flight-ibe/internal/fanout"
	"github.com/sersery88/flight-ibe/internal/flight"
	"github.com/sersery88/flight-ibe/internal/gds"
	"github.com/sersery88/flight-ibe/internal/upstream"
)

// fakeDoer answers provider calls from a per-path table.
type fakeDoer struct {
	mu    sync.Mutex
	calls []upstream.Request
	reply map[string]func(upstream.Request) ([]byte, error)
}

func (f *fakeDoer) Do(_ context.Context, req upstream.Request) (*upstream.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	fn := f.reply[req.Path]
	f.mu.Unlock()
	if fn == nil {
		return nil, &upstream.Error{Sentinel: upstream.ErrUpstream, Operation: req.Operation, Status: http.StatusNotFound}
	}
	body, err := fn(req)
	if err != nil {
		return nil, err
	}
	return &upstream.Response{Status: http.StatusOK, Body: body, Attempts: 1}, nil
}

func (f *fakeDoer) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Path == path {
			n++
		}
	}
	return n
}

func offersBody(source string, totals ...string) func(upstream.Request) ([]byte, error) {
	return func(upstream.Request) ([]byte, error) {
		parts := make([]string, len(totals))
		for i, total := range totals {
			parts[i] = fmt.Sprintf(`{"id":"%s-%d","source":"%s","price":{"currency":"EUR","total":"%s"}}`,
				strings.ToLower(source), i+1, source, total)
		}
		return []byte(`{"data":[` + strings.Join(parts, ",") + `]}`), nil
	}
}

func failing(status int) func(upstream.Request) ([]byte, error) {
	return func(req upstream.Request) ([]byte, error) {
		return nil, &upstream.Error{Sentinel: upstream.ErrUpstream, Operation: req.Operation, Status: status}
	}
}

type fixture struct {
	svc       *Service
	primary   *fakeDoer
	secondary *fakeDoer
}

func newFixture(t *testing.T, store cache.Store, withSecondary bool) *fixture {
	t.Helper()
	f := &fixture{
		primary:   &fakeDoer{reply: map[string]func(upstream.Request) ([]byte, error){}},
		secondary: &fakeDoer{reply: map[string]func(upstream.Request) ([]byte, error){}},
	}
	if store == nil {
		store = cache.NewNoopStore()
	}
	exec := fanout.NewExecutor(cache.NewAside(store, 0), nil)
	primary := &Source{Client: gds.NewClient(f.primary, "GDS")}
	var secondary *Source
	if withSecondary {
		secondary = &Source{Client: gds.NewClient(f.secondary, "NDC")}
	}
	f.svc = New(exec, primary, secondary, 0)
	return f
}

var fraJFK = flight.SearchRequest{Origin: "FRA", Destination: "JFK", DepartureDate: "2026-06-01", Adults: 1}

func ids(resp *flight.OffersResponse) []string {
	out := make([]string, len(resp.Data))
	for i, o := range resp.Data {
		out[i] = o.ID
	}
	return out
}

func TestSearch_MergesSourcesByPrice(t *testing.T) {
	f := newFixture(t, nil, true)
	f.primary.reply[gds.SearchPath] = offersBody("GDS", "500.00")
	f.secondary.reply[gds.SearchPath] = offersBody("NDC", "300.00")

	resp, err := f.svc.Search(context.Background(), fraJFK)
	require.NoError(t, err)
	assert.Equal(t, []string{"ndc-1", "gds-1"}, ids(resp))
}

func TestSearch_SecondaryFailureIsIgnored(t *testing.T) {
	f := newFixture(t, nil, true)
	f.primary.reply[gds.SearchPath] = offersBody("GDS", "500.00")
	f.secondary.reply[gds.SearchPath] = failing(http.StatusServiceUnavailable)

	resp, err := f.svc.Search(context.Background(), fraJFK)
	require.NoError(t, err)
	assert.Equal(t, []string{"gds-1"}, ids(resp))
}

func TestSearch_PrimaryFailureFallsBackToSecondary(t *testing.T) {
	f := newFixture(t, nil, true)
	f.primary.reply[gds.SearchPath] = failing(http.StatusInternalServerError)
	f.secondary.reply[gds.SearchPath] = offersBody("NDC", "300.00")

	resp, err := f.svc.Search(context.Background(), fraJFK)
	require.NoError(t, err)
	assert.Equal(t, []string{"ndc-1"}, ids(resp))
}

func TestSearch_BothFailReturnsPrimaryError(t *testing.T) {
	f := newFixture(t, nil, true)
	f.primary.reply[gds.SearchPath] = failing(http.StatusInternalServerError)
	f.secondary.reply[gds.SearchPath] = failing(http.StatusBadGateway)

	_, err := f.svc.Search(context.Background(), fraJFK)
	require.Error(t, err)
	assert.True(t, errors.Is(err, upstream.ErrUpstream))
	assert.Equal(t, http.StatusInternalServerError, upstream.Status(err))
}

func TestSearch_UnparseablePriceSortsLast(t *testing.T) {
	f := newFixture(t, nil, true)
	f.primary.reply[gds.SearchPath] = offersBody("GDS", "n/a", "200.00")
	f.secondary.reply[gds.SearchPath] = offersBody("NDC", "100.00")

	resp, err := f.svc.Search(context.Background(), fraJFK)
	require.NoError(t, err)
	assert.Equal(t, []string{"ndc-1", "gds-2", "gds-1"}, ids(resp))
}

func TestSearch_InvalidRequestNeverCallsProvider(t *testing.T) {
	f := newFixture(t, nil, false)
	bad := fraJFK
	bad.Adults = 0

	_, err := f.svc.Search(context.Background(), bad)
	assert.ErrorIs(t, err, flight.ErrInvalidRequest)
	assert.Zero(t, f.primary.count(gds.SearchPath))
}

func TestSearch_CachedPerSource(t *testing.T) {
	store := cache.NewMemoryStore(0)
	t.Cleanup(func() { _ = store.Close() })
	f := newFixture(t, store, true)
	f.primary.reply[gds.SearchPath] = offersBody("GDS", "500.00")
	f.secondary.reply[gds.SearchPath] = offersBody("NDC", "300.00")

	for range 3 {
		resp, err := f.svc.Search(context.Background(), fraJFK)
		require.NoError(t, err)
		assert.Len(t, resp.Data, 2)
	}
	assert.Equal(t, 1, f.primary.count(gds.SearchPath))
	assert.Equal(t, 1, f.secondary.count(gds.SearchPath))

	key := fraJFK.Normalize().CacheKey()
	_, found, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	assert.True(t, found)
	_, found, err = store.Get(context.Background(), "ndc:"+key)
	require.NoError(t, err)
	assert.True(t, found)
}

func offer(t *testing.T, id, source string) flight.Offer {
	t.Helper()
	var o flight.Offer
	raw := fmt.Sprintf(`{"id":%q,"source":%q,"price":{"currency":"EUR","total":"10.00"}}`, id, source)
	require.NoError(t, json.Unmarshal([]byte(raw), &o))
	return o
}

func TestSourceFor(t *testing.T) {
	f := newFixture(t, nil, true)
	assert.Same(t, f.svc.Secondary(), f.svc.SourceFor(offer(t, "1", "NDC")))
	assert.Same(t, f.svc.Secondary(), f.svc.SourceFor(offer(t, "1", "ndc")))
	assert.Same(t, f.svc.Primary(), f.svc.SourceFor(offer(t, "1", "GDS")))
	assert.Same(t, f.svc.Primary(), f.svc.SourceFor(offer(t, "1", "")))

	solo := newFixture(t, nil, false)
	assert.Same(t, solo.svc.Primary(), solo.svc.SourceFor(offer(t, "1", "NDC")))
}

func TestPricingQueries_RouteBySource(t *testing.T) {
	f := newFixture(t, nil, true)
	priced := func(upstream.Request) ([]byte, error) {
		return []byte(`{"data":{"type":"flight-offers-pricing","flightOffers":[]}}`), nil
	}
	f.primary.reply[gds.PricingPath] = priced
	f.secondary.reply[gds.PricingPath] = priced

	req := flight.PricingRequest{FlightOffers: []flight.Offer{
		offer(t, "1", "GDS"), offer(t, "2", "NDC"), offer(t, "3", "GDS"),
	}}
	outs := fanout.NewScheduler(f.svc.exec, 2).RunAll(context.Background(), f.svc.PricingQueries(req))

	require.Len(t, outs, 3)
	for _, o := range outs {
		assert.True(t, o.OK(), o.ID)
		assert.IsType(t, &flight.PriceResponse{}, o.Payload)
	}
	assert.Equal(t, 2, f.primary.count(gds.PricingPath))
	assert.Equal(t, 1, f.secondary.count(gds.PricingPath))
}

func TestUpsellQueries_EmptyIsSuccess(t *testing.T) {
	f := newFixture(t, nil, false)
	f.primary.reply[gds.UpsellPath] = func(upstream.Request) ([]byte, error) {
		return []byte(`{"data":[]}`), nil
	}

	req := flight.UpsellRequest{FlightOffers: []flight.Offer{offer(t, "1", "GDS")}}
	outs := fanout.NewScheduler(f.svc.exec, 1).RunAll(context.Background(), f.svc.UpsellQueries(req))

	require.Len(t, outs, 1)
	require.True(t, outs[0].OK())
	assert.Empty(t, outs[0].Payload)
}

type gateFunc func(ctx context.Context) error

func (g gateFunc) Wait(ctx context.Context) error { return g(ctx) }

func TestUpsell_RoutedToOfferSourceAndPaced(t *testing.T) {
	f := newFixture(t, nil, true)
	f.secondary.reply[gds.UpsellPath] = offersBody("NDC", "199.00", "249.00")
	waits := 0
	f.svc.Secondary().PricingGate = gateFunc(func(context.Context) error {
		waits++
		return nil
	})

	resp, err := f.svc.Upsell(context.Background(), flight.UpsellRequest{
		FlightOffers: []flight.Offer{offer(t, "1", "NDC"), offer(t, "2", "NDC")},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"ndc-1", "ndc-2"}, ids(resp))
	assert.Equal(t, 1, waits)
	assert.Equal(t, 1, f.secondary.count(gds.UpsellPath))
	assert.Zero(t, f.primary.count(gds.UpsellPath))
}

func TestUpsell_GateRefusalSkipsUpstream(t *testing.T) {
	f := newFixture(t, nil, false)
	f.svc.Primary().PricingGate = gateFunc(func(context.Context) error { return context.Canceled })

	_, err := f.svc.Upsell(context.Background(), flight.UpsellRequest{
		FlightOffers: []flight.Offer{offer(t, "1", "GDS")},
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, f.primary.count(gds.UpsellPath))
}

func TestUpsell_InvalidRequest(t *testing.T) {
	f := newFixture(t, nil, false)
	_, err := f.svc.Upsell(context.Background(), flight.UpsellRequest{})
	require.ErrorIs(t, err, flight.ErrInvalidRequest)
	assert.Zero(t, f.primary.count(gds.UpsellPath))
}

func TestMatrixQueries_CheapestPerCombination(t *testing.T) {
	f := newFixture(t, nil, false)
	f.primary.reply[gds.SearchPath] = func(req upstream.Request) ([]byte, error) {
		if strings.Contains(string(req.Body), "2026-06-05") {
			return []byte(`{"data":[]}`), nil
		}
		return offersBody("GDS", "250.00", "199.99")(req)
	}

	req := flight.MatrixRequest{
		Origin:        "FRA",
		Destination:   "JFK",
		OutboundDates: []string{"2026-06-01", "2026-06-05"},
		InboundDates:  []string{"2026-06-04", "2026-06-08"},
		Adults:        1,
	}
	queries := f.svc.MatrixQueries(req)
	require.Len(t, queries, 3)
	assert.Equal(t, []string{"2026-06-01_2026-06-04", "2026-06-01_2026-06-08", "2026-06-05_2026-06-08"},
		[]string{queries[0].ID, queries[1].ID, queries[2].ID})

	outs := fanout.NewScheduler(f.svc.exec, 3).RunAll(context.Background(), queries)
	require.Len(t, outs, 3)

	first := outs[0].Payload.(MatrixCell)
	require.NotNil(t, first.Price)
	assert.Equal(t, "199.99", *first.Price)
	assert.Equal(t, "EUR", first.Currency)

	last := outs[2].Payload.(MatrixCell)
	assert.Nil(t, last.Price)
	assert.Equal(t, "2026-06-05", last.OutboundDate)
	assert.Equal(t, "EUR", last.Currency)
}

func TestPrice_SingleOffer(t *testing.T) {
	f := newFixture(t, nil, false)
	f.primary.reply[gds.PricingPath] = func(req upstream.Request) ([]byte, error) {
		assert.Equal(t, "bags", req.Query.Get("include"))
		return []byte(`{"data":{"type":"flight-offers-pricing","flightOffers":[{"id":"1","price":{"currency":"EUR","total":"12.00"}}]}}`), nil
	}

	resp, err := f.svc.Price(context.Background(), flight.PriceRequest{FlightOffer: offer(t, "1", "GDS"), IncludeBags: true})
	require.NoError(t, err)
	require.Len(t, resp.Data.FlightOffers, 1)
	assert.Equal(t, "12.00", resp.Data.FlightOffers[0].Price.Total)

	_, err = f.svc.Price(context.Background(), flight.PriceRequest{})
	assert.ErrorIs(t, err, flight.ErrInvalidRequest)
}

func TestSourceSearcher_SingleSource(t *testing.T) {
	f := newFixture(t, nil, true)
	f.primary.reply[gds.SearchPath] = offersBody("GDS", "500.00")
	f.secondary.reply[gds.SearchPath] = offersBody("NDC", "300.00")

	var p SearchProvider = f.svc.SourceSearcher(f.svc.Secondary())
	resp, err := p.Search(context.Background(), fraJFK)
	require.NoError(t, err)
	assert.Equal(t, []string{"ndc-1"}, ids(resp))
	assert.Zero(t, f.primary.count(gds.SearchPath))
}
