// SPDX-License-Identifier: MIT

// Package gds is the REST client for the flight data provider's shopping
// endpoints: offer search, offer pricing and branded-fare upsell.
package gds

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"

	"github.com/sersery88/flight-ibe/internal/flight"
	xglog "github.com/sersery88/flight-ibe/internal/log"
	"github.com/sersery88/flight-ibe/internal/upstream"
)

// Provider endpoints.
const (
	SearchPath  = "/v2/shopping/flight-offers"
	PricingPath = "/v1/shopping/flight-offers/pricing"
	UpsellPath  = "/v1/shopping/flight-offers/upselling"
)

// Base URLs of the provider environments.
const (
	TestBaseURL       = "https://test.api.amadeus.com"
	ProductionBaseURL = "https://api.amadeus.com"
)

// Operation labels used for logs and metrics.
const (
	OpSearch  = "search"
	OpPricing = "pricing"
	OpUpsell  = "upsell"
)

// codeNoUpsellOffers is the provider's "no upsell offers found" business
// error. It arrives as HTTP 400 and means an empty result.
const codeNoUpsellOffers = 39397

// emptyOffers is what an upsell without alternatives decodes from.
var emptyOffers = []byte(`{"data":[]}`)

// BaseURLFor maps an environment name to the provider base URL.
func BaseURLFor(environment string) string {
	if environment == "production" {
		return ProductionBaseURL
	}
	return TestBaseURL
}

// Doer is the retrying caller. *upstream.Caller implements it.
type Doer interface {
	Do(ctx context.Context, req upstream.Request) (*upstream.Response, error)
}

// Client calls one provider account. Source is the content tag sent in
// searches and stamped on the results ("GDS", "NDC", ...).
type Client struct {
	caller Doer
	source string
	logger zerolog.Logger
}

// NewClient wraps caller.
func NewClient(caller Doer, source string) *Client {
	if source == "" {
		source = "GDS"
	}
	return &Client{
		caller: caller,
		source: source,
		logger: xglog.WithComponent("gds").With().Str(xglog.FieldSource, source).Logger(),
	}
}

// Source returns the content tag of this client.
func (c *Client) Source() string { return c.source }

// FetchSearch runs a flight-offers search and returns the raw response body.
func (c *Client) FetchSearch(ctx context.Context, req flight.SearchRequest) ([]byte, error) {
	body, err := buildSearchBody(req, c.source)
	if err != nil {
		return nil, err
	}
	resp, err := c.caller.Do(ctx, upstream.Request{
		Operation: OpSearch,
		Method:    http.MethodPost,
		Path:      SearchPath,
		Body:      body,
	})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// FetchPrice confirms the price of offers. includeBags asks for the bag
// catalogue. The provider expects a POST overridden to GET.
func (c *Client) FetchPrice(ctx context.Context, offers []flight.Offer, includeBags bool) ([]byte, error) {
	body, err := buildOffersBody("flight-offers-pricing", offers)
	if err != nil {
		return nil, err
	}
	req := upstream.Request{
		Operation: OpPricing,
		Method:    http.MethodPost,
		Path:      PricingPath,
		Header:    http.Header{"X-HTTP-Method-Override": []string{http.MethodGet}},
		Body:      body,
	}
	if includeBags {
		req.Query = url.Values{"include": []string{"bags"}}
	}
	resp, err := c.caller.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// FetchUpsell asks for branded-fare alternatives of offers. "No upsell offers
// found" is an empty result, not an error.
func (c *Client) FetchUpsell(ctx context.Context, offers []flight.Offer) ([]byte, error) {
	body, err := buildOffersBody("flight-offers-upselling", offers)
	if err != nil {
		return nil, err
	}
	resp, err := c.caller.Do(ctx, upstream.Request{
		Operation: OpUpsell,
		Method:    http.MethodPost,
		Path:      UpsellPath,
		Body:      body,
	})
	if err != nil {
		var ue *upstream.Error
		if errors.As(err, &ue) && ue.Status == http.StatusBadRequest && ue.HasCode(codeNoUpsellOffers) {
			logger := xglog.WithContext(ctx, c.logger)
			logger.Info().
				Str(xglog.FieldEvent, "gds.upsell_empty").
				Msg("no upsell offers available")
			return emptyOffers, nil
		}
		return nil, err
	}
	return resp.Body, nil
}

// Upsell fetches and decodes branded-fare alternatives.
func (c *Client) Upsell(ctx context.Context, offers []flight.Offer) (*flight.OffersResponse, error) {
	raw, err := c.FetchUpsell(ctx, offers)
	if err != nil {
		return nil, err
	}
	return DecodeOffers(OpUpsell, raw)
}

// DecodeOffers decodes a search or upsell response.
func DecodeOffers(operation string, raw []byte) (*flight.OffersResponse, error) {
	var out flight.OffersResponse
	if err := upstream.DecodeJSON(operation, raw, &out); err != nil {
		return nil, err
	}
	if out.Data == nil {
		out.Data = []flight.Offer{}
	}
	return &out, nil
}

// DecodePrice decodes a pricing response.
func DecodePrice(operation string, raw []byte) (*flight.PriceResponse, error) {
	var out flight.PriceResponse
	if err := upstream.DecodeJSON(operation, raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
