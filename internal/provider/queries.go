// SPDX-License-Identifier: MIT

package provider

import (
	"context"

	"github.com/sersery88/flight-ibe/internal/batch"
	"github.com/sersery88/flight-ibe/internal/fanout"
	"github.com/sersery88/flight-ibe/internal/flight"
	"github.com/sersery88/flight-ibe/internal/gds"
)

// PricingQueries builds one uncached pricing sub-query per offer, each
// routed to the offer's source and paced by that source's pricing gate.
func (s *Service) PricingQueries(req flight.PricingRequest) []fanout.SubQuery {
	queries := make([]fanout.SubQuery, len(req.FlightOffers))
	for i, offer := range req.FlightOffers {
		src := s.SourceFor(offer)
		queries[i] = fanout.SubQuery{
			ID:   offer.ID,
			Gate: src.PricingGate,
			Fetch: func(ctx context.Context) ([]byte, error) {
				return src.Client.FetchPrice(ctx, []flight.Offer{offer}, req.IncludeBags)
			},
			Decode: decodePrice,
		}
	}
	return queries
}

// UpsellQueries builds one uncached upsell sub-query per offer. The payload
// is the list of alternative offers, possibly empty.
func (s *Service) UpsellQueries(req flight.UpsellRequest) []fanout.SubQuery {
	queries := make([]fanout.SubQuery, len(req.FlightOffers))
	for i, offer := range req.FlightOffers {
		src := s.SourceFor(offer)
		queries[i] = fanout.SubQuery{
			ID:   offer.ID,
			Gate: src.PricingGate,
			Fetch: func(ctx context.Context) ([]byte, error) {
				return src.Client.FetchUpsell(ctx, []flight.Offer{offer})
			},
			Decode: func(raw []byte) (any, error) {
				resp, err := gds.DecodeOffers(gds.OpUpsell, raw)
				if err != nil {
					return nil, err
				}
				return resp.Data, nil
			},
		}
	}
	return queries
}

// MatrixCell is the cheapest price found for one date combination. Price is
// nil when the search returned no offers.
type MatrixCell struct {
	OutboundDate string  `json:"outboundDate"`
	InboundDate  string  `json:"inboundDate"`
	Price        *string `json:"price"`
	Currency     string  `json:"currency"`
}

// MatrixQueries builds one cached primary-source search per valid date
// combination. Matrix searches share cache entries with plain searches.
func (s *Service) MatrixQueries(req flight.MatrixRequest) []fanout.SubQuery {
	items := batch.MatrixQueries(req)
	queries := make([]fanout.SubQuery, len(items))
	for i, item := range items {
		currency := item.Search.Currency
		queries[i] = s.SearchQuery(s.primary, item.ID(), item.Search, func(raw []byte) (any, error) {
			resp, err := gds.DecodeOffers(gds.OpSearch, raw)
			if err != nil {
				return nil, err
			}
			cell := MatrixCell{OutboundDate: item.Outbound, InboundDate: item.Inbound, Currency: currency}
			if best, ok := resp.Cheapest(); ok {
				total := best.Price.Total
				cell.Price = &total
				if best.Price.Currency != "" {
					cell.Currency = best.Price.Currency
				}
			}
			return cell, nil
		})
	}
	return queries
}

// MatrixItems lists a matrix's cells in query order with no price set. A
// cell whose search failed is reported this way.
func MatrixItems(req flight.MatrixRequest) []MatrixCell {
	items := batch.MatrixQueries(req)
	cells := make([]MatrixCell, len(items))
	for i, item := range items {
		cells[i] = MatrixCell{OutboundDate: item.Outbound, InboundDate: item.Inbound, Currency: item.Search.Currency}
	}
	return cells
}

// Price confirms a single offer against its source.
func (s *Service) Price(ctx context.Context, req flight.PriceRequest) (*flight.PriceResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	q := s.PricingQueries(flight.PricingRequest{
		FlightOffers: []flight.Offer{req.FlightOffer},
		IncludeBags:  req.IncludeBags,
	})[0]
	out := s.exec.Run(ctx, q)
	if out.Err != nil {
		return nil, out.Err
	}
	return out.Payload.(*flight.PriceResponse), nil
}

// Upsell asks for branded-fare alternatives of all offers in one call. The
// request goes to the source of the first offer, paced by its pricing gate.
func (s *Service) Upsell(ctx context.Context, req flight.UpsellRequest) (*flight.OffersResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	src := s.SourceFor(req.FlightOffers[0])
	if src.PricingGate != nil {
		if err := src.PricingGate.Wait(ctx); err != nil {
			return nil, err
		}
	}
	return src.Client.Upsell(ctx, req.FlightOffers)
}
