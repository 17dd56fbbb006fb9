// SPDX-License-Identifier: MIT

package provider

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/sersery88/flight-ibe/internal/flight"
	xglog "github.com/sersery88/flight-ibe/internal/log"
	"github.com/sersery88/flight-ibe/internal/metrics"
)

// Search queries every configured source concurrently and merges the
// offers by ascending price. A failing secondary is logged and ignored; the
// primary's error is returned only when no source answered.
func (s *Service) Search(ctx context.Context, req flight.SearchRequest) (*flight.OffersResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	req = req.Normalize()
	logger := xglog.WithContext(ctx, s.logger)

	sources := s.Sources()
	results := make([]*flight.OffersResponse, len(sources))
	errs := make([]error, len(sources))

	var g errgroup.Group
	for i, src := range sources {
		g.Go(func() error {
			results[i], errs[i] = s.SourceSearcher(src).Search(ctx, req)
			metrics.RecordProviderResult(src.Name(), errs[i])
			if errs[i] != nil {
				logger.Warn().Err(errs[i]).
					Str(xglog.FieldEvent, "provider.search_failed").
					Str(xglog.FieldSource, src.Name()).
					Msg("search source failed")
			}
			return nil
		})
	}
	_ = g.Wait()

	if errs[0] != nil {
		if len(sources) > 1 && errs[1] == nil {
			return results[1], nil
		}
		return nil, errs[0]
	}
	if len(sources) == 1 || errs[1] != nil {
		return results[0], nil
	}
	return mergeOffers(results[0], results[1]), nil
}

// mergeOffers concatenates primary then secondary offers and stable-sorts
// them by price. Unparseable prices sort last. The primary's dictionaries
// are kept.
func mergeOffers(primary, secondary *flight.OffersResponse) *flight.OffersResponse {
	data := make([]flight.Offer, 0, len(primary.Data)+len(secondary.Data))
	data = append(data, primary.Data...)
	data = append(data, secondary.Data...)
	sort.SliceStable(data, func(i, j int) bool {
		return data[i].Price.SortKey() < data[j].Price.SortKey()
	})
	dict := primary.Dictionaries
	if len(dict) == 0 {
		dict = secondary.Dictionaries
	}
	return &flight.OffersResponse{Data: data, Dictionaries: dict}
}
