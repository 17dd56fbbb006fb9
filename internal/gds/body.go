// SPDX-License-Identifier: MIT

package gds

import (
	"encoding/json"
	"strconv"

	"github.com/sersery88/flight-ibe/internal/flight"
)

type dateRange struct {
	Date string `json:"date"`
}

type originDestination struct {
	ID                      string    `json:"id"`
	OriginLocationCode      string    `json:"originLocationCode"`
	DestinationLocationCode string    `json:"destinationLocationCode"`
	DepartureDateTimeRange  dateRange `json:"departureDateTimeRange"`
}

type connectionRestriction struct {
	MaxNumberOfConnections int `json:"maxNumberOfConnections"`
}

type carrierRestrictions struct {
	IncludedCarrierCodes []string `json:"includedCarrierCodes,omitempty"`
	ExcludedCarrierCodes []string `json:"excludedCarrierCodes,omitempty"`
}

type cabinRestriction struct {
	Cabin                string   `json:"cabin"`
	Coverage             string   `json:"coverage"`
	OriginDestinationIDs []string `json:"originDestinationIds"`
}

type flightFilters struct {
	ConnectionRestriction *connectionRestriction `json:"connectionRestriction,omitempty"`
	CarrierRestrictions   *carrierRestrictions   `json:"carrierRestrictions,omitempty"`
	CabinRestrictions     []cabinRestriction     `json:"cabinRestrictions,omitempty"`
	MaxPrice              int                    `json:"maxPrice,omitempty"`
}

type searchCriteria struct {
	MaxFlightOffers int            `json:"maxFlightOffers"`
	FlightFilters   *flightFilters `json:"flightFilters,omitempty"`
}

type searchBody struct {
	CurrencyCode       string              `json:"currencyCode"`
	OriginDestinations []originDestination `json:"originDestinations"`
	Travelers          []flight.Traveler   `json:"travelers"`
	Sources            []string            `json:"sources"`
	SearchCriteria     searchCriteria      `json:"searchCriteria"`
}

// buildSearchBody renders the normalized request as a flight-offers search
// document. The request must have passed Validate.
func buildSearchBody(req flight.SearchRequest, source string) ([]byte, error) {
	n := req.Normalize()
	party, err := n.Party()
	if err != nil {
		return nil, err
	}

	ods := []originDestination{{
		ID:                      "1",
		OriginLocationCode:      n.Origin,
		DestinationLocationCode: n.Destination,
		DepartureDateTimeRange:  dateRange{Date: n.DepartureDate},
	}}
	if n.ReturnDate != "" {
		ods = append(ods, originDestination{
			ID:                      "2",
			OriginLocationCode:      n.Destination,
			DestinationLocationCode: n.Origin,
			DepartureDateTimeRange:  dateRange{Date: n.ReturnDate},
		})
	}
	for _, leg := range n.AdditionalLegs {
		ods = append(ods, originDestination{
			ID:                      strconv.Itoa(len(ods) + 1),
			OriginLocationCode:      leg.Origin,
			DestinationLocationCode: leg.Destination,
			DepartureDateTimeRange:  dateRange{Date: leg.DepartureDate},
		})
	}
	odIDs := make([]string, len(ods))
	for i, od := range ods {
		odIDs[i] = od.ID
	}

	filters := &flightFilters{
		CabinRestrictions: []cabinRestriction{{
			Cabin:                n.TravelClass,
			Coverage:             "ALL_SEGMENTS",
			OriginDestinationIDs: odIDs,
		}},
		MaxPrice: n.MaxPrice,
	}
	if n.NonStop {
		filters.ConnectionRestriction = &connectionRestriction{MaxNumberOfConnections: 0}
	}
	switch {
	case len(n.IncludedAirlineCodes) > 0:
		filters.CarrierRestrictions = &carrierRestrictions{IncludedCarrierCodes: n.IncludedAirlineCodes}
	case len(n.ExcludedAirlineCodes) > 0:
		filters.CarrierRestrictions = &carrierRestrictions{ExcludedCarrierCodes: n.ExcludedAirlineCodes}
	}

	return json.Marshal(searchBody{
		CurrencyCode:       n.Currency,
		OriginDestinations: ods,
		Travelers:          party.Travelers(),
		Sources:            []string{source},
		SearchCriteria: searchCriteria{
			MaxFlightOffers: n.MaxResults,
			FlightFilters:   filters,
		},
	})
}

type offersEnvelope struct {
	Data struct {
		Type         string         `json:"type"`
		FlightOffers []flight.Offer `json:"flightOffers"`
	} `json:"data"`
}

func buildOffersBody(kind string, offers []flight.Offer) ([]byte, error) {
	var env offersEnvelope
	env.Data.Type = kind
	env.Data.FlightOffers = offers
	return json.Marshal(env)
}
