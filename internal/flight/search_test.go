// SPDX-License-Identifier: MIT

package flight

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseRequest() SearchRequest {
	return SearchRequest{
		Origin:        "FRA",
		Destination:   "JFK",
		DepartureDate: "2026-06-01",
		ReturnDate:    "2026-06-10",
		Adults:        2,
	}
}

func TestSearchRequest_Validate(t *testing.T) {
	require.NoError(t, baseRequest().Validate())

	tests := map[string]func(*SearchRequest){
		"missing origin":       func(r *SearchRequest) { r.Origin = "" },
		"long origin":          func(r *SearchRequest) { r.Origin = "FRAN" },
		"same airports":        func(r *SearchRequest) { r.Destination = "fra" },
		"bad date":             func(r *SearchRequest) { r.DepartureDate = "01.06.2026" },
		"return before depart": func(r *SearchRequest) { r.ReturnDate = "2026-05-01" },
		"no adults":            func(r *SearchRequest) { r.Adults = 0 },
		"too many infants":     func(r *SearchRequest) { r.Infants = 3 },
		"unknown cabin":        func(r *SearchRequest) { r.TravelClass = "LUXURY" },
		"bad carrier":          func(r *SearchRequest) { r.IncludedAirlineCodes = []string{"LUFT"} },
		"too many results":     func(r *SearchRequest) { r.MaxResults = 251 },
		"bad leg":              func(r *SearchRequest) { r.AdditionalLegs = []Leg{{Origin: "JFK"}} },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			r := baseRequest()
			mutate(&r)
			err := r.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidRequest), "got %v", err)
		})
	}
}

func TestSearchRequest_ValidateReportsJSONNames(t *testing.T) {
	r := baseRequest()
	r.DepartureDate = "tomorrow"
	err := r.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "departureDate")
}

func TestSearchRequest_NormalizeDefaults(t *testing.T) {
	r := SearchRequest{
		Origin:               " fra",
		Destination:          "jfk ",
		DepartureDate:        "2026-06-01",
		Adults:               1,
		IncludedAirlineCodes: []string{"ua", "LH", "lh"},
		ExcludedAirlineCodes: []string{"BA"},
	}
	n := r.Normalize()

	assert.Equal(t, "FRA", n.Origin)
	assert.Equal(t, "JFK", n.Destination)
	assert.Equal(t, DefaultCabin, n.TravelClass)
	assert.Equal(t, DefaultCurrency, n.Currency)
	assert.Equal(t, DefaultMaxResults, n.MaxResults)
	assert.Equal(t, []string{"LH", "UA"}, n.IncludedAirlineCodes)
	assert.Nil(t, n.ExcludedAirlineCodes, "include list wins")
	assert.Equal(t, []string{"ua", "LH", "lh"}, r.IncludedAirlineCodes, "input untouched")
}

func TestSearchRequest_CacheKeyEquivalence(t *testing.T) {
	a := baseRequest()
	b := baseRequest()
	b.Origin = "fra"
	b.TravelClass = "economy"
	b.Currency = "eur"
	b.MaxResults = 250
	assert.Equal(t, a.CacheKey(), b.CacheKey())
	assert.Equal(t,
		"flight_search:FRA:JFK:2026-06-01:2026-06-10:2:0:0:ECONOMY:false:250:EUR:0:inc=:exc=",
		a.CacheKey())

	c := baseRequest()
	c.IncludedAirlineCodes = []string{"UA", "LH"}
	d := baseRequest()
	d.IncludedAirlineCodes = []string{"LH", "UA"}
	assert.Equal(t, c.CacheKey(), d.CacheKey())
}

func TestSearchRequest_CacheKeyDistinguishesPriceAffectingFields(t *testing.T) {
	mutations := map[string]func(*SearchRequest){
		"destination": func(r *SearchRequest) { r.Destination = "EWR" },
		"departure":   func(r *SearchRequest) { r.DepartureDate = "2026-06-02" },
		"return":      func(r *SearchRequest) { r.ReturnDate = "" },
		"adults":      func(r *SearchRequest) { r.Adults = 3 },
		"children":    func(r *SearchRequest) { r.Children = 1 },
		"infants":     func(r *SearchRequest) { r.Infants = 1 },
		"cabin":       func(r *SearchRequest) { r.TravelClass = "BUSINESS" },
		"nonstop":     func(r *SearchRequest) { r.NonStop = true },
		"maxResults":  func(r *SearchRequest) { r.MaxResults = 10 },
		"currency":    func(r *SearchRequest) { r.Currency = "USD" },
		"maxPrice":    func(r *SearchRequest) { r.MaxPrice = 900 },
		"include":     func(r *SearchRequest) { r.IncludedAirlineCodes = []string{"LH"} },
		"exclude":     func(r *SearchRequest) { r.ExcludedAirlineCodes = []string{"LH"} },
		"legs": func(r *SearchRequest) {
			r.AdditionalLegs = []Leg{{Origin: "JFK", Destination: "LAX", DepartureDate: "2026-06-05"}}
		},
	}
	base := baseRequest().CacheKey()
	seen := map[string]string{base: "base"}
	for name, mutate := range mutations {
		r := baseRequest()
		mutate(&r)
		key := r.CacheKey()
		if prev, dup := seen[key]; dup {
			t.Errorf("%s collides with %s: %s", name, prev, key)
		}
		seen[key] = name
	}
}

func TestMatrixRequest_SearchFor(t *testing.T) {
	m := MatrixRequest{
		Origin: "fra", Destination: "jfk",
		OutboundDates: []string{"2026-06-01"}, InboundDates: []string{"2026-06-08"},
		Adults: 1, Currency: "usd",
	}
	require.NoError(t, m.Validate())

	got := m.SearchFor("2026-06-01", "2026-06-08")
	want := SearchRequest{
		Origin: "FRA", Destination: "JFK",
		DepartureDate: "2026-06-01", ReturnDate: "2026-06-08",
		Adults: 1, Currency: "USD", TravelClass: DefaultCabin, MaxResults: DefaultMaxResults,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("search mismatch (-want +got):\n%s", diff)
	}
}

func TestMatrixRequest_ValidateRejectsBadDates(t *testing.T) {
	m := MatrixRequest{
		Origin: "FRA", Destination: "JFK",
		OutboundDates: []string{"2026-06-01", "June 2"}, InboundDates: []string{"2026-06-08"},
		Adults: 1,
	}
	assert.ErrorIs(t, m.Validate(), ErrInvalidRequest)

	m.OutboundDates = nil
	assert.ErrorIs(t, m.Validate(), ErrInvalidRequest)
}
