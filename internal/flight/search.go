// SPDX-License-Identifier: MIT

package flight

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// Defaults applied by Normalize. They are part of the cache key contract.
const (
	DefaultCabin      = "ECONOMY"
	DefaultCurrency   = "EUR"
	DefaultMaxResults = 250
	DateLayout        = "2006-01-02"
	cacheKeyPrefix    = "flight_search"
)

// Leg is an extra origin/destination pair of a multi-city search.
type Leg struct {
	Origin        string `json:"origin" validate:"required,len=3,alpha"`
	Destination   string `json:"destination" validate:"required,len=3,alpha"`
	DepartureDate string `json:"departureDate" validate:"required,datetime=2006-01-02"`
}

// SearchRequest is a single flight search. Build it from the API payload,
// call Validate, then use Normalize/CacheKey.
type SearchRequest struct {
	Origin               string   `json:"origin" validate:"required,len=3,alpha"`
	Destination          string   `json:"destination" validate:"required,len=3,alpha"`
	DepartureDate        string   `json:"departureDate" validate:"required,datetime=2006-01-02"`
	ReturnDate           string   `json:"returnDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Adults               int      `json:"adults" validate:"min=1,max=9"`
	Children             int      `json:"children" validate:"min=0,max=8"`
	Infants              int      `json:"infants" validate:"min=0,max=8"`
	Currency             string   `json:"currency,omitempty" validate:"omitempty,len=3,alpha"`
	TravelClass          string   `json:"travelClass,omitempty" validate:"omitempty,oneof=ECONOMY PREMIUM_ECONOMY BUSINESS FIRST economy premium_economy business first"`
	NonStop              bool     `json:"nonStop,omitempty"`
	MaxPrice             int      `json:"maxPrice,omitempty" validate:"min=0"`
	MaxResults           int      `json:"maxResults,omitempty" validate:"min=0,max=250"`
	IncludedAirlineCodes []string `json:"includedAirlineCodes,omitempty" validate:"omitempty,dive,len=2,alphanum"`
	ExcludedAirlineCodes []string `json:"excludedAirlineCodes,omitempty" validate:"omitempty,dive,len=2,alphanum"`
	AdditionalLegs       []Leg    `json:"additionalLegs,omitempty" validate:"omitempty,max=5,dive"`
}

// Validate checks field formats and the party composition.
func (r SearchRequest) Validate() error {
	if err := validateStruct(&r); err != nil {
		return err
	}
	if _, err := r.Party(); err != nil {
		return err
	}
	if strings.EqualFold(r.Origin, r.Destination) {
		return invalid("origin and destination must differ")
	}
	if r.ReturnDate != "" && len(r.AdditionalLegs) == 0 {
		dep, _ := time.Parse(DateLayout, r.DepartureDate)
		ret, _ := time.Parse(DateLayout, r.ReturnDate)
		if ret.Before(dep) {
			return invalid("returnDate %s is before departureDate %s", r.ReturnDate, r.DepartureDate)
		}
	}
	return nil
}

// Party returns the validated party composition.
func (r SearchRequest) Party() (Party, error) {
	return NewParty(r.Adults, r.Children, r.Infants)
}

// Normalize returns the canonical form of r. Two requests that ask the
// provider the same question normalize to the same value:
//   - IATA and carrier codes upper-cased; carrier lists de-duplicated and sorted
//   - absent cabin means ECONOMY, absent currency EUR, absent result cap 250
//   - an include list wins over an exclude list, which is then dropped
//   - a return date is ignored for multi-city searches
func (r SearchRequest) Normalize() SearchRequest {
	n := r
	n.Origin = strings.ToUpper(strings.TrimSpace(r.Origin))
	n.Destination = strings.ToUpper(strings.TrimSpace(r.Destination))
	n.DepartureDate = strings.TrimSpace(r.DepartureDate)
	n.ReturnDate = strings.TrimSpace(r.ReturnDate)
	n.Currency = strings.ToUpper(strings.TrimSpace(r.Currency))
	if n.Currency == "" {
		n.Currency = DefaultCurrency
	}
	n.TravelClass = strings.ToUpper(strings.TrimSpace(r.TravelClass))
	if n.TravelClass == "" {
		n.TravelClass = DefaultCabin
	}
	if n.MaxResults <= 0 {
		n.MaxResults = DefaultMaxResults
	}
	if n.MaxPrice < 0 {
		n.MaxPrice = 0
	}
	n.IncludedAirlineCodes = canonicalCodes(r.IncludedAirlineCodes)
	n.ExcludedAirlineCodes = canonicalCodes(r.ExcludedAirlineCodes)
	if len(n.IncludedAirlineCodes) > 0 {
		n.ExcludedAirlineCodes = nil
	}
	if len(r.AdditionalLegs) > 0 {
		n.ReturnDate = ""
		n.AdditionalLegs = make([]Leg, len(r.AdditionalLegs))
		for i, leg := range r.AdditionalLegs {
			n.AdditionalLegs[i] = Leg{
				Origin:        strings.ToUpper(strings.TrimSpace(leg.Origin)),
				Destination:   strings.ToUpper(strings.TrimSpace(leg.Destination)),
				DepartureDate: strings.TrimSpace(leg.DepartureDate),
			}
		}
	}
	return n
}

// CacheKey is the deterministic key of the normalized request. Every field
// that changes the provider's answer is part of it.
func (r SearchRequest) CacheKey() string {
	n := r.Normalize()
	parts := []string{
		cacheKeyPrefix,
		n.Origin,
		n.Destination,
		n.DepartureDate,
		n.ReturnDate,
		strconv.Itoa(n.Adults),
		strconv.Itoa(n.Children),
		strconv.Itoa(n.Infants),
		n.TravelClass,
		strconv.FormatBool(n.NonStop),
		strconv.Itoa(n.MaxResults),
		n.Currency,
		strconv.Itoa(n.MaxPrice),
		"inc=" + strings.Join(n.IncludedAirlineCodes, ","),
		"exc=" + strings.Join(n.ExcludedAirlineCodes, ","),
	}
	if len(n.AdditionalLegs) > 0 {
		legs := make([]string, len(n.AdditionalLegs))
		for i, leg := range n.AdditionalLegs {
			legs[i] = leg.Origin + "-" + leg.Destination + "-" + leg.DepartureDate
		}
		parts = append(parts, "legs="+strings.Join(legs, ","))
	}
	return strings.Join(parts, ":")
}

func canonicalCodes(codes []string) []string {
	if len(codes) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Strings(out)
	if len(out) == 0 {
		return nil
	}
	return out
}
