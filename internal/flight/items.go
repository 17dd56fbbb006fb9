// SPDX-License-Identifier: MIT

package flight

import "strings"

// MatrixRequest asks for the cheapest price of every valid outbound/inbound
// date combination.
type MatrixRequest struct {
	Origin        string   `json:"origin" validate:"required,len=3,alpha"`
	Destination   string   `json:"destination" validate:"required,len=3,alpha"`
	OutboundDates []string `json:"outboundDates" validate:"required,min=1,max=31,dive,datetime=2006-01-02"`
	InboundDates  []string `json:"inboundDates" validate:"required,min=1,max=31,dive,datetime=2006-01-02"`
	Adults        int      `json:"adults" validate:"min=1,max=9"`
	Children      int      `json:"children" validate:"min=0,max=8"`
	Infants       int      `json:"infants" validate:"min=0,max=8"`
	Currency      string   `json:"currency,omitempty" validate:"omitempty,len=3,alpha"`
}

func (m MatrixRequest) Validate() error {
	if err := validateStruct(&m); err != nil {
		return err
	}
	if _, err := NewParty(m.Adults, m.Children, m.Infants); err != nil {
		return err
	}
	if strings.EqualFold(m.Origin, m.Destination) {
		return invalid("origin and destination must differ")
	}
	return nil
}

// SearchFor builds the round-trip search for one date combination. Matrix
// searches ask for the full result cap so the cheapest fare is not cut off.
func (m MatrixRequest) SearchFor(outbound, inbound string) SearchRequest {
	return SearchRequest{
		Origin:        m.Origin,
		Destination:   m.Destination,
		DepartureDate: outbound,
		ReturnDate:    inbound,
		Adults:        m.Adults,
		Children:      m.Children,
		Infants:       m.Infants,
		Currency:      m.Currency,
		MaxResults:    DefaultMaxResults,
	}.Normalize()
}

// PricingRequest is the body of a pricing stream: each offer is priced
// individually.
type PricingRequest struct {
	FlightOffers []Offer `json:"flightOffers" validate:"required,min=1,max=50"`
	IncludeBags  bool    `json:"includeBags"`
}

func (p PricingRequest) Validate() error {
	if err := validateStruct(&p); err != nil {
		return err
	}
	return requireOfferIDs(p.FlightOffers)
}

// PriceRequest prices a single offer synchronously.
type PriceRequest struct {
	FlightOffer Offer `json:"flightOffer"`
	IncludeBags bool  `json:"includeBags"`
}

func (p PriceRequest) Validate() error {
	return requireOfferIDs([]Offer{p.FlightOffer})
}

// UpsellRequest is the body of an upsell stream.
type UpsellRequest struct {
	FlightOffers []Offer `json:"flightOffers" validate:"required,min=1,max=50"`
}

func (u UpsellRequest) Validate() error {
	if err := validateStruct(&u); err != nil {
		return err
	}
	return requireOfferIDs(u.FlightOffers)
}

func requireOfferIDs(offers []Offer) error {
	seen := make(map[string]struct{}, len(offers))
	for i, o := range offers {
		if o.ID == "" {
			return invalid("flightOffers[%d] has no id", i)
		}
		if _, dup := seen[o.ID]; dup {
			return invalid("flightOffers[%d] repeats id %q", i, o.ID)
		}
		seen[o.ID] = struct{}{}
	}
	return nil
}
