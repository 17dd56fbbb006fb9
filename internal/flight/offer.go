// SPDX-License-Identifier: MIT

package flight

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// Price is the typed part of an offer's price block.
type Price struct {
	Currency   string `json:"currency"`
	Total      string `json:"total"`
	Base       string `json:"base,omitempty"`
	GrandTotal string `json:"grandTotal,omitempty"`
}

// Amount parses Total. ok is false when the provider sent something that is
// not a finite number.
func (p Price) Amount() (amount float64, ok bool) {
	v, err := strconv.ParseFloat(p.Total, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// SortKey is Amount with unparseable prices mapped to +Inf so they sort last.
func (p Price) SortKey() float64 {
	if v, ok := p.Amount(); ok {
		return v
	}
	return math.Inf(1)
}

// Offer is a flight offer. ID, Source and Price are decoded; the full
// provider document is kept verbatim so re-encoding (for pricing or upsell
// requests and for responses) loses nothing.
type Offer struct {
	ID     string
	Source string
	Price  Price

	raw json.RawMessage
}

type offerView struct {
	ID     string `json:"id"`
	Type   string `json:"type,omitempty"`
	Source string `json:"source,omitempty"`
	Price  Price  `json:"price"`
}

func (o *Offer) UnmarshalJSON(data []byte) error {
	var v offerView
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.ID, o.Source, o.Price = v.ID, v.Source, v.Price
	o.raw = append(o.raw[:0], bytes.TrimSpace(data)...)
	return nil
}

func (o Offer) MarshalJSON() ([]byte, error) {
	if len(o.raw) > 0 {
		return o.raw, nil
	}
	return json.Marshal(offerView{ID: o.ID, Type: "flight-offer", Source: o.Source, Price: o.Price})
}

// OffersResponse is the search and upsell response document.
type OffersResponse struct {
	Data         []Offer         `json:"data"`
	Dictionaries json.RawMessage `json:"dictionaries,omitempty"`
}

// Cheapest returns the lowest-priced offer with a parseable price.
func (r *OffersResponse) Cheapest() (Offer, bool) {
	best, found := Offer{}, false
	for _, o := range r.Data {
		amount, ok := o.Price.Amount()
		if !ok {
			continue
		}
		if bestAmount, _ := best.Price.Amount(); !found || amount < bestAmount {
			best, found = o, true
		}
	}
	return best, found
}

// PriceResponse is the pricing response document. Only the confirmed offers
// are typed; booking requirements and included services pass through.
type PriceResponse struct {
	Data struct {
		Type                string          `json:"type"`
		FlightOffers        []Offer         `json:"flightOffers"`
		BookingRequirements json.RawMessage `json:"bookingRequirements,omitempty"`
	} `json:"data"`
	Dictionaries json.RawMessage `json:"dictionaries,omitempty"`
	Included     json.RawMessage `json:"included,omitempty"`
}
