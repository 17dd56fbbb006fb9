// SPDX-License-Identifier: MIT

package flight

import "strconv"

// MaxTravelers is the largest party the provider accepts in one search.
const MaxTravelers = 9

// Traveler types understood by the provider.
const (
	TravelerAdult      = "ADULT"
	TravelerChild      = "CHILD"
	TravelerHeldInfant = "HELD_INFANT"
)

// Party is a validated party composition.
type Party struct {
	adults, children, infants int
}

// NewParty validates the composition: at least one adult, no more infants
// than adults (each lap infant is held by an adult) and at most MaxTravelers
// in total.
func NewParty(adults, children, infants int) (Party, error) {
	switch {
	case adults < 1:
		return Party{}, invalid("at least one adult is required")
	case children < 0 || infants < 0:
		return Party{}, invalid("traveler counts must not be negative")
	case infants > adults:
		return Party{}, invalid("infants (%d) exceed adults (%d)", infants, adults)
	case adults+children+infants > MaxTravelers:
		return Party{}, invalid("party of %d exceeds %d travelers", adults+children+infants, MaxTravelers)
	}
	return Party{adults: adults, children: children, infants: infants}, nil
}

func (p Party) Adults() int   { return p.adults }
func (p Party) Children() int { return p.children }
func (p Party) Infants() int  { return p.infants }

// Traveler is one entry of the provider's travelers array.
type Traveler struct {
	ID                string `json:"id"`
	TravelerType      string `json:"travelerType"`
	AssociatedAdultID string `json:"associatedAdultId,omitempty"`
}

// Travelers lists adults, then children, then held infants with sequential
// IDs starting at 1. Infant i is held by adult (i mod adults)+1.
func (p Party) Travelers() []Traveler {
	out := make([]Traveler, 0, p.adults+p.children+p.infants)
	next := 1
	add := func(kind, adult string) {
		out = append(out, Traveler{ID: strconv.Itoa(next), TravelerType: kind, AssociatedAdultID: adult})
		next++
	}
	for i := 0; i < p.adults; i++ {
		add(TravelerAdult, "")
	}
	for i := 0; i < p.children; i++ {
		add(TravelerChild, "")
	}
	for i := 0; i < p.infants; i++ {
		add(TravelerHeldInfant, strconv.Itoa(i%p.adults+1))
	}
	return out
}
