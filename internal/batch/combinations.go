// SPDX-License-Identifier: MIT

// Package batch expands batch requests into independent sub-queries.
package batch

import (
	"time"

	"github.com/sersery88/flight-ibe/internal/flight"
)

// Combination is one outbound/inbound date pair.
type Combination struct {
	Outbound string `json:"outboundDate"`
	Inbound  string `json:"inboundDate"`
}

// ID identifies the combination inside its batch.
func (c Combination) ID() string { return c.Outbound + "_" + c.Inbound }

// Combinations returns every pair whose inbound date is strictly after the
// outbound date, outbound-major and inbound-minor in input order. Dates are
// compared as calendar dates when both parse as YYYY-MM-DD and as strings
// otherwise. Duplicate pairs are emitted once.
func Combinations(outbound, inbound []string) []Combination {
	out := make([]Combination, 0, len(outbound)*len(inbound))
	seen := make(map[Combination]struct{}, cap(out))
	for _, o := range outbound {
		for _, i := range inbound {
			if !after(i, o) {
				continue
			}
			c := Combination{Outbound: o, Inbound: i}
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}

func after(a, b string) bool {
	ta, errA := time.Parse(flight.DateLayout, a)
	tb, errB := time.Parse(flight.DateLayout, b)
	if errA == nil && errB == nil {
		return ta.After(tb)
	}
	return a > b
}

// MatrixItem is one sub-query of a price matrix: the date pair and the
// round-trip search that prices it.
type MatrixItem struct {
	Combination
	Search flight.SearchRequest
}

// MatrixQueries expands a validated matrix request into its searches.
func MatrixQueries(req flight.MatrixRequest) []MatrixItem {
	combos := Combinations(req.OutboundDates, req.InboundDates)
	items := make([]MatrixItem, len(combos))
	for i, c := range combos {
		items[i] = MatrixItem{Combination: c, Search: req.SearchFor(c.Outbound, c.Inbound)}
	}
	return items
}
