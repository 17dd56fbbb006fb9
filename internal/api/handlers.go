// SPDX-License-Identifier: MIT

package api

import (
	"fmt"
	"net/http"

	"github.com/sersery88/flight-ibe/internal/api/middleware"
	"github.com/sersery88/flight-ibe/internal/flight"
	xglog "github.com/sersery88/flight-ibe/internal/log"
	"github.com/sersery88/flight-ibe/internal/provider"
	"github.com/sersery88/flight-ibe/internal/telemetry"
)

// handleFlightSearch answers one search from every configured source.
func (s *Server) handleFlightSearch(w http.ResponseWriter, r *http.Request) {
	var req flight.SearchRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeFailure(w, r, "flight-search", err)
		return
	}
	middleware.AddSpanAttributes(r, telemetry.SearchAttributes(
		req.Origin, req.Destination, req.DepartureDate, req.ReturnDate,
		req.Adults+req.Children+req.Infants,
	)...)

	resp, err := s.search.Search(r.Context(), req)
	if err != nil {
		s.writeFailure(w, r, "flight-search", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleFlightPrice confirms a single offer. An offer the provider no longer
// sells is the caller's problem, so it maps to 400 rather than 502.
func (s *Server) handleFlightPrice(w http.ResponseWriter, r *http.Request) {
	var req flight.PriceRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeFailure(w, r, "flight-price", err)
		return
	}

	resp, err := s.provider.Price(r.Context(), req)
	if err != nil {
		if offerExpired(err) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:     "offer_no_longer_valid",
				Detail:    "No fare applicable",
				Code:      codeOfferExpired,
				RequestID: xglog.RequestIDFromContext(r.Context()),
			})
			return
		}
		s.writeFailure(w, r, "flight-price", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleUpsell returns branded-fare alternatives for a set of offers in one
// document. No alternatives is an empty list, not an error.
func (s *Server) handleUpsell(w http.ResponseWriter, r *http.Request) {
	var req flight.UpsellRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeFailure(w, r, "upsell", err)
		return
	}

	resp, err := s.provider.Upsell(r.Context(), req)
	if err != nil {
		s.writeFailure(w, r, "upsell", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// MatrixSummary tallies a non-streaming matrix.
type MatrixSummary struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// MatrixResponse is the body of POST /price-matrix. Cells are in
// outbound-major order; a failed search yields a cell with a null price.
type MatrixResponse struct {
	Prices  []provider.MatrixCell `json:"prices"`
	Summary MatrixSummary         `json:"summary"`
}

// handlePriceMatrix drains the matrix pipeline into one JSON document.
func (s *Server) handlePriceMatrix(w http.ResponseWriter, r *http.Request) {
	req, err := s.matrixRequest(w, r)
	if err != nil {
		s.writeFailure(w, r, "price-matrix", err)
		return
	}
	if err := s.checkCredentials(r.Context()); err != nil {
		s.writeFailure(w, r, "price-matrix", err)
		return
	}

	queries := s.provider.MatrixQueries(req)
	items := provider.MatrixItems(req)
	outcomes := s.matrix.RunAll(r.Context(), queries)

	resp := MatrixResponse{
		Prices:  make([]provider.MatrixCell, len(outcomes)),
		Summary: MatrixSummary{Total: len(outcomes)},
	}
	for i, o := range outcomes {
		if cell, ok := o.Payload.(provider.MatrixCell); ok && o.OK() {
			resp.Prices[i] = cell
			resp.Summary.Successful++
			continue
		}
		resp.Prices[i] = items[i]
		resp.Summary.Failed++
	}
	writeJSON(w, http.StatusOK, resp)
}

// matrixRequest decodes and validates a matrix body and enforces the cell
// limit before any upstream call.
func (s *Server) matrixRequest(w http.ResponseWriter, r *http.Request) (flight.MatrixRequest, error) {
	var req flight.MatrixRequest
	if err := decodeBody(w, r, &req); err != nil {
		return req, err
	}
	if err := req.Validate(); err != nil {
		return req, err
	}
	if n := len(provider.MatrixItems(req)); n > s.cfg.MaxMatrixCells {
		return req, fmt.Errorf("%w: %d date combinations exceed the limit of %d",
			flight.ErrInvalidRequest, n, s.cfg.MaxMatrixCells)
	}
	return req, nil
}
