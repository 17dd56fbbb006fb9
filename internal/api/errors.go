// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/sersery88/flight-ibe/internal/flight"
	xglog "github.com/sersery88/flight-ibe/internal/log"
	"github.com/sersery88/flight-ibe/internal/upstream"
)

// codeOfferExpired is the provider's "no fare applicable" business error: the
// offer being priced is no longer sellable.
const codeOfferExpired = 4926

// maxBodyBytes bounds request bodies. Pricing batches carry full offers.
const maxBodyBytes = 4 << 20

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Detail    string `json:"detail,omitempty"`
	Code      int    `json:"code,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an ErrorResponse carrying the request id.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, detail string) {
	writeJSON(w, status, ErrorResponse{
		Error:     code,
		Detail:    detail,
		RequestID: xglog.RequestIDFromContext(r.Context()),
	})
}

// statusFor maps a pipeline error to an HTTP status and a stable error code.
func statusFor(err error) (int, string) {
	if errors.Is(err, flight.ErrInvalidRequest) {
		return http.StatusBadRequest, "invalid_request"
	}
	switch upstream.Kind(err) {
	case upstream.KindAuth:
		return http.StatusBadGateway, "upstream_auth_failed"
	case upstream.KindRateLimited:
		return http.StatusServiceUnavailable, "upstream_rate_limited"
	case upstream.KindUpstream:
		return http.StatusBadGateway, "upstream_error"
	case upstream.KindDecode:
		return http.StatusBadGateway, "upstream_decode_failed"
	case upstream.KindTransport:
		return http.StatusBadGateway, "upstream_unavailable"
	case upstream.KindCancelled:
		return http.StatusServiceUnavailable, "cancelled"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeFailure logs err and writes the matching ErrorResponse.
func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, operation string, err error) {
	status, code := statusFor(err)
	logger := xglog.WithContext(r.Context(), s.logger)
	ev := logger.Warn()
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		ev = logger.Error()
	}
	ev.Err(err).
		Str(xglog.FieldEvent, "request.failed").
		Str(xglog.FieldOperation, operation).
		Str("kind", upstream.Kind(err)).
		Int(xglog.FieldStatus, status).
		Msg("request failed")
	writeError(w, r, status, code, err.Error())
}

// offerExpired reports whether err carries the provider's 4926 code.
func offerExpired(err error) bool {
	var ue *upstream.Error
	return errors.As(err, &ue) && ue.HasCode(codeOfferExpired)
}

// decodeBody reads one JSON object into v. Unknown fields are tolerated:
// offers round-trip the provider's full structure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("%w: body exceeds %d bytes", flight.ErrInvalidRequest, maxErr.Limit)
		}
		return fmt.Errorf("%w: malformed JSON: %v", flight.ErrInvalidRequest, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing data after JSON body", flight.ErrInvalidRequest)
	}
	return nil
}
