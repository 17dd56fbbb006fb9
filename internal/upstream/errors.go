// SPDX-License-Identifier: MIT

package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrAuthFailure       = errors.New("upstream: authentication failed")
	ErrRateLimitExceeded = errors.New("upstream: rate limit retries exhausted")
	ErrUpstream          = errors.New("upstream: non-success response")
	ErrDecode            = errors.New("upstream: malformed response body")
	ErrTransport         = errors.New("upstream: transport failure")
)

// Error is a rich error type that wraps the sentinel errors with context.
type Error struct {
	Sentinel  error
	Operation string
	Status    int
	Body      string
	Attempts  int
	Err       error // Nested lower-level error (e.g. net.Error, json.SyntaxError)
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Operation, e.Sentinel)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Attempts > 1 {
		msg = fmt.Sprintf("%s after %d attempts", msg, e.Attempts)
	}
	if e.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, truncate(e.Body, 512))
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes both the sentinel and the nested cause, so errors.Is works
// for ErrTransport as well as context.Canceled.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Sentinel}
	}
	return []error{e.Sentinel, e.Err}
}

// Codes returns the provider error codes found in the body, if it is a JSON
// error document of the form {"errors":[{"code":...}]}.
func (e *Error) Codes() []int {
	if e.Body == "" {
		return nil
	}
	var doc struct {
		Errors []struct {
			Code json.Number `json:"code"`
		} `json:"errors"`
	}
	if err := json.Unmarshal([]byte(e.Body), &doc); err != nil {
		return nil
	}
	codes := make([]int, 0, len(doc.Errors))
	for _, item := range doc.Errors {
		if n, err := item.Code.Int64(); err == nil {
			codes = append(codes, int(n))
		}
	}
	return codes
}

// HasCode reports whether the provider error body carries code.
func (e *Error) HasCode(code int) bool {
	for _, c := range e.Codes() {
		if c == code {
			return true
		}
	}
	return false
}

// Error kinds as reported in stream error events and metric labels.
const (
	KindAuth        = "auth"
	KindRateLimited = "rate_limited"
	KindUpstream    = "upstream"
	KindDecode      = "decode"
	KindTransport   = "transport"
	KindCancelled   = "cancelled"
	KindInternal    = "internal"
)

// Kind classifies err into one of the stable Kind* strings.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCancelled
	case errors.Is(err, ErrAuthFailure):
		return KindAuth
	case errors.Is(err, ErrRateLimitExceeded):
		return KindRateLimited
	case errors.Is(err, ErrUpstream):
		return KindUpstream
	case errors.Is(err, ErrDecode):
		return KindDecode
	case errors.Is(err, ErrTransport):
		return KindTransport
	default:
		return KindInternal
	}
}

// Status returns the HTTP status carried by err, or 0.
func Status(err error) int {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Status
	}
	return 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
