// SPDX-License-Identifier: MIT

// Package upstream talks to the flight data provider: bearer token management,
// a 429-aware retrying caller and the error taxonomy shared by the pipeline.
package upstream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	xglog "github.com/sersery88/flight-ibe/internal/log"
	"github.com/sersery88/flight-ibe/internal/metrics"
)

const (
	// DefaultMaxRetries is the number of additional attempts after a 429.
	DefaultMaxRetries = 3
	maxResponseBytes  = 32 << 20
)

// TokenSource supplies bearer tokens. CredentialManager is the production
// implementation.
type TokenSource interface {
	Token(ctx context.Context) (Token, error)
}

// Request describes one logical upstream call.
type Request struct {
	Operation string // metric/log label, e.g. "search", "pricing"
	Method    string
	Path      string // relative to the caller's base URL
	Query     url.Values
	Header    http.Header
	Body      []byte // JSON payload, resent verbatim on every attempt
}

// Response is a successful (2xx) upstream answer.
type Response struct {
	Status   int
	Header   http.Header
	Body     []byte
	Attempts int
}

// Caller issues authenticated requests against one provider base URL and
// retries 429 responses.
type Caller struct {
	baseURL    string
	client     *http.Client
	tokens     TokenSource
	maxRetries int
	sleep      func(ctx context.Context, d time.Duration) error
	logger     zerolog.Logger
}

// CallerOption customises a Caller.
type CallerOption func(*Caller)

// WithMaxRetries overrides DefaultMaxRetries. Negative values are ignored.
func WithMaxRetries(n int) CallerOption {
	return func(c *Caller) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithSleep replaces the backoff sleep; tests use it to observe delays.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) CallerOption {
	return func(c *Caller) {
		if fn != nil {
			c.sleep = fn
		}
	}
}

// NewCaller builds a Caller.
func NewCaller(baseURL string, client *http.Client, tokens TokenSource, opts ...CallerOption) *Caller {
	c := &Caller{
		baseURL:    strings.TrimRight(baseURL, "/"),
		client:     client,
		tokens:     tokens,
		maxRetries: DefaultMaxRetries,
		sleep:      sleepContext,
		logger:     xglog.WithComponent("upstream"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do performs req. A 2xx response is returned as is. A 429 is retried up to
// maxRetries times, waiting Retry-After when present and 2^(attempt-1)
// seconds otherwise. Every other status is terminal.
func (c *Caller) Do(ctx context.Context, req Request) (*Response, error) {
	logger := xglog.WithContext(ctx, c.logger).With().Str(xglog.FieldOperation, req.Operation).Logger()

	for attempt := 1; ; attempt++ {
		tok, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, err
		}

		start := time.Now()
		status, header, body, err := c.attempt(ctx, req, tok)
		elapsed := time.Since(start)
		if err != nil {
			metrics.RecordUpstreamAttempt(req.Operation, "transport_error", elapsed)
			return nil, &Error{Sentinel: ErrTransport, Operation: req.Operation, Attempts: attempt, Err: err}
		}

		switch {
		case status >= 200 && status < 300:
			metrics.RecordUpstreamAttempt(req.Operation, "ok", elapsed)
			return &Response{Status: status, Header: header, Body: body, Attempts: attempt}, nil

		case status == http.StatusTooManyRequests:
			metrics.RecordUpstreamAttempt(req.Operation, "rate_limited", elapsed)
			if attempt > c.maxRetries {
				logger.Warn().
					Str(xglog.FieldEvent, "upstream.retries_exhausted").
					Int(xglog.FieldAttempt, attempt).
					Msg("upstream still rate limiting after retries")
				return nil, &Error{
					Sentinel:  ErrRateLimitExceeded,
					Operation: req.Operation,
					Status:    status,
					Body:      string(body),
					Attempts:  attempt,
				}
			}
			delay, fromHint := retryDelay(header, attempt, time.Now())
			metrics.RecordUpstreamRetry(req.Operation, fromHint)
			logger.Info().
				Str(xglog.FieldEvent, "upstream.retry").
				Int(xglog.FieldAttempt, attempt).
				Dur("delay", delay).
				Bool("retry_after", fromHint).
				Msg("rate limited by upstream, backing off")
			if err := c.sleep(ctx, delay); err != nil {
				return nil, fmt.Errorf("%s: waiting to retry: %w", req.Operation, err)
			}

		default:
			metrics.RecordUpstreamAttempt(req.Operation, "upstream_error", elapsed)
			if status == http.StatusUnauthorized {
				// Token revoked upstream before its advertised expiry.
				if inv, ok := c.tokens.(interface{ Invalidate() }); ok {
					inv.Invalidate()
				}
			}
			return nil, &Error{
				Sentinel:  ErrUpstream,
				Operation: req.Operation,
				Status:    status,
				Body:      string(body),
				Attempts:  attempt,
			}
		}
	}
}

func (c *Caller) attempt(ctx context.Context, req Request, tok Token) (int, http.Header, []byte, error) {
	target := c.baseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("build request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Authorization", "Bearer "+tok.Value)
	httpReq.Header.Set("Accept", "application/json")
	if req.Body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return 0, nil, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, nil, fmt.Errorf("read body: %w", err)
	}
	return resp.StatusCode, resp.Header, data, nil
}

// retryDelay returns the wait before the next attempt and whether it came
// from the provider's Retry-After header. An unparseable hint falls back to
// exponential backoff.
func retryDelay(h http.Header, attempt int, now time.Time) (time.Duration, bool) {
	if v := strings.TrimSpace(h.Get("Retry-After")); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second, true
		}
		if at, err := http.ParseTime(v); err == nil {
			d := at.Sub(now)
			if d < 0 {
				d = 0
			}
			return d, true
		}
	}
	return time.Duration(1<<(attempt-1)) * time.Second, false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
