// SPDX-License-Identifier: MIT

package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	xglog "github.com/sersery88/flight-ibe/internal/log"
	"github.com/sersery88/flight-ibe/internal/metrics"
)

// TokenPath is the client-credentials exchange endpoint relative to the
// provider base URL.
const TokenPath = "/v1/security/oauth2/token"

const (
	// A cached token is only handed out while it has more than this left.
	// The caller that performs an exchange gets the fresh token regardless,
	// so a grant shorter than tokenExpiryBuffer+tokenSafetyMargin (180s)
	// reaches that caller with under a minute left and every later caller
	// refreshes again.
	tokenSafetyMargin = 60 * time.Second
	// Subtracted from the provider's expires_in when storing a fresh token.
	tokenExpiryBuffer = 120 * time.Second
	// Used when the provider omits expires_in.
	defaultTokenTTL = 30 * time.Minute
)

// Token is a bearer token with its effective expiry.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

func (t Token) usableAt(now time.Time) bool {
	return t.Value != "" && t.ExpiresAt.Sub(now) > tokenSafetyMargin
}

// Credentials are the client-credentials pair issued by the provider.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

func (c Credentials) configured() bool {
	return strings.TrimSpace(c.ClientID) != "" && strings.TrimSpace(c.ClientSecret) != ""
}

// CredentialManager obtains and caches the bearer token for one provider
// account. Safe for concurrent use; concurrent callers racing on a stale token
// trigger a single exchange.
type CredentialManager struct {
	source string
	creds  Credentials
	cfg    clientcredentials.Config
	client *http.Client
	now    func() time.Time
	logger zerolog.Logger

	mu    sync.RWMutex
	token Token
}

// CredentialOption customises a CredentialManager.
type CredentialOption func(*CredentialManager)

// WithClock overrides the time source.
func WithClock(now func() time.Time) CredentialOption {
	return func(m *CredentialManager) { m.now = now }
}

// NewCredentialManager builds a manager exchanging creds at baseURL+TokenPath.
// The exchange goes through client, which should be the same client the
// Caller uses.
func NewCredentialManager(source, baseURL string, creds Credentials, client *http.Client, opts ...CredentialOption) *CredentialManager {
	m := &CredentialManager{
		source: source,
		creds:  creds,
		cfg: clientcredentials.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			TokenURL:     strings.TrimRight(baseURL, "/") + TokenPath,
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		client: client,
		now:    time.Now,
		logger: xglog.WithComponent("credentials").With().Str(xglog.FieldSource, source).Logger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Configured reports whether client credentials were supplied.
func (m *CredentialManager) Configured() bool { return m.creds.configured() }

// Token returns a bearer token with more than a minute of life left,
// refreshing it if needed.
func (m *CredentialManager) Token(ctx context.Context) (Token, error) {
	if !m.creds.configured() {
		return Token{}, &Error{
			Sentinel:  ErrAuthFailure,
			Operation: "token",
			Err:       errors.New("client credentials not configured"),
		}
	}

	m.mu.RLock()
	tok := m.token
	m.mu.RUnlock()
	if tok.usableAt(m.now()) {
		return tok, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Another caller may have refreshed while we waited for the write lock.
	if m.token.usableAt(m.now()) {
		return m.token, nil
	}

	fresh, err := m.refresh(ctx)
	metrics.RecordTokenRefresh(m.source, err)
	if err != nil {
		logger := xglog.WithContext(ctx, m.logger)
		logger.Error().Err(err).
			Str(xglog.FieldEvent, "token.refresh_failed").
			Msg("bearer token refresh failed")
		return Token{}, err
	}
	m.token = fresh
	m.logger.Debug().
		Str(xglog.FieldEvent, "token.refreshed").
		Time("expires_at", fresh.ExpiresAt).
		Msg("bearer token refreshed")
	return fresh, nil
}

// Invalidate drops the cached token so the next Token call refreshes.
func (m *CredentialManager) Invalidate() {
	m.mu.Lock()
	m.token = Token{}
	m.mu.Unlock()
}

// Check implements a readiness probe: credentials present and a token obtainable.
func (m *CredentialManager) Check(ctx context.Context) error {
	_, err := m.Token(ctx)
	return err
}

func (m *CredentialManager) refresh(ctx context.Context) (Token, error) {
	issuedAt := m.now()
	if m.client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, m.client)
	}

	raw, err := m.cfg.Token(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Token{}, &Error{Sentinel: ErrAuthFailure, Operation: "token", Err: ctxErr}
		}
		out := &Error{Sentinel: ErrAuthFailure, Operation: "token", Err: err}
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			out.Err = nil
			out.Body = string(re.Body)
			if re.Response != nil {
				out.Status = re.Response.StatusCode
			}
		}
		return Token{}, out
	}
	if raw.AccessToken == "" {
		return Token{}, &Error{
			Sentinel:  ErrAuthFailure,
			Operation: "token",
			Err:       errors.New("empty access_token in response"),
		}
	}

	ttl := tokenTTL(raw, issuedAt)
	return Token{
		Value:     raw.AccessToken,
		ExpiresAt: issuedAt.Add(ttl - tokenExpiryBuffer),
	}, nil
}

func tokenTTL(raw *oauth2.Token, issuedAt time.Time) time.Duration {
	switch v := raw.Extra("expires_in").(type) {
	case float64:
		if v > 0 {
			return time.Duration(v * float64(time.Second))
		}
	case json.Number:
		if n, err := v.Int64(); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	case string:
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	if !raw.Expiry.IsZero() {
		if d := raw.Expiry.Sub(issuedAt); d > 0 {
			return d
		}
	}
	return defaultTokenTTL
}
