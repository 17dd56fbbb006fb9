// SPDX-License-Identifier: MIT

package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tokenServer struct {
	calls     atomic.Int32
	expiresIn int
	delay     time.Duration
	status    int
}

func (s *tokenServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n := s.calls.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if r.URL.Path != TokenPath || r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	_ = r.ParseForm()
	w.Header().Set("Content-Type", "application/json")
	if r.PostForm.Get("grant_type") != "client_credentials" ||
		r.PostForm.Get("client_id") != "id" ||
		r.PostForm.Get("client_secret") != "secret" {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid_client","code":38187}`))
		return
	}
	if s.status != 0 {
		w.WriteHeader(s.status)
		_, _ = w.Write([]byte(`{"error":"server_error"}`))
		return
	}
	_, _ = fmt.Fprintf(w, `{"type":"amadeusOAuth2Token","token_type":"Bearer","access_token":"tok-%d","expires_in":%d}`, n, s.expiresIn)
}

func newTestManager(t *testing.T, ts *tokenServer, creds Credentials, opts ...CredentialOption) *CredentialManager {
	t.Helper()
	srv := httptest.NewServer(ts)
	t.Cleanup(srv.Close)
	return NewCredentialManager("primary", srv.URL, creds, srv.Client(), opts...)
}

var goodCreds = Credentials{ClientID: "id", ClientSecret: "secret"}

func TestCredentialManager_MissingCredentials(t *testing.T) {
	ts := &tokenServer{expiresIn: 1799}
	m := newTestManager(t, ts, Credentials{ClientID: "id"})

	_, err := m.Token(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAuthFailure))
	assert.Equal(t, KindAuth, Kind(err))
	assert.False(t, m.Configured())
	assert.Zero(t, ts.calls.Load(), "no exchange without credentials")
}

func TestCredentialManager_ExpiryIsIssuedPlusTTLMinusBuffer(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ts := &tokenServer{expiresIn: 1799}
	m := newTestManager(t, ts, goodCreds, WithClock(func() time.Time { return now }))

	tok, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok.Value)
	assert.Equal(t, now.Add(1799*time.Second-120*time.Second), tok.ExpiresAt)
}

func TestCredentialManager_ReusesTokenUntilSafetyMargin(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		now = now.Add(d)
		mu.Unlock()
	}

	ts := &tokenServer{expiresIn: 600} // effective life 480s
	m := newTestManager(t, ts, goodCreds, WithClock(clock))

	first, err := m.Token(context.Background())
	require.NoError(t, err)

	advance(400 * time.Second) // 80s left, still above the 60s margin
	again, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.Value, again.Value)
	assert.EqualValues(t, 1, ts.calls.Load())

	advance(30 * time.Second) // 50s left
	refreshed, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, first.Value, refreshed.Value)
	assert.EqualValues(t, 2, ts.calls.Load())
}

func TestCredentialManager_ShortGrantServesRefresherOnly(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ts := &tokenServer{expiresIn: 150} // effective life 30s, inside the margin
	m := newTestManager(t, ts, goodCreds, WithClock(func() time.Time { return now }))

	first, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", first.Value)
	assert.Equal(t, now.Add(30*time.Second), first.ExpiresAt)

	second, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-2", second.Value, "a token inside the margin is never reused")
	assert.EqualValues(t, 2, ts.calls.Load())
}

func TestCredentialManager_ConcurrentCallersRefreshOnce(t *testing.T) {
	ts := &tokenServer{expiresIn: 1799, delay: 50 * time.Millisecond}
	m := newTestManager(t, ts, goodCreds)
	// Seed an expired token so every caller starts on the slow path.
	m.token = Token{Value: "stale", ExpiresAt: time.Now().Add(-time.Minute)}

	const callers = 20
	var (
		wg     sync.WaitGroup
		start  = make(chan struct{})
		values = make(chan string, callers)
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			tok, err := m.Token(context.Background())
			if err != nil {
				t.Error(err)
				return
			}
			values <- tok.Value
		}()
	}
	close(start)
	wg.Wait()
	close(values)

	assert.EqualValues(t, 1, ts.calls.Load(), "exactly one auth call")
	for v := range values {
		assert.Equal(t, "tok-1", v)
	}
}

func TestCredentialManager_RejectedCredentials(t *testing.T) {
	ts := &tokenServer{expiresIn: 1799}
	m := newTestManager(t, ts, Credentials{ClientID: "id", ClientSecret: "wrong"})

	_, err := m.Token(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAuthFailure))

	var ue *Error
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, http.StatusUnauthorized, ue.Status)
	assert.Contains(t, ue.Body, "invalid_client")
}

func TestCredentialManager_ServerErrorIsAuthFailure(t *testing.T) {
	ts := &tokenServer{expiresIn: 1799, status: http.StatusInternalServerError}
	m := newTestManager(t, ts, goodCreds)

	_, err := m.Token(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindAuth, Kind(err))
	assert.Equal(t, http.StatusInternalServerError, Status(err))
}

func TestCredentialManager_InvalidateForcesRefresh(t *testing.T) {
	ts := &tokenServer{expiresIn: 1799}
	m := newTestManager(t, ts, goodCreds)

	_, err := m.Token(context.Background())
	require.NoError(t, err)
	m.Invalidate()
	tok, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-2", tok.Value)
	require.NoError(t, m.Check(context.Background()))
}

func TestCredentialManager_MissingExpiresInUsesDefault(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"plain","token_type":"Bearer"}`))
	}))
	t.Cleanup(srv.Close)

	m := NewCredentialManager("primary", srv.URL, goodCreds, srv.Client(), WithClock(func() time.Time { return now }))
	tok, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, now.Add(defaultTokenTTL-tokenExpiryBuffer), tok.ExpiresAt)
}
