// SPDX-License-Identifier: MIT

package upstream

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticTokens struct {
	value       string
	err         error
	invalidated atomic.Bool
}

func (s *staticTokens) Token(context.Context) (Token, error) {
	if s.err != nil {
		return Token{}, s.err
	}
	return Token{Value: s.value, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (s *staticTokens) Invalidate() { s.invalidated.Store(true) }

// recordingSleep captures requested delays without waiting.
type recordingSleep struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

// scripted replies with the given statuses in order, then 200.
func scripted(t *testing.T, statuses []int, header http.Header, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(calls.Add(1))
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if n <= len(statuses) {
			for k, vs := range header {
				for _, v := range vs {
					w.Header().Add(k, v)
				}
			}
			w.WriteHeader(statuses[n-1])
			_, _ = w.Write([]byte(`{"errors":[{"status":429,"code":38194,"title":"Too many requests"}]}`))
			return
		}
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(append([]byte(`{"echo":`), append(body, '}')...))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCaller_ThreeRateLimitsThenSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := scripted(t, []int{429, 429, 429}, nil, &calls)
	rec := &recordingSleep{}
	c := NewCaller(srv.URL, srv.Client(), &staticTokens{value: "tok"}, WithSleep(rec.sleep))

	resp, err := c.Do(context.Background(), Request{
		Operation: "search",
		Method:    http.MethodPost,
		Path:      "/v2/shopping/flight-offers",
		Body:      []byte(`{"a":1}`),
	})
	require.NoError(t, err)
	assert.EqualValues(t, 4, calls.Load())
	assert.Equal(t, 4, resp.Attempts)
	assert.JSONEq(t, `{"echo":{"a":1}}`, string(resp.Body))
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, rec.delays)
}

func TestCaller_RetryAfterUsedVerbatim(t *testing.T) {
	var calls atomic.Int32
	srv := scripted(t, []int{429, 429}, http.Header{"Retry-After": []string{"7"}}, &calls)
	rec := &recordingSleep{}
	c := NewCaller(srv.URL, srv.Client(), &staticTokens{value: "tok"}, WithSleep(rec.sleep))

	_, err := c.Do(context.Background(), Request{Operation: "search", Path: "/x"})
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{7 * time.Second, 7 * time.Second}, rec.delays)
}

func TestCaller_RetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := scripted(t, []int{429, 429, 429, 429, 429}, nil, &calls)
	rec := &recordingSleep{}
	c := NewCaller(srv.URL, srv.Client(), &staticTokens{value: "tok"}, WithSleep(rec.sleep))

	_, err := c.Do(context.Background(), Request{Operation: "pricing", Path: "/x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRateLimitExceeded))
	assert.Equal(t, KindRateLimited, Kind(err))
	assert.EqualValues(t, 4, calls.Load())
	assert.Len(t, rec.delays, 3)

	var ue *Error
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, 4, ue.Attempts)
	assert.Equal(t, []int{38194}, ue.Codes())
}

func TestCaller_ServerErrorIsTerminal(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"errors":[{"code":141,"title":"SYSTEM ERROR HAS OCCURRED"}]}`))
	}))
	defer srv.Close()
	rec := &recordingSleep{}
	c := NewCaller(srv.URL, srv.Client(), &staticTokens{value: "tok"}, WithSleep(rec.sleep))

	_, err := c.Do(context.Background(), Request{Operation: "search", Path: "/x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUpstream))
	assert.EqualValues(t, 1, calls.Load(), "no retry on 5xx")
	assert.Empty(t, rec.delays)

	var ue *Error
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, http.StatusInternalServerError, ue.Status)
	assert.Contains(t, ue.Body, "SYSTEM ERROR")
	assert.True(t, ue.HasCode(141))
}

func TestCaller_UnauthorizedInvalidatesToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()
	tokens := &staticTokens{value: "tok"}
	c := NewCaller(srv.URL, srv.Client(), tokens)

	_, err := c.Do(context.Background(), Request{Operation: "search", Path: "/x"})
	assert.Equal(t, KindUpstream, Kind(err))
	assert.True(t, tokens.invalidated.Load())
}

func TestCaller_AuthFailureShortCircuits(t *testing.T) {
	var calls atomic.Int32
	srv := scripted(t, nil, nil, &calls)
	authErr := &Error{Sentinel: ErrAuthFailure, Operation: "token"}
	c := NewCaller(srv.URL, srv.Client(), &staticTokens{err: authErr})

	_, err := c.Do(context.Background(), Request{Operation: "search", Path: "/x"})
	assert.True(t, errors.Is(err, ErrAuthFailure))
	assert.Zero(t, calls.Load())
}

func TestCaller_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewCaller(url, &http.Client{Timeout: time.Second}, &staticTokens{value: "tok"})
	_, err := c.Do(context.Background(), Request{Operation: "search", Path: "/x"})
	require.Error(t, err)
	assert.Equal(t, KindTransport, Kind(err))
}

func TestCaller_CancelledDuringBackoff(t *testing.T) {
	var calls atomic.Int32
	srv := scripted(t, []int{429, 429, 429}, nil, &calls)
	c := NewCaller(srv.URL, srv.Client(), &staticTokens{value: "tok"})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	start := time.Now()
	_, err := c.Do(ctx, Request{Operation: "search", Path: "/x"})
	require.Error(t, err)
	assert.Equal(t, KindCancelled, Kind(err))
	assert.Less(t, time.Since(start), 900*time.Millisecond)
	assert.EqualValues(t, 1, calls.Load())
}

func TestCaller_DecodeErrorIsDistinct(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[`))
	}))
	defer srv.Close()
	c := NewCaller(srv.URL, srv.Client(), &staticTokens{value: "tok"})

	resp, err := c.Do(context.Background(), Request{Operation: "search", Path: "/x"})
	require.NoError(t, err)

	var out struct{ Data []any }
	err = resp.Decode("search", &out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDecode))
	assert.False(t, errors.Is(err, ErrUpstream))
	assert.Equal(t, KindDecode, Kind(err))
}

func TestCaller_QueryAndHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "bags", r.URL.Query().Get("include"))
		assert.Equal(t, "GET", r.Header.Get("X-HTTP-Method-Override"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()
	c := NewCaller(srv.URL+"/", srv.Client(), &staticTokens{value: "tok"})

	_, err := c.Do(context.Background(), Request{
		Operation: "pricing",
		Method:    http.MethodPost,
		Path:      "/v1/shopping/flight-offers/pricing",
		Query:     map[string][]string{"include": {"bags"}},
		Header:    http.Header{"X-HTTP-Method-Override": []string{"GET"}},
		Body:      []byte(`{}`),
	})
	require.NoError(t, err)
}

func TestRetryDelay(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		header   string
		attempt  int
		want     time.Duration
		fromHint bool
	}{
		{"backoff 1", "", 1, time.Second, false},
		{"backoff 3", "", 3, 4 * time.Second, false},
		{"seconds hint", "12", 2, 12 * time.Second, true},
		{"zero hint", "0", 2, 0, true},
		{"http date", now.Add(5 * time.Second).Format(http.TimeFormat), 1, 5 * time.Second, true},
		{"garbage falls back", "soon", 2, 2 * time.Second, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.header != "" {
				h.Set("Retry-After", tt.header)
			}
			got, hint := retryDelay(h, tt.attempt, now)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.fromHint, hint)
		})
	}
}

func TestKind(t *testing.T) {
	assert.Equal(t, "", Kind(nil))
	assert.Equal(t, KindCancelled, Kind(context.Canceled))
	assert.Equal(t, KindCancelled, Kind(&Error{Sentinel: ErrTransport, Err: context.DeadlineExceeded}))
	assert.Equal(t, KindInternal, Kind(errors.New("boom")))
	assert.Equal(t, KindUpstream, Kind(&Error{Sentinel: ErrUpstream, Status: 400}))
}
