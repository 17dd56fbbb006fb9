// SPDX-License-Identifier: MIT

package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

// rounding inside x/time/rate can shave a few nanoseconds off a reservation.
const slack = time.Millisecond

func newTestPacer(t *testing.T, class string, tps float64) *Pacer {
	t.Helper()
	p, err := NewPacer(class, tps)
	require.NoError(t, err)
	return p
}

func TestNewPacer_RejectsNonPositiveTPS(t *testing.T) {
	for _, tps := range []float64{0, -1, -0.5} {
		_, err := NewPacer("search", tps)
		assert.Error(t, err, "tps=%v", tps)
	}
}

func TestNewPacer_Interval(t *testing.T) {
	p, err := NewPacer("pricing", 10)
	require.NoError(t, err)
	assert.Equal(t, 100*time.Millisecond, p.Interval())
	assert.Equal(t, "pricing", p.Class())
	assert.InDelta(t, 10.0, p.TPS(), 0.0001)

	p4 := newTestPacer(t, "search", 4)
	assert.Equal(t, 250*time.Millisecond, p4.Interval())
}

func TestPacer_SequentialCallsAreSpaced(t *testing.T) {
	const tps = 20 // 50ms
	const n = 6
	p := newTestPacer(t, "search", tps)

	start := time.Now()
	for i := 0; i < n; i++ {
		require.NoError(t, p.Wait(context.Background()))
	}
	elapsed := time.Since(start)

	minimum := time.Duration(n-1) * p.Interval()
	assert.GreaterOrEqual(t, elapsed, minimum-slack, "elapsed %v below %v", elapsed, minimum)
}

func TestPacer_FirstCallPassesImmediately(t *testing.T) {
	p := newTestPacer(t, "search", 1)
	start := time.Now()
	require.NoError(t, p.Wait(context.Background()))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestPacer_ConcurrentCallersNeverShareAWindow(t *testing.T) {
	p := newTestPacer(t, "pricing", 20) // 50ms
	const callers = 15

	var dispatches []time.Time
	p.observe = func(at time.Time) { dispatches = append(dispatches, at) }

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := p.Wait(context.Background()); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	require.Len(t, dispatches, callers)
	for i := 1; i < len(dispatches); i++ {
		gap := dispatches[i].Sub(dispatches[i-1])
		assert.GreaterOrEqual(t, gap, p.Interval(), "dispatch %d followed the previous one after %v", i, gap)
	}
}

func TestPacer_GapMeasuredFromLastDispatch(t *testing.T) {
	p := newTestPacer(t, "search", 20) // 50ms
	require.NoError(t, p.Wait(context.Background()))

	// Even when the limiter lets the caller through, the interval holds.
	p.limiter.SetLimit(rate.Inf)
	start := time.Now()
	require.NoError(t, p.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), p.Interval()-slack)
}

func TestPacer_CancelWhileGatedOnLastDispatch(t *testing.T) {
	p := newTestPacer(t, "search", 1)
	require.NoError(t, p.Wait(context.Background()))
	p.limiter.SetLimit(rate.Inf)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.Wait(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPacer_WaitHonoursCancellation(t *testing.T) {
	p := newTestPacer(t, "search", 1) // 1s interval
	require.NoError(t, p.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Wait(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return after cancellation")
	}
}

func TestPacer_DeadlineShorterThanIntervalFailsFast(t *testing.T) {
	p := newTestPacer(t, "search", 1)
	require.NoError(t, p.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := p.Wait(ctx)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}
