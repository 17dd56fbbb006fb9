// SPDX-License-Identifier: MIT

// Package ratelimit paces outbound calls to a quota-constrained upstream.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"
)

var (
	pacerWaitSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "flight_ibe",
			Name:      "pacer_wait_seconds",
			Help:      "Time callers spent queued behind the upstream pacing gate",
			Buckets:   []float64{0, .01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"class"},
	)
	pacerCancelled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flight_ibe",
			Name:      "pacer_cancelled_total",
			Help:      "Waits abandoned because the caller's context ended",
		},
		[]string{"class"},
	)
)

// Pacer is a global pacing gate: successive dispatches through the same Pacer
// are spaced by at least Interval. It has no burst allowance.
//
// The limiter hands out reservations in arrival order. A waiter that wakes
// late would let the next one through early, so the final gate is measured
// from the last recorded dispatch.
type Pacer struct {
	class    string
	interval time.Duration
	limiter  *rate.Limiter

	mu   sync.Mutex
	last time.Time
	// observe, when set, sees each dispatch time while mu is held.
	observe func(time.Time)
}

// NewPacer builds a pacer for the given endpoint class allowing tps
// dispatches per second.
func NewPacer(class string, tps float64) (*Pacer, error) {
	if tps <= 0 || math.IsNaN(tps) || math.IsInf(tps, 0) {
		return nil, fmt.Errorf("ratelimit: tps must be > 0 (got %v)", tps)
	}
	interval := time.Duration(float64(time.Second) / tps)
	return &Pacer{
		class:    class,
		interval: interval,
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
	}, nil
}

// Wait blocks until the caller may dispatch, then records the dispatch.
// It returns ctx.Err() (or a deadline error) if the caller gives up first;
// in that case the reserved slot is released.
func (p *Pacer) Wait(ctx context.Context) error {
	start := time.Now()
	if err := p.limiter.Wait(ctx); err != nil {
		return p.cancelled(err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.last.IsZero() {
		if gap := time.Until(p.last.Add(p.interval)); gap > 0 {
			timer := time.NewTimer(gap)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return p.cancelled(ctx.Err())
			}
		}
	}

	now := time.Now()
	p.last = now
	if p.observe != nil {
		p.observe(now)
	}
	pacerWaitSeconds.WithLabelValues(p.class).Observe(now.Sub(start).Seconds())
	return nil
}

func (p *Pacer) cancelled(err error) error {
	pacerCancelled.WithLabelValues(p.class).Inc()
	return fmt.Errorf("ratelimit %s: %w", p.class, err)
}

// Interval is the minimum spacing between two dispatches.
func (p *Pacer) Interval() time.Duration { return p.interval }

// Class names the endpoint class this pacer guards.
func (p *Pacer) Class() string { return p.class }

// TPS reports the configured dispatch rate.
func (p *Pacer) TPS() float64 { return float64(time.Second) / float64(p.interval) }
