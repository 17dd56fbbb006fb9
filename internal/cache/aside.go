// SPDX-License-Identifier: MIT

package cache

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	xglog "github.com/sersery88/flight-ibe/internal/log"
	"github.com/sersery88/flight-ibe/internal/metrics"
)

const (
	defaultOpTimeout       = 2 * time.Second
	defaultJanitorInterval = time.Minute
)

// Aside wraps a Store with cache-aside semantics: lookups that fail are
// misses, writes that fail are logged and dropped. A nil Aside, or one over
// a nil store, is disabled.
type Aside struct {
	store     Store
	opTimeout time.Duration
	logger    zerolog.Logger
}

// NewAside wraps store. opTimeout bounds each store round trip; zero uses
// the default.
func NewAside(store Store, opTimeout time.Duration) *Aside {
	if opTimeout <= 0 {
		opTimeout = defaultOpTimeout
	}
	return &Aside{
		store:     store,
		opTimeout: opTimeout,
		logger:    xglog.WithComponent("cache"),
	}
}

// Enabled reports whether lookups can ever hit.
func (a *Aside) Enabled() bool {
	if a == nil || a.store == nil {
		return false
	}
	_, noop := a.store.(noopStore)
	return !noop
}

// Lookup returns the cached value for key.
func (a *Aside) Lookup(ctx context.Context, key string) ([]byte, bool) {
	if !a.Enabled() || key == "" {
		metrics.RecordCacheGet("disabled")
		return nil, false
	}
	opCtx, cancel := context.WithTimeout(ctx, a.opTimeout)
	defer cancel()

	val, found, err := a.store.Get(opCtx, key)
	switch {
	case err != nil:
		metrics.RecordCacheGet("error")
		logger := xglog.WithContext(ctx, a.logger)
		logger.Warn().Err(err).
			Str(xglog.FieldEvent, "cache.get_failed").
			Str(xglog.FieldCacheKey, key).
			Msg("cache lookup failed, treating as miss")
		return nil, false
	case !found:
		metrics.RecordCacheGet("miss")
		return nil, false
	default:
		metrics.RecordCacheGet("hit")
		return val, true
	}
}

// Store writes value under key for ttl. Failures never reach the caller.
func (a *Aside) Store(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if !a.Enabled() || key == "" || ttl <= 0 {
		metrics.RecordCacheSet("disabled")
		return
	}
	// The write happens after the upstream answered; a client that has gone
	// away meanwhile should not lose the entry.
	opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.opTimeout)
	defer cancel()

	if err := a.store.Set(opCtx, key, value, ttl); err != nil {
		metrics.RecordCacheSet("error")
		logger := xglog.WithContext(ctx, a.logger)
		logger.Warn().Err(err).
			Str(xglog.FieldEvent, "cache.put_failed").
			Str(xglog.FieldCacheKey, key).
			Msg("cache write failed, ignoring")
		return
	}
	metrics.RecordCacheSet("ok")
}

// HealthCheck probes the store if it supports it.
func (a *Aside) HealthCheck(ctx context.Context) error {
	if !a.Enabled() {
		return nil
	}
	if hc, ok := a.store.(interface{ HealthCheck(context.Context) error }); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

// Stats returns the store's counters. A disabled cache reports zeros.
func (a *Aside) Stats() Stats {
	if !a.Enabled() {
		return Stats{}
	}
	return a.store.Stats()
}

// Backend names the configured store type for logs and readiness output.
func (a *Aside) Backend() string {
	if !a.Enabled() {
		return "none"
	}
	switch a.store.(type) {
	case *RedisStore:
		return "redis"
	case *BadgerStore:
		return "badger"
	case *MemoryStore:
		return "memory"
	default:
		return "custom"
	}
}
