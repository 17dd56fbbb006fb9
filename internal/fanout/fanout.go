// SPDX-License-Identifier: MIT

// Package fanout executes independent sub-queries with bounded concurrency.
// Each sub-query consults the cache first and only spends upstream budget
// (pacer slot plus call) on a miss.
package fanout

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sersery88/flight-ibe/internal/cache"
	xglog "github.com/sersery88/flight-ibe/internal/log"
	"github.com/sersery88/flight-ibe/internal/metrics"
	"github.com/sersery88/flight-ibe/internal/telemetry"
	"github.com/sersery88/flight-ibe/internal/upstream"
)

const outcomeSuccess = "success"

// SubQuery is one unit of fan-out work.
type SubQuery struct {
	ID string
	// CacheKey and TTL enable cache-aside for this item. An empty key or a
	// zero TTL bypasses the cache.
	CacheKey string
	TTL      time.Duration
	// Gate, when set, replaces the executor's gate for this item.
	Gate Gate
	// Fetch performs the upstream call and returns the raw response body.
	Fetch func(ctx context.Context) ([]byte, error)
	// Decode turns a raw body (fresh or cached) into the success payload.
	Decode func(raw []byte) (any, error)
}

// Outcome is the terminal result of one SubQuery: exactly one of Payload or
// Err is meaningful.
type Outcome struct {
	ID        string
	Payload   any
	Err       error
	Kind      string // upstream.Kind of Err, empty on success
	FromCache bool
	Elapsed   time.Duration
}

// OK reports whether the sub-query succeeded.
func (o Outcome) OK() bool { return o.Err == nil }

// Gate admits upstream dispatches. *ratelimit.Pacer implements it.
type Gate interface {
	Wait(ctx context.Context) error
}

// Executor runs a single sub-query through cache, gate and fetch.
type Executor struct {
	cache  *cache.Aside
	gate   Gate
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewExecutor builds an executor. A nil cache disables cache-aside.
func NewExecutor(c *cache.Aside, gate Gate) *Executor {
	return &Executor{
		cache:  c,
		gate:   gate,
		tracer: telemetry.Tracer("github.com/sersery88/flight-ibe/internal/fanout"),
		logger: xglog.WithComponent("fanout"),
	}
}

// Run executes q and always returns an Outcome.
func (e *Executor) Run(ctx context.Context, q SubQuery) Outcome {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "fanout.subquery", trace.WithAttributes(
		attribute.String(telemetry.ItemIDKey, q.ID),
	))
	defer span.End()

	out := e.run(ctx, q)
	out.ID = q.ID
	out.Elapsed = time.Since(start)

	span.SetAttributes(attribute.Bool(telemetry.CacheHitKey, out.FromCache))
	if out.Err != nil {
		out.Kind = upstream.Kind(out.Err)
		span.RecordError(out.Err)
		span.SetStatus(codes.Error, out.Kind)
		metrics.RecordSubQuery(out.Kind)
		logger := xglog.WithContext(ctx, e.logger)
		logger.Debug().Err(out.Err).
			Str(xglog.FieldEvent, "fanout.item_failed").
			Str(xglog.FieldItemID, q.ID).
			Str("kind", out.Kind).
			Msg("sub-query failed")
	} else {
		metrics.RecordSubQuery(outcomeSuccess)
	}
	return out
}

func (e *Executor) run(ctx context.Context, q SubQuery) Outcome {
	if err := ctx.Err(); err != nil {
		return Outcome{Err: err}
	}

	cacheable := q.CacheKey != "" && q.TTL > 0
	if cacheable {
		if raw, ok := e.cache.Lookup(ctx, q.CacheKey); ok {
			payload, err := q.Decode(raw)
			if err == nil {
				return Outcome{Payload: payload, FromCache: true}
			}
			// A stale schema or truncated entry is a miss, not a failure.
			logger := xglog.WithContext(ctx, e.logger)
			logger.Warn().Err(err).
				Str(xglog.FieldEvent, "cache.entry_undecodable").
				Str(xglog.FieldCacheKey, q.CacheKey).
				Msg("ignoring undecodable cache entry")
		}
	}

	gate := e.gate
	if q.Gate != nil {
		gate = q.Gate
	}
	if gate != nil {
		if err := gate.Wait(ctx); err != nil {
			return Outcome{Err: err}
		}
	}

	raw, err := q.Fetch(ctx)
	if err != nil {
		return Outcome{Err: err}
	}
	payload, err := q.Decode(raw)
	if err != nil {
		return Outcome{Err: err}
	}
	if cacheable {
		e.cache.Store(ctx, q.CacheKey, raw, q.TTL)
	}
	return Outcome{Payload: payload}
}
