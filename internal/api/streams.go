// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/sersery88/flight-ibe/internal/fanout"
	"github.com/sersery88/flight-ibe/internal/flight"
	xglog "github.com/sersery88/flight-ibe/internal/log"
	"github.com/sersery88/flight-ibe/internal/metrics"
	"github.com/sersery88/flight-ibe/internal/stream"
	"github.com/sersery88/flight-ibe/internal/telemetry"
)

// HeaderBatchID names the response header carrying a stream's batch id.
const HeaderBatchID = "X-Batch-ID"

// batch is one streamed fan-out.
type batch struct {
	kind          string
	queries       []fanout.SubQuery
	scheduler     *fanout.Scheduler
	progressEvery int
}

func (s *Server) handlePriceStream(w http.ResponseWriter, r *http.Request) {
	var req flight.PricingRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeFailure(w, r, "flight-price-stream", err)
		return
	}
	if err := req.Validate(); err != nil {
		s.writeFailure(w, r, "flight-price-stream", err)
		return
	}
	s.serveBatch(w, r, batch{
		kind:          "pricing",
		queries:       s.provider.PricingQueries(req),
		scheduler:     s.items,
		progressEvery: s.cfg.PricingProgressEvery,
	})
}

func (s *Server) handleUpsellStream(w http.ResponseWriter, r *http.Request) {
	var req flight.UpsellRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeFailure(w, r, "upsell-stream", err)
		return
	}
	if err := req.Validate(); err != nil {
		s.writeFailure(w, r, "upsell-stream", err)
		return
	}
	s.serveBatch(w, r, batch{
		kind:          "upsell",
		queries:       s.provider.UpsellQueries(req),
		scheduler:     s.items,
		progressEvery: s.cfg.PricingProgressEvery,
	})
}

func (s *Server) handleMatrixStream(w http.ResponseWriter, r *http.Request) {
	req, err := s.matrixRequest(w, r)
	if err != nil {
		s.writeFailure(w, r, "price-matrix-stream", err)
		return
	}
	s.serveBatch(w, r, batch{
		kind:          "matrix",
		queries:       s.provider.MatrixQueries(req),
		scheduler:     s.matrix,
		progressEvery: s.cfg.MatrixProgressEvery,
	})
}

// serveBatch checks credentials, then streams one event per sub-query
// followed by exactly one complete event. Errors found before the stream
// opens are plain JSON responses; afterwards they are error events.
func (s *Server) serveBatch(w http.ResponseWriter, r *http.Request, b batch) {
	if err := s.checkCredentials(r.Context()); err != nil {
		s.writeFailure(w, r, b.kind+"-stream", err)
		return
	}

	batchID := uuid.New().String()
	ctx := xglog.ContextWithBatchID(r.Context(), batchID)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	attrs := append(telemetry.BatchAttributes(b.kind, len(b.queries), b.scheduler.Limit()),
		attribute.String(telemetry.BatchIDKey, batchID))
	ctx, span := telemetry.Tracer("flight-ibe/api").Start(ctx, "batch."+b.kind, trace.WithAttributes(attrs...))
	defer span.End()

	logger := xglog.WithContext(ctx, s.logger)
	logger.Info().
		Str(xglog.FieldEvent, "batch.started").
		Str("kind", b.kind).
		Int(xglog.FieldTotal, len(b.queries)).
		Int("concurrency", b.scheduler.Limit()).
		Msg("batch started")
	start := time.Now()

	metrics.StreamOpened()
	defer metrics.StreamClosed()

	w.Header().Set(HeaderBatchID, batchID)
	sse := stream.NewSSEWriter(w)
	stopKeepAlive := sse.KeepAlive(ctx, s.cfg.KeepAlive)

	outcomes := b.scheduler.Run(ctx, b.queries)
	sum := stream.NewEmitter(sse, b.progressEvery).Emit(ctx, len(b.queries), outcomes, cancel)
	stopKeepAlive()

	span.SetAttributes(telemetry.BatchResultAttributes(sum.Successful, sum.Failed)...)
	logger.Info().
		Str(xglog.FieldEvent, "batch.finished").
		Str("kind", b.kind).
		Int(xglog.FieldTotal, sum.Total).
		Int(xglog.FieldSuccessful, sum.Successful).
		Int(xglog.FieldFailed, sum.Failed).
		Bool("disconnected", sum.Disconnected).
		Dur("duration", time.Since(start)).
		Msg("batch finished")
}
