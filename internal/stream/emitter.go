// SPDX-License-Identifier: MIT

package stream

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/sersery88/flight-ibe/internal/fanout"
	xglog "github.com/sersery88/flight-ibe/internal/log"
	"github.com/sersery88/flight-ibe/internal/metrics"
	"github.com/sersery88/flight-ibe/internal/upstream"
)

// Sink receives events in order. Send fails once the consumer is gone.
type Sink interface {
	Send(ev Event) error
}

// Summary is the final tally of a stream.
type Summary struct {
	Total        int
	Successful   int
	Failed       int
	Disconnected bool
}

// Emitter turns outcomes into events: one terminal event per outcome, a
// progress event every N outcomes and after the last one, then exactly one
// complete event.
type Emitter struct {
	sink          Sink
	progressEvery int
	logger        zerolog.Logger
}

// NewEmitter builds an emitter writing to sink. progressEvery < 1 means
// every item.
func NewEmitter(sink Sink, progressEvery int) *Emitter {
	if progressEvery < 1 {
		progressEvery = 1
	}
	return &Emitter{
		sink:          sink,
		progressEvery: progressEvery,
		logger:        xglog.WithComponent("stream"),
	}
}

// Emit consumes outcomes until the channel closes. total is the number of
// submitted sub-queries. If the consumer disconnects, cancel is called so the
// scheduler stops starting new work, and the remaining outcomes are drained
// without being written.
func (e *Emitter) Emit(ctx context.Context, total int, outcomes <-chan fanout.Outcome, cancel context.CancelFunc) Summary {
	logger := xglog.WithContext(ctx, e.logger)
	sum := Summary{Total: total}
	current := 0

	for o := range outcomes {
		current++
		if sum.Disconnected {
			sum.tally(o.OK())
			continue
		}

		ok, err := e.writeTerminal(ctx, logger, o)
		sum.tally(ok)
		if err == nil && (current%e.progressEvery == 0 || current == total) {
			err = e.write(ctx, progressEvent(current, total))
		}

		if err != nil {
			sum.Disconnected = true
			metrics.IncStreamDisconnect()
			logger.Info().
				Str(xglog.FieldEvent, "stream.disconnected").
				Int("delivered", current-1).
				Int(xglog.FieldTotal, total).
				Msg("client went away, cancelling remaining work")
			if cancel != nil {
				cancel()
			}
		}
	}

	if !sum.Disconnected {
		if err := e.write(ctx, completeEvent(sum)); err != nil {
			sum.Disconnected = true
			metrics.IncStreamDisconnect()
		}
	}

	logger.Info().
		Str(xglog.FieldEvent, "stream.finished").
		Int(xglog.FieldTotal, sum.Total).
		Int(xglog.FieldSuccessful, sum.Successful).
		Int(xglog.FieldFailed, sum.Failed).
		Bool("disconnected", sum.Disconnected).
		Msg("stream finished")
	return sum
}

func (e *Emitter) write(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.sink.Send(ev); err != nil {
		return err
	}
	metrics.RecordStreamEvent(ev.Type)
	return nil
}

// writeTerminal sends the outcome's success or error event. A result that
// cannot be encoded is reported as that item's failure. It returns whether
// the item counts as successful.
func (e *Emitter) writeTerminal(ctx context.Context, logger zerolog.Logger, o fanout.Outcome) (bool, error) {
	err := e.write(ctx, terminalEvent(o))
	var encErr *EncodeError
	if !errors.As(err, &encErr) {
		return o.OK(), err
	}
	logger.Warn().Err(err).
		Str(xglog.FieldEvent, "stream.encode_failed").
		Str(xglog.FieldItemID, o.ID).
		Msg("item result could not be encoded")
	return false, e.write(ctx, failureEvent(o.ID, "result could not be encoded", upstream.KindInternal))
}

func (s *Summary) tally(ok bool) {
	if ok {
		s.Successful++
	} else {
		s.Failed++
	}
}

func terminalEvent(o fanout.Outcome) Event {
	if o.OK() {
		return successEvent(o.ID, o.Payload)
	}
	return failureEvent(o.ID, o.Err.Error(), o.Kind)
}
