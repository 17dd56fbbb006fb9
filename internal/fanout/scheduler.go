// SPDX-License-Identifier: MIT

package fanout

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Scheduler runs many sub-queries with at most Limit in flight.
type Scheduler struct {
	exec  *Executor
	limit int
}

// NewScheduler bounds concurrency to limit (minimum 1).
func NewScheduler(exec *Executor, limit int) *Scheduler {
	if limit < 1 {
		limit = 1
	}
	return &Scheduler{exec: exec, limit: limit}
}

// Limit returns the concurrency bound.
func (s *Scheduler) Limit() int { return s.limit }

// Run starts queries and returns a channel that yields exactly one Outcome
// per query in completion order, then closes. One failure never cancels its
// siblings. Cancelling ctx stops new sub-queries from starting; those report
// a cancelled outcome instead.
func (s *Scheduler) Run(ctx context.Context, queries []SubQuery) <-chan Outcome {
	// Buffered to len(queries) so workers never block on a slow consumer.
	out := make(chan Outcome, len(queries))

	go func() {
		defer close(out)

		var g errgroup.Group
		g.SetLimit(s.limit)
		for _, q := range queries {
			if err := ctx.Err(); err != nil {
				out <- s.exec.Run(ctx, q)
				continue
			}
			g.Go(func() error {
				out <- s.exec.Run(ctx, q)
				return nil
			})
		}
		_ = g.Wait()
	}()

	return out
}

// RunAll runs queries and returns their outcomes in submission order. IDs
// must be unique within queries.
func (s *Scheduler) RunAll(ctx context.Context, queries []SubQuery) []Outcome {
	index := make(map[string]int, len(queries))
	for i, q := range queries {
		index[q.ID] = i
	}
	results := make([]Outcome, len(queries))
	for o := range s.Run(ctx, queries) {
		results[index[o.ID]] = o
	}
	return results
}
