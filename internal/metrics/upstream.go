// SPDX-License-Identifier: MIT

// Package metrics holds the Prometheus collectors shared by the query pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	upstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flight_ibe_upstream_requests_total",
		Help: "Upstream HTTP attempts by operation and outcome",
	}, []string{"operation", "outcome"}) // outcome=ok|rate_limited|upstream_error|transport_error

	upstreamRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "flight_ibe_upstream_request_duration_seconds",
		Help:    "Latency of single upstream HTTP attempts",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	upstreamRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flight_ibe_upstream_retries_total",
		Help: "Retries scheduled after a 429 response",
	}, []string{"operation", "hint"}) // hint=retry_after|backoff

	tokenRefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flight_ibe_token_refresh_total",
		Help: "Bearer token refreshes by result",
	}, []string{"source", "result"}) // result=success|failure
)

// RecordUpstreamAttempt records one HTTP attempt against the upstream provider.
func RecordUpstreamAttempt(operation, outcome string, d time.Duration) {
	upstreamRequestsTotal.WithLabelValues(operation, outcome).Inc()
	upstreamRequestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// RecordUpstreamRetry counts a scheduled retry and where its delay came from.
func RecordUpstreamRetry(operation string, fromHint bool) {
	hint := "backoff"
	if fromHint {
		hint = "retry_after"
	}
	upstreamRetriesTotal.WithLabelValues(operation, hint).Inc()
}

// RecordTokenRefresh counts token refresh attempts.
func RecordTokenRefresh(source string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	tokenRefreshTotal.WithLabelValues(source, result).Inc()
}
