// SPDX-License-Identifier: MIT

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flight_ibe_cache_operations_total",
		Help: "Cache-aside operations by kind and result",
	}, []string{"op", "result"}) // op=get|set result=hit|miss|ok|error|disabled

	subQueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flight_ibe_subqueries_total",
		Help: "Fan-out sub-queries by terminal outcome",
	}, []string{"outcome"}) // outcome=success|<error kind>

	activeStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flight_ibe_active_streams",
		Help: "Event streams currently connected",
	})

	streamEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flight_ibe_stream_events_total",
		Help: "Stream events written by type",
	}, []string{"type"})

	streamDisconnectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flight_ibe_stream_disconnects_total",
		Help: "Streams abandoned by the client before completion",
	})

	providerResultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flight_ibe_provider_results_total",
		Help: "Search provider outcomes by source",
	}, []string{"source", "outcome"}) // outcome=success|failure
)

// RecordCacheGet records a cache lookup result (hit, miss, error, disabled).
func RecordCacheGet(result string) { cacheOpsTotal.WithLabelValues("get", result).Inc() }

// RecordCacheSet records a cache write result (ok, error, disabled).
func RecordCacheSet(result string) { cacheOpsTotal.WithLabelValues("set", result).Inc() }

// RecordSubQuery records the terminal outcome of one fan-out sub-query.
func RecordSubQuery(outcome string) { subQueriesTotal.WithLabelValues(outcome).Inc() }

func StreamOpened() { activeStreams.Inc() }
func StreamClosed() { activeStreams.Dec() }

func RecordStreamEvent(eventType string) { streamEventsTotal.WithLabelValues(eventType).Inc() }
func IncStreamDisconnect()               { streamDisconnectsTotal.Inc() }

// RecordProviderResult records whether a search source answered.
func RecordProviderResult(source string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	providerResultsTotal.WithLabelValues(source, outcome).Inc()
}
