// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by the pipeline's spans.
const (
	// Search attributes
	SearchOriginKey      = "flight.origin"
	SearchDestinationKey = "flight.destination"
	SearchDepartureKey   = "flight.departure_date"
	SearchReturnKey      = "flight.return_date"
	SearchPassengersKey  = "flight.passengers"

	// Batch attributes
	BatchIDKey          = "batch.id"
	BatchKindKey        = "batch.kind"
	BatchSizeKey        = "batch.size"
	BatchConcurrencyKey = "batch.concurrency"
	BatchSuccessfulKey  = "batch.successful"
	BatchFailedKey      = "batch.failed"

	// Sub-query attributes
	ItemIDKey   = "fanout.item_id"
	CacheHitKey = "fanout.cache_hit"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// SearchAttributes describes a search. An empty return date is omitted.
func SearchAttributes(origin, destination, departure, ret string, passengers int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(SearchOriginKey, origin),
		attribute.String(SearchDestinationKey, destination),
		attribute.String(SearchDepartureKey, departure),
		attribute.Int(SearchPassengersKey, passengers),
	}
	if ret != "" {
		attrs = append(attrs, attribute.String(SearchReturnKey, ret))
	}
	return attrs
}

// BatchAttributes describes a fan-out batch at submission.
func BatchAttributes(kind string, size, concurrency int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(BatchKindKey, kind),
		attribute.Int(BatchSizeKey, size),
		attribute.Int(BatchConcurrencyKey, concurrency),
	}
}

// BatchResultAttributes describes a finished batch.
func BatchResultAttributes(successful, failed int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(BatchSuccessfulKey, successful),
		attribute.Int(BatchFailedKey, failed),
	}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
