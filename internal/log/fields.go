// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldBatchID   = "batch_id"
	FieldItemID    = "item_id"
	FieldTraceID   = "trace_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Upstream fields
	FieldOperation     = "operation"
	FieldEndpointClass = "endpoint_class"
	FieldStatus        = "status"
	FieldAttempt       = "attempt"
	FieldSource        = "source"

	// Cache fields
	FieldCacheKey = "cache_key"

	// Batch fields
	FieldTotal      = "total"
	FieldSuccessful = "successful"
	FieldFailed     = "failed"
)
