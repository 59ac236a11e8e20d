package logger

// Fields is a set of structured log fields.
type Fields map[string]interface{}

// Tracing fields, carried in context down the call chain.
const (
	FieldRequestID  = "request_id"
	FieldJobID      = "job_id"
	FieldRunID      = "run_id"
	FieldBatchID    = "batch_id"
	FieldEntityType = "entity_type"
	FieldComponent  = "component"
	FieldSessionID  = "session_id"
)

// Metric fields, attached per line through Entry.
const (
	FieldDurationMs = "duration_ms"
	FieldCount      = "count"
	FieldSize       = "size"
	FieldStatus     = "status"
)
