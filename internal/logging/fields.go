package logging

// Standardized structured logging keys.
const (
	FieldComponent     = "component"
	FieldEventType     = "event_type"
	FieldErrorHint     = "error_hint"
	FieldErrorKind     = "error_kind"
	FieldImpact        = "impact"
	FieldAlert         = "alert"
	FieldCorrelationID = "correlation_id"
	// FieldRunID tags every line written by one daemon process.
	FieldRunID = "run_id"
	// FieldSessionID identifies a live emotion session.
	FieldSessionID = "session_id"
	FieldUserID    = "user_id"
	FieldChannel   = "channel"
	FieldLabel     = "label"
	FieldSource    = "source"
	// FieldProgressPercent is attached to sampled video analysis progress.
	FieldProgressPercent = "progress_percent"
)
