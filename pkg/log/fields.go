package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Actor
	FieldSessionID = "session_id"
	FieldUserID    = "user_id"
	FieldUsername  = "username"

	// Client
	FieldComponent    = "component"
	FieldSessionState = "session_state"
	FieldEvent        = "event"

	// Log type (for audit log)
	FieldLogType = "log_type"
	LogTypeAudit = "audit"
)
