package logging

// Standardized structured log field names shared across packages.
const (
	FieldComponent = "component"
	FieldEventType = "event_type"
	FieldVideoID   = "video_id"
	FieldProvider  = "provider"
	FieldLane      = "lane"
	FieldStage     = "stage"
	FieldTaskID    = "task_id"
	FieldRequestID = "request_id"
	FieldErrorHint = "error_hint"
	FieldImpact    = "impact"
)
