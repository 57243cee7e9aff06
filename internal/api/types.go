package api

// SegmentView is the wire shape of one transcript segment. Start and end
// are the fixed-precision second strings the store persists.
type SegmentView struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Text  string `json:"text"`
	Type  string `json:"type"`
}

// SegmentsData is the payload of a segments lookup.
type SegmentsData struct {
	Segments   []SegmentView `json:"segments,omitempty"`
	ExternalID string        `json:"external_id"`
	Provider   string        `json:"provider"`
	Status     string        `json:"status,omitempty"`
	Cached     bool          `json:"cached"`
}

// SegmentsResponse wraps a segments lookup result.
type SegmentsResponse struct {
	Message string       `json:"message"`
	Data    SegmentsData `json:"data"`
}

// HealthResponse reports liveness.
type HealthResponse struct {
	Status string `json:"status"`
}

// TaskHealth mirrors the task store counters for the status endpoint.
type TaskHealth struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// SegmentStats reports stored segment counts per classification.
type SegmentStats struct {
	Ads          int `json:"ads"`
	Content      int `json:"content"`
	Unclassified int `json:"unclassified"`
}

// DaemonStatus is the status endpoint payload.
type DaemonStatus struct {
	Running      bool         `json:"running"`
	PID          int          `json:"pid"`
	TaskDBPath   string       `json:"task_db_path"`
	LockFilePath string       `json:"lock_file_path"`
	Tasks        TaskHealth   `json:"tasks"`
	Segments     SegmentStats `json:"segments"`
}

// Lookup status messages returned by the segment service.
const (
	MessageCached     = "Segments retrieved successfully"
	MessageStarted    = "Video processing started"
	MessageInProgress = "Video processing in progress"
	StatusProcessing  = "processing"
)
