package tasks

import (
	"strings"
	"time"
)

// Lane routes tasks to the worker pool that services them. Urgent tasks
// back live user requests; default tasks are best-effort background work.
type Lane string

const (
	LaneUrgent  Lane = "urgent"
	LaneDefault Lane = "default"
)

// Kind identifies the handler a task is destined for.
type Kind string

const (
	KindProcessVideo     Kind = "process_video"
	KindClassifySegments Kind = "classify_segments"
)

// Status represents the lifecycle of a queued task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusRunning,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// Task is a unit of queued work persisted in SQLite.
type Task struct {
	ID           string
	Kind         Kind
	Lane         Lane
	Status       Status
	PayloadJSON  string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ProcessVideoPayload is carried by urgent pipeline tasks.
type ProcessVideoPayload struct {
	ExternalID string `json:"externalId"`
	Provider   string `json:"provider"`
}

// ClassifySegmentsPayload is carried by default-lane classification tasks.
type ClassifySegmentsPayload struct {
	SegmentIDs []int64 `json:"segmentIds"`
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// ParseLane converts a string into a known Lane.
func ParseLane(value string) (Lane, bool) {
	switch Lane(strings.ToLower(strings.TrimSpace(value))) {
	case LaneUrgent:
		return LaneUrgent, true
	case LaneDefault:
		return LaneDefault, true
	default:
		return "", false
	}
}

// IsTerminal reports whether the task has finished, successfully or not.
func (t Task) IsTerminal() bool {
	return t.Status == StatusCompleted || t.Status == StatusFailed
}

// HealthSummary describes aggregated task counts per lifecycle state.
type HealthSummary struct {
	Total     int
	Pending   int
	Running   int
	Completed int
	Failed    int
}
