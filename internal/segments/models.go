package segments

import (
	"strconv"
	"time"
)

// Segment types. A segment is unclassified until the classification
// dispatcher marks it; this subsystem only ever writes TypeAd.
const (
	TypeAd      = "ad"
	TypeContent = "content"
)

// Segment is one durable transcript segment. Identity is the
// (ExternalID, Provider, Start, End) tuple; no two stored rows share it.
type Segment struct {
	ID                int64
	HashID            string
	ExternalID        string
	Provider          string
	Start             string
	End               string
	Text              string
	Type              string // empty = unclassified
	CompletionPercent int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsAd reports whether the segment was classified as advertisement.
func (s Segment) IsAd() bool {
	return s.Type == TypeAd
}

// FormatSeconds renders a timestamp as the fixed-precision decimal string
// used for the dedup key: full decimal form capped at six characters, so
// repeated processing of the same stream produces byte-identical keys.
func FormatSeconds(value float64) string {
	formatted := strconv.FormatFloat(value, 'f', -1, 64)
	if len(formatted) > 6 {
		formatted = formatted[:6]
	}
	return formatted
}
