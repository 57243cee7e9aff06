// Package vad defines the voice-activity capability consumed by the
// segmentation engine and wraps an external Silero-based detector binary.
package vad

import "context"

// SpeechSpan is one detected stretch of speech in seconds.
type SpeechSpan struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Detector is the opaque voice-activity capability. Silence boundaries are
// ascending "end of a silence gap" timestamps used as segmentation cut
// points.
type Detector interface {
	DetectSilenceBoundaries(ctx context.Context, path string) ([]float64, error)
	DetectSpeechSegments(ctx context.Context, path string) ([]SpeechSpan, error)
}

// SilenceBoundariesFromSpeech inverts speech spans into silence-gap end
// timestamps: each speech start that follows a gap marks where a silence
// ended. An empty result falls back to the full duration so downstream
// segmentation treats the file as one part.
func SilenceBoundariesFromSpeech(spans []SpeechSpan, duration float64) []float64 {
	var boundaries []float64
	lastEnd := 0.0
	for _, span := range spans {
		if span.Start > lastEnd {
			boundaries = append(boundaries, span.Start)
		}
		if span.End > lastEnd {
			lastEnd = span.End
		}
	}
	if len(boundaries) == 0 {
		boundaries = append(boundaries, duration)
	}
	return boundaries
}
