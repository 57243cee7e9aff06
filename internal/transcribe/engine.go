// Package transcribe converts media parts into timestamped text segments,
// reconstructing absolute offsets across independently transcribed chunks.
package transcribe

import "context"

// Span is one timestamped stretch of transcribed text. Start and End are
// absolute seconds in the original stream once the part offset is applied.
type Span struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Engine is the opaque speech-to-text capability. An empty language requests
// autodetection; the detected language code is always returned.
type Engine interface {
	Transcribe(ctx context.Context, path, language string) ([]Span, string, error)
}
