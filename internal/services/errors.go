package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrLockContention marks "already being processed" outcomes. Callers
	// must treat it as a valid in-progress state, not a failure.
	ErrLockContention = errors.New("lock contention")
	// ErrValidation marks corrupt media or malformed identifiers. Fatal to
	// the run, never retried.
	ErrValidation = errors.New("validation error")
	// ErrSegmentation marks a split that produced zero parts.
	ErrSegmentation = errors.New("segmentation error")
	// ErrTranscription marks a fatal transcription failure (language
	// detection). Per-part decode failures degrade instead of carrying this.
	ErrTranscription = errors.New("transcription error")
	// ErrPersistence marks segment store failures, surfaced only after
	// best-effort classification dispatch of whatever was created.
	ErrPersistence = errors.New("persistence error")
	// ErrDispatch marks queue enqueue failures. The dispatcher releases the
	// work-item lock before propagating it.
	ErrDispatch = errors.New("dispatch error")
	// ErrExternalTool marks failures of shelled-out binaries.
	ErrExternalTool = errors.New("external tool error")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrExternalTool
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsFatal reports whether an error aborts a whole pipeline run rather than a
// single media part.
func IsFatal(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrSegmentation) ||
		errors.Is(err, ErrTranscription) ||
		errors.Is(err, ErrPersistence)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
