package transcribe

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"neuroskip/internal/logging"
	"neuroskip/internal/media"
	"neuroskip/internal/services"
)

// MediaProber is the slice of the segmentation engine the stage needs.
type MediaProber interface {
	Verify(ctx context.Context, path string) bool
	LongestPart(ctx context.Context, parts []media.Part) (media.Part, bool)
}

// PartRemover deletes consumed media parts to bound workspace size.
type PartRemover interface {
	RemoveFile(path string)
}

// YieldFunc receives each part's result as it is produced. Returning an error
// stops the batch and propagates to the caller.
type YieldFunc func(index int, spans []Span, detectedLanguage string) error

// Stage transcribes an ordered sequence of media parts one at a time.
type Stage struct {
	engine  Engine
	prober  MediaProber
	cleaner PartRemover
	logger  *slog.Logger
}

// NewStage constructs a transcription stage.
func NewStage(engine Engine, prober MediaProber, cleaner PartRemover, logger *slog.Logger) *Stage {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Stage{
		engine:  engine,
		prober:  prober,
		cleaner: cleaner,
		logger:  logging.NewComponentLogger(logger, "transcribe"),
	}
}

// DetectLanguage identifies the spoken language of path. A detection failure
// is fatal for the whole run.
func (s *Stage) DetectLanguage(ctx context.Context, path string) (string, error) {
	_, language, err := s.engine.Transcribe(ctx, path, "")
	if err != nil {
		return "", services.Wrap(services.ErrTranscription, "transcribe", "detect language", path, err)
	}
	if language == "" {
		return "", services.Wrap(services.ErrTranscription, "transcribe", "detect language", "engine returned no language", nil)
	}
	return language, nil
}

// TranscribePart transcribes a single part with offsetSeconds added to every
// local timestamp. A missing, empty, unverifiable, or failing part degrades
// to an empty result rather than an error. The part file is deleted after
// the attempt regardless of outcome.
func (s *Stage) TranscribePart(ctx context.Context, part media.Part, offsetSeconds float64, language string) ([]Span, string) {
	defer s.cleaner.RemoveFile(part.Path)

	info, err := os.Stat(part.Path)
	if err != nil || info.Size() == 0 || !s.prober.Verify(ctx, part.Path) {
		s.logger.Warn("skipping invalid media part",
			logging.String("path", part.Path),
			logging.Int("index", part.Index),
		)
		return nil, ""
	}

	spans, detected, err := s.engine.Transcribe(ctx, part.Path, language)
	if err != nil {
		s.logger.Warn("part transcription failed, continuing with remaining parts",
			logging.String("path", part.Path),
			logging.Int("index", part.Index),
			logging.Error(err),
		)
		return nil, ""
	}

	result := make([]Span, len(spans))
	for i, span := range spans {
		result[i] = Span{
			Start: span.Start + offsetSeconds,
			End:   span.End + offsetSeconds,
			Text:  span.Text,
		}
	}
	return result, detected
}

// Run transcribes parts in order, yielding each part's absolute-time spans.
// Part i's time base is anchored where segmentation cut it: offset is
// boundaries[i-1], or 0 for the first part. When language is empty it is
// detected once, from the longest part, before any transcription; that
// detection failing aborts the run.
func (s *Stage) Run(ctx context.Context, parts []media.Part, boundaries []float64, language string, yield YieldFunc) error {
	// Part i past the first is anchored at boundaries[i-1]; a part without
	// an anchor would silently inherit offset zero and corrupt timestamps.
	if len(parts) > len(boundaries)+1 {
		return services.Wrap(services.ErrValidation, "transcribe", "align parts",
			fmt.Sprintf("%d parts but only %d boundaries", len(parts), len(boundaries)), nil)
	}

	if language == "" {
		if longest, ok := s.prober.LongestPart(ctx, parts); ok {
			detected, err := s.DetectLanguage(ctx, longest.Path)
			if err != nil {
				return err
			}
			language = detected
			s.logger.Info("language detected",
				logging.String("language", language),
				logging.String("path", longest.Path),
			)
		}
	}

	for i, part := range parts {
		offset := 0.0
		if i > 0 && i-1 < len(boundaries) {
			offset = boundaries[i-1]
		}

		spans, detected := s.TranscribePart(ctx, part, offset, language)
		if language == "" && detected != "" {
			language = detected
		}
		if err := yield(i, spans, detected); err != nil {
			return err
		}
	}
	return nil
}
