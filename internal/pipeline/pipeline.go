// Package pipeline coordinates the full audio processing run for one
// video: fetch, verify, voice-activity split, transcribe, persist, and
// classification dispatch.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"

	"neuroskip/internal/logging"
	"neuroskip/internal/media"
	"neuroskip/internal/services"
	"neuroskip/internal/tasks"
	"neuroskip/internal/transcribe"
	"neuroskip/internal/vad"
	"neuroskip/internal/workspace"
)

// AudioFetcher resolves a video identifier to a local audio file.
type AudioFetcher interface {
	FetchAudio(ctx context.Context, externalID string) (string, error)
}

// Splitter is the slice of the media engine the orchestrator needs.
type Splitter interface {
	Verify(ctx context.Context, path string) bool
	Split(ctx context.Context, path string, boundaries []float64, outputDir, id string) ([]media.Part, []float64, error)
}

// Transcriber runs the per-part transcription loop.
type Transcriber interface {
	Run(ctx context.Context, parts []media.Part, boundaries []float64, language string, yield transcribe.YieldFunc) error
}

// SegmentPersister stores a batch of transcript spans.
type SegmentPersister interface {
	Persist(ctx context.Context, hashID, externalID, provider string, spans []transcribe.Span, percent int) ([]int64, error)
}

// ClassificationDispatcher enqueues classification work for new segments.
type ClassificationDispatcher interface {
	DispatchClassification(ctx context.Context, segmentIDs []int64) (*tasks.Task, error)
}

// Result summarizes a completed pipeline run.
type Result struct {
	Parts     int
	Persisted int
	Language  string
}

// Orchestrator drives the multi-stage processing workflow. The workspace
// for a run is removed on every exit path, success or failure.
type Orchestrator struct {
	fetcher    AudioFetcher
	media      Splitter
	detector   vad.Detector
	stage      Transcriber
	store      SegmentPersister
	dispatcher ClassificationDispatcher
	workspaces *workspace.Manager
	logger     *slog.Logger
}

// New builds an orchestrator over the given collaborators.
func New(
	fetcher AudioFetcher,
	mediaEngine Splitter,
	detector vad.Detector,
	stage Transcriber,
	store SegmentPersister,
	dispatcher ClassificationDispatcher,
	workspaces *workspace.Manager,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Orchestrator{
		fetcher:    fetcher,
		media:      mediaEngine,
		detector:   detector,
		stage:      stage,
		store:      store,
		dispatcher: dispatcher,
		workspaces: workspaces,
		logger:     logging.NewComponentLogger(logger, "pipeline"),
	}
}

// Run processes one video end to end. Language may be empty to trigger
// auto-detection from the longest part. The caller is responsible for
// holding and releasing the per-video lock.
func (o *Orchestrator) Run(ctx context.Context, externalID, provider, language string) (result Result, err error) {
	logger := o.logger.With(
		logging.String(logging.FieldVideoID, externalID),
		logging.String(logging.FieldProvider, provider))
	logger.Info("pipeline started")

	defer func() {
		if cleanupErr := o.workspaces.Cleanup(externalID); cleanupErr != nil {
			logger.Warn("workspace cleanup failed", logging.Error(cleanupErr))
		}
		if err != nil {
			logger.Error("pipeline failed", logging.Error(err))
		} else {
			logger.Info("pipeline completed",
				logging.Int("parts", result.Parts),
				logging.Int("persisted", result.Persisted))
		}
	}()

	audioPath, err := o.fetcher.FetchAudio(ctx, externalID)
	if err != nil {
		return result, err
	}

	hashID, err := hashFile(audioPath)
	if err != nil {
		return result, services.Wrap(services.ErrValidation, "pipeline", "hash audio", audioPath, err)
	}

	if !o.media.Verify(ctx, audioPath) {
		return result, services.Wrap(services.ErrValidation, "pipeline", "verify audio", audioPath, nil)
	}

	boundaries, err := o.detector.DetectSilenceBoundaries(ctx, audioPath)
	if err != nil {
		// Segmentation falls back to duration-based single-part splitting.
		logger.Warn("silence detection failed, splitting as one part", logging.Error(err))
		boundaries = nil
	}

	workDir, err := o.workspaces.Create(externalID)
	if err != nil {
		return result, services.Wrap(services.ErrSegmentation, "pipeline", "create workspace", externalID, err)
	}

	parts, boundaries, err := o.media.Split(ctx, audioPath, boundaries, workDir, externalID)
	if err != nil {
		return result, err
	}
	result.Parts = len(parts)
	logger.Info("audio split", logging.Int("parts", len(parts)))

	total := len(parts)
	runErr := o.stage.Run(ctx, parts, boundaries, language, func(index int, spans []transcribe.Span, detectedLanguage string) error {
		if detectedLanguage != "" {
			result.Language = detectedLanguage
		}
		if len(spans) == 0 {
			return nil
		}
		percent := (index + 1) * 100 / total
		created, persistErr := o.store.Persist(ctx, hashID, externalID, provider, spans, percent)
		result.Persisted += len(created)
		// Whatever was created before a mid-batch failure still gets
		// classified; the persistence error propagates afterwards.
		if len(created) > 0 {
			if _, dispatchErr := o.dispatcher.DispatchClassification(ctx, created); dispatchErr != nil {
				logger.Warn("classification dispatch failed", logging.Error(dispatchErr))
			}
		}
		return persistErr
	})
	if runErr != nil {
		return result, runErr
	}
	return result, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	digest := sha256.New()
	if _, err := io.Copy(digest, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(digest.Sum(nil)), nil
}
