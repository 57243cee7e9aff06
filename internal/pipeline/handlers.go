package pipeline

import (
	"context"
	"log/slog"

	"neuroskip/internal/classify"
	"neuroskip/internal/lock"
	"neuroskip/internal/logging"
	"neuroskip/internal/tasks"
)

// ProcessVideoHandler adapts the orchestrator into a task handler. The
// dispatcher acquired the per-video lock before enqueueing, so the
// handler owns releasing it on every exit path.
func ProcessVideoHandler(orch *Orchestrator, locks *lock.Coordinator, logger *slog.Logger) tasks.Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return func(ctx context.Context, task *tasks.Task) error {
		payload, err := tasks.DecodeProcessVideo(task)
		if err != nil {
			return err
		}

		defer func() {
			// Release must run even when ctx is already canceled.
			if _, releaseErr := locks.Release(context.Background(), payload.ExternalID); releaseErr != nil {
				logger.Error("failed to release video lock",
					logging.String(logging.FieldVideoID, payload.ExternalID),
					logging.Error(releaseErr))
			}
		}()

		_, err = orch.Run(ctx, payload.ExternalID, payload.Provider, "")
		return err
	}
}

// ClassifySegmentsHandler adapts the classification dispatcher into a
// task handler for the default lane.
func ClassifySegmentsHandler(dispatcher *classify.Dispatcher) tasks.Handler {
	return func(ctx context.Context, task *tasks.Task) error {
		payload, err := tasks.DecodeClassifySegments(task)
		if err != nil {
			return err
		}
		_, err = dispatcher.Run(ctx, payload.SegmentIDs)
		return err
	}
}
