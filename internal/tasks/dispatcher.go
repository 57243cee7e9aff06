package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"neuroskip/internal/lock"
	"neuroskip/internal/logging"
	"neuroskip/internal/services"
)

// Enqueuer is the slice of the task store the dispatcher needs.
type Enqueuer interface {
	Enqueue(ctx context.Context, kind Kind, lane Lane, payload any) (*Task, error)
}

// Dispatcher routes new work onto the priority lanes. Processing tasks
// are guarded by the per-video lock; classification tasks are not.
type Dispatcher struct {
	queue  Enqueuer
	locks  *lock.Coordinator
	logger *slog.Logger
}

// NewDispatcher builds a dispatcher over the task store and lock coordinator.
func NewDispatcher(queue Enqueuer, locks *lock.Coordinator, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Dispatcher{
		queue:  queue,
		locks:  locks,
		logger: logging.NewComponentLogger(logger, "dispatcher"),
	}
}

// DispatchProcessing acquires the video lock and enqueues an urgent
// pipeline task. A held lock surfaces as ErrLockContention, which callers
// treat as "already in progress". If the enqueue itself fails the lock is
// released before the error propagates, so dispatch failures never strand
// a video in a locked state.
func (d *Dispatcher) DispatchProcessing(ctx context.Context, externalID, provider string) (*Task, error) {
	acquired, err := d.locks.TryAcquire(ctx, externalID)
	if err != nil {
		return nil, services.Wrap(services.ErrDispatch, "dispatch", "acquire lock", externalID, err)
	}
	if !acquired {
		return nil, fmt.Errorf("%w: video %s", services.ErrLockContention, externalID)
	}

	task, err := d.queue.Enqueue(ctx, KindProcessVideo, LaneUrgent, ProcessVideoPayload{
		ExternalID: externalID,
		Provider:   provider,
	})
	if err != nil {
		if _, releaseErr := d.locks.Release(ctx, externalID); releaseErr != nil {
			d.logger.Error("failed to release lock after dispatch failure",
				logging.String(logging.FieldVideoID, externalID),
				logging.Error(releaseErr))
		}
		return nil, services.Wrap(services.ErrDispatch, "dispatch", "enqueue processing", externalID, err)
	}

	d.logger.Info("processing task dispatched",
		logging.String(logging.FieldVideoID, externalID),
		logging.String(logging.FieldProvider, provider),
		logging.String(logging.FieldTaskID, task.ID),
		logging.String(logging.FieldLane, string(LaneUrgent)))
	return task, nil
}

// DispatchClassification enqueues a default-lane classification task for
// freshly persisted segment ids. Empty batches are a no-op.
func (d *Dispatcher) DispatchClassification(ctx context.Context, segmentIDs []int64) (*Task, error) {
	if len(segmentIDs) == 0 {
		return nil, nil
	}

	task, err := d.queue.Enqueue(ctx, KindClassifySegments, LaneDefault, ClassifySegmentsPayload{
		SegmentIDs: segmentIDs,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrDispatch, "dispatch", "enqueue classification", "", err)
	}

	d.logger.Info("classification task dispatched",
		logging.String(logging.FieldTaskID, task.ID),
		logging.Int("segments", len(segmentIDs)),
		logging.String(logging.FieldLane, string(LaneDefault)))
	return task, nil
}

// DecodeProcessVideo extracts the processing payload from a task row.
func DecodeProcessVideo(task *Task) (ProcessVideoPayload, error) {
	var payload ProcessVideoPayload
	if err := json.Unmarshal([]byte(task.PayloadJSON), &payload); err != nil {
		return payload, fmt.Errorf("decode process payload: %w", err)
	}
	return payload, nil
}

// DecodeClassifySegments extracts the classification payload from a task row.
func DecodeClassifySegments(task *Task) (ClassifySegmentsPayload, error) {
	var payload ClassifySegmentsPayload
	if err := json.Unmarshal([]byte(task.PayloadJSON), &payload); err != nil {
		return payload, fmt.Errorf("decode classify payload: %w", err)
	}
	return payload, nil
}
