package tasks_test

import (
	"context"
	"errors"
	"testing"

	"neuroskip/internal/lock"
	"neuroskip/internal/services"
	"neuroskip/internal/tasks"
	"neuroskip/internal/testsupport"
)

type failingEnqueuer struct{}

func (failingEnqueuer) Enqueue(context.Context, tasks.Kind, tasks.Lane, any) (*tasks.Task, error) {
	return nil, errors.New("queue unavailable")
}

func TestDispatchProcessingAcquiresLockAndEnqueues(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenTaskStore(t, cfg)
	locks := lock.NewCoordinator(lock.NewMemoryStore())
	dispatcher := tasks.NewDispatcher(store, locks, nil)
	ctx := context.Background()

	task, err := dispatcher.DispatchProcessing(ctx, "abc12345678", "youtube")
	if err != nil {
		t.Fatalf("DispatchProcessing: %v", err)
	}
	if task.Kind != tasks.KindProcessVideo || task.Lane != tasks.LaneUrgent {
		t.Errorf("unexpected task: %+v", task)
	}

	locked, err := locks.IsLocked(ctx, "abc12345678")
	if err != nil {
		t.Fatalf("IsLocked: %v", err)
	}
	if !locked {
		t.Error("lock must remain held after dispatch")
	}
}

func TestDispatchProcessingContention(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenTaskStore(t, cfg)
	locks := lock.NewCoordinator(lock.NewMemoryStore())
	dispatcher := tasks.NewDispatcher(store, locks, nil)
	ctx := context.Background()

	if _, err := dispatcher.DispatchProcessing(ctx, "abc12345678", "youtube"); err != nil {
		t.Fatalf("first dispatch: %v", err)
	}
	_, err := dispatcher.DispatchProcessing(ctx, "abc12345678", "youtube")
	if !errors.Is(err, services.ErrLockContention) {
		t.Fatalf("expected lock contention, got %v", err)
	}

	pending, err := store.List(ctx, tasks.StatusPending, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("contended dispatch must not enqueue, found %d tasks", len(pending))
	}
}

func TestDispatchProcessingReleasesLockOnEnqueueFailure(t *testing.T) {
	locks := lock.NewCoordinator(lock.NewMemoryStore())
	dispatcher := tasks.NewDispatcher(failingEnqueuer{}, locks, nil)
	ctx := context.Background()

	_, err := dispatcher.DispatchProcessing(ctx, "abc12345678", "youtube")
	if !errors.Is(err, services.ErrDispatch) {
		t.Fatalf("expected dispatch error, got %v", err)
	}

	locked, lockErr := locks.IsLocked(ctx, "abc12345678")
	if lockErr != nil {
		t.Fatalf("IsLocked: %v", lockErr)
	}
	if locked {
		t.Error("lock must be released when enqueue fails")
	}
}

func TestDispatchClassification(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenTaskStore(t, cfg)
	dispatcher := tasks.NewDispatcher(store, lock.NewCoordinator(lock.NewMemoryStore()), nil)
	ctx := context.Background()

	task, err := dispatcher.DispatchClassification(ctx, []int64{4, 5, 6})
	if err != nil {
		t.Fatalf("DispatchClassification: %v", err)
	}
	if task.Lane != tasks.LaneDefault {
		t.Errorf("lane = %q, want default", task.Lane)
	}
	payload, err := tasks.DecodeClassifySegments(task)
	if err != nil {
		t.Fatalf("DecodeClassifySegments: %v", err)
	}
	if len(payload.SegmentIDs) != 3 || payload.SegmentIDs[0] != 4 {
		t.Errorf("unexpected payload: %+v", payload)
	}

	empty, err := dispatcher.DispatchClassification(ctx, nil)
	if err != nil {
		t.Fatalf("empty DispatchClassification: %v", err)
	}
	if empty != nil {
		t.Error("empty batch must not enqueue a task")
	}
}
