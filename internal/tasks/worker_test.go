package tasks_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"neuroskip/internal/tasks"
	"neuroskip/internal/testsupport"
)

func waitForTerminal(t *testing.T, store *tasks.Store, id string) *tasks.Task {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		task, err := store.GetByID(context.Background(), id)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if task != nil && task.IsTerminal() {
			return task
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("task %s never reached a terminal state", id)
	return nil
}

func TestPoolRunsHandlerAndCompletes(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.QueuePollInterval = 1
	store := testsupport.MustOpenTaskStore(t, cfg)

	var mu sync.Mutex
	var seen []string
	pool := tasks.NewPool(store, cfg, nil)
	pool.Register(tasks.KindProcessVideo, func(_ context.Context, task *tasks.Task) error {
		payload, err := tasks.DecodeProcessVideo(task)
		if err != nil {
			return err
		}
		mu.Lock()
		seen = append(seen, payload.ExternalID)
		mu.Unlock()
		return nil
	})

	task, err := store.Enqueue(context.Background(), tasks.KindProcessVideo, tasks.LaneUrgent, tasks.ProcessVideoPayload{ExternalID: "abc12345678"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(pool.Stop)

	done := waitForTerminal(t, store, task.ID)
	if done.Status != tasks.StatusCompleted {
		t.Fatalf("status = %q, want completed (%s)", done.Status, done.ErrorMessage)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 1 || seen[0] != "abc12345678" {
		t.Errorf("handler saw %v", seen)
	}
}

func TestPoolMarksFailedOnHandlerError(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.QueuePollInterval = 1
	store := testsupport.MustOpenTaskStore(t, cfg)

	pool := tasks.NewPool(store, cfg, nil)
	pool.Register(tasks.KindClassifySegments, func(context.Context, *tasks.Task) error {
		return errors.New("classifier offline")
	})

	task, err := store.Enqueue(context.Background(), tasks.KindClassifySegments, tasks.LaneDefault, tasks.ClassifySegmentsPayload{SegmentIDs: []int64{1}})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(pool.Stop)

	done := waitForTerminal(t, store, task.ID)
	if done.Status != tasks.StatusFailed {
		t.Fatalf("status = %q, want failed", done.Status)
	}
	if done.ErrorMessage != "classifier offline" {
		t.Errorf("error message = %q", done.ErrorMessage)
	}
}

func TestPoolStartRequiresHandlers(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenTaskStore(t, cfg)
	pool := tasks.NewPool(store, cfg, nil)
	if err := pool.Start(context.Background()); err == nil {
		pool.Stop()
		t.Fatal("expected error when no handlers registered")
	}
}
