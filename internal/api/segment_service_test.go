package api_test

import (
	"context"
	"errors"
	"testing"

	"neuroskip/internal/api"
	"neuroskip/internal/lock"
	"neuroskip/internal/services"
	"neuroskip/internal/tasks"
	"neuroskip/internal/testsupport"
	"neuroskip/internal/transcribe"
)

func newService(t *testing.T) (*api.SegmentService, *lock.Coordinator, *testEnv) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	segmentStore := testsupport.MustOpenSegmentStore(t, cfg)
	taskStore := testsupport.MustOpenTaskStore(t, cfg)
	locks := lock.NewCoordinator(lock.NewMemoryStore())
	dispatcher := tasks.NewDispatcher(taskStore, locks, nil)
	return api.NewSegmentService(segmentStore, dispatcher), locks, &testEnv{segments: segmentStore, tasks: taskStore}
}

type testEnv struct {
	segments interface {
		Persist(ctx context.Context, hashID, externalID, provider string, spans []transcribe.Span, percent int) ([]int64, error)
	}
	tasks *tasks.Store
}

func TestLookupCachedSegments(t *testing.T) {
	service, _, env := newService(t)
	ctx := context.Background()

	spans := []transcribe.Span{
		{Start: 0, End: 4, Text: "hello"},
		{Start: 4, End: 8, Text: "world"},
	}
	if _, err := env.segments.Persist(ctx, "h", "dQw4w9WgXcQ", "youtube", spans, 100); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	resp, err := service.Lookup(ctx, "dQw4w9WgXcQ", "youtube")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !resp.Data.Cached || resp.Message != api.MessageCached {
		t.Errorf("expected cached response, got %+v", resp)
	}
	if len(resp.Data.Segments) != 2 {
		t.Fatalf("segments = %d, want 2", len(resp.Data.Segments))
	}
	if resp.Data.Segments[0].Text != "hello" {
		t.Errorf("first segment text = %q", resp.Data.Segments[0].Text)
	}

	pending, err := env.tasks.List(ctx, tasks.StatusPending, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(pending) != 0 {
		t.Error("cache hit must not dispatch processing")
	}
}

func TestLookupMissDispatchesUrgentTask(t *testing.T) {
	service, locks, env := newService(t)
	ctx := context.Background()

	resp, err := service.Lookup(ctx, "dQw4w9WgXcQ", "youtube")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if resp.Data.Cached || resp.Data.Status != api.StatusProcessing {
		t.Errorf("expected processing response, got %+v", resp)
	}
	if resp.Message != api.MessageStarted {
		t.Errorf("message = %q, want %q", resp.Message, api.MessageStarted)
	}

	pending, err := env.tasks.List(ctx, tasks.StatusPending, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(pending) != 1 || pending[0].Lane != tasks.LaneUrgent {
		t.Fatalf("expected one urgent pending task, got %v", pending)
	}

	locked, err := locks.IsLocked(ctx, "dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("IsLocked: %v", err)
	}
	if !locked {
		t.Error("lookup miss must leave the video locked for the worker")
	}
}

func TestLookupInProgressDoesNotRedispatch(t *testing.T) {
	service, _, env := newService(t)
	ctx := context.Background()

	if _, err := service.Lookup(ctx, "dQw4w9WgXcQ", "youtube"); err != nil {
		t.Fatalf("first Lookup: %v", err)
	}
	resp, err := service.Lookup(ctx, "dQw4w9WgXcQ", "youtube")
	if err != nil {
		t.Fatalf("second Lookup: %v", err)
	}
	if resp.Message != api.MessageInProgress {
		t.Errorf("message = %q, want %q", resp.Message, api.MessageInProgress)
	}

	pending, err := env.tasks.List(ctx, tasks.StatusPending, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("second lookup must not enqueue again, found %d tasks", len(pending))
	}
}

func TestLookupRejectsMalformedID(t *testing.T) {
	service, _, _ := newService(t)
	_, err := service.Lookup(context.Background(), "bad id!", "youtube")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
