package testsupport

import (
	"testing"

	"neuroskip/internal/config"
	"neuroskip/internal/segments"
	"neuroskip/internal/tasks"
)

// MustOpenSegmentStore opens a segments.Store for tests and registers cleanup.
func MustOpenSegmentStore(t testing.TB, cfg *config.Config) *segments.Store {
	t.Helper()

	store, err := segments.Open(cfg)
	if err != nil {
		t.Fatalf("segments.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustOpenTaskStore opens a tasks.Store for tests and registers cleanup.
func MustOpenTaskStore(t testing.TB, cfg *config.Config) *tasks.Store {
	t.Helper()

	store, err := tasks.Open(cfg)
	if err != nil {
		t.Fatalf("tasks.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
