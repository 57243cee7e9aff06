package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestTryAcquireExactlyOneWinner(t *testing.T) {
	coord := NewCoordinator(NewMemoryStore())
	ctx := context.Background()

	const callers = 32
	var wins atomic.Int64
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			ok, err := coord.TryAcquire(ctx, "abc12345678")
			if err != nil {
				t.Errorf("TryAcquire: %v", err)
				return
			}
			if ok {
				wins.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if wins.Load() != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins.Load())
	}
}

func TestReleaseFreesLock(t *testing.T) {
	coord := NewCoordinator(NewMemoryStore())
	ctx := context.Background()

	if ok, _ := coord.TryAcquire(ctx, "vid"); !ok {
		t.Fatal("initial acquire failed")
	}
	released, err := coord.Release(ctx, "vid")
	if err != nil {
		t.Fatalf("Release: %v", err)
	}
	if !released {
		t.Error("expected release to report removal")
	}
	if ok, _ := coord.TryAcquire(ctx, "vid"); !ok {
		t.Error("lock should be free immediately after release")
	}
}

func TestReleaseAbsentIsNoOp(t *testing.T) {
	coord := NewCoordinator(NewMemoryStore())
	released, err := coord.Release(context.Background(), "never-held")
	if err != nil {
		t.Fatalf("Release: %v", err)
	}
	if released {
		t.Error("releasing an absent lock must return false")
	}
}

func TestExpiredLockReadsAsAbsent(t *testing.T) {
	store := NewMemoryStore()
	base := time.Now()
	current := base
	store.SetClock(func() time.Time { return current })

	coord := NewCoordinator(store, WithTTL(time.Second))
	ctx := context.Background()

	if ok, _ := coord.TryAcquire(ctx, "vid"); !ok {
		t.Fatal("acquire failed")
	}
	if held, _ := coord.IsLocked(ctx, "vid"); !held {
		t.Fatal("expected lock held before TTL")
	}

	current = base.Add(2 * time.Second)
	if held, _ := coord.IsLocked(ctx, "vid"); held {
		t.Error("lock past TTL must read as absent")
	}
	if ok, _ := coord.TryAcquire(ctx, "vid"); !ok {
		t.Error("expired lock should be acquirable")
	}
}

func TestReleaseRunsCleanupHook(t *testing.T) {
	var cleaned []string
	coord := NewCoordinator(
		NewMemoryStore(),
		WithCleanup(func(id string) { cleaned = append(cleaned, id) }),
	)
	ctx := context.Background()

	if ok, _ := coord.TryAcquire(ctx, "vid"); !ok {
		t.Fatal("acquire failed")
	}
	if _, err := coord.Release(ctx, "vid"); err != nil {
		t.Fatalf("Release: %v", err)
	}
	// Hook runs even when the lock is already gone.
	if _, err := coord.Release(ctx, "vid"); err != nil {
		t.Fatalf("second Release: %v", err)
	}

	if len(cleaned) != 2 || cleaned[0] != "vid" || cleaned[1] != "vid" {
		t.Errorf("cleanup hook calls = %v", cleaned)
	}
}
