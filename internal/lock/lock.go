package lock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"neuroskip/internal/logging"
)

const keyPrefix = "task_lock:"

// DefaultTTL bounds how long a crashed worker can wedge a work item.
const DefaultTTL = 3600 * time.Second

// Store is the TTL key-value backend the coordinator runs on. It must provide
// atomic set-if-absent-with-expiry semantics.
type Store interface {
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Exists(ctx context.Context, key string) (bool, error)
	Del(ctx context.Context, key string) (bool, error)
}

// CleanupFunc is invoked on release with the work-item identifier. The
// coordinator couples "unlock" with workspace deletion so no exit path can
// leave temporary files behind a freed lock.
type CleanupFunc func(id string)

// Coordinator provides distributed mutual exclusion keyed by work-item id.
type Coordinator struct {
	store   Store
	ttl     time.Duration
	cleanup CleanupFunc
	logger  *slog.Logger
}

// Option customizes the coordinator.
type Option func(*Coordinator)

// WithTTL overrides the default lock TTL.
func WithTTL(ttl time.Duration) Option {
	return func(c *Coordinator) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithCleanup registers the release-time cleanup hook.
func WithCleanup(fn CleanupFunc) Option {
	return func(c *Coordinator) {
		c.cleanup = fn
	}
}

// WithLogger sets the coordinator logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logging.NewComponentLogger(logger, "lock")
		}
	}
}

// NewCoordinator constructs a coordinator on the provided backing store.
func NewCoordinator(store Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:  store,
		ttl:    DefaultTTL,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TryAcquire atomically takes the lock for id if it is free. It returns false
// without blocking when the lock is already held; callers must treat that as
// "in progress", not as an error.
func (c *Coordinator) TryAcquire(ctx context.Context, id string) (bool, error) {
	ok, err := c.store.SetNX(ctx, keyPrefix+id, "locked", c.ttl)
	if err != nil {
		return false, fmt.Errorf("acquire lock %q: %w", id, err)
	}
	if ok {
		c.logger.Debug("lock acquired",
			logging.String(logging.FieldVideoID, id),
			logging.Duration("ttl", c.ttl),
		)
	}
	return ok, nil
}

// IsLocked reports whether id is currently held. A lock past its TTL reads as
// absent even without an explicit release.
func (c *Coordinator) IsLocked(ctx context.Context, id string) (bool, error) {
	held, err := c.store.Exists(ctx, keyPrefix+id)
	if err != nil {
		return false, fmt.Errorf("check lock %q: %w", id, err)
	}
	return held, nil
}

// Release frees the lock for id and runs the registered cleanup hook. It is
// idempotent: releasing an absent lock is a no-op returning false. The hook
// runs on every release attempt so workspaces are reclaimed even when the
// lock already expired.
func (c *Coordinator) Release(ctx context.Context, id string) (bool, error) {
	if c.cleanup != nil {
		c.cleanup(id)
	}
	removed, err := c.store.Del(ctx, keyPrefix+id)
	if err != nil {
		return false, fmt.Errorf("release lock %q: %w", id, err)
	}
	if removed {
		c.logger.Debug("lock released", logging.String(logging.FieldVideoID, id))
	}
	return removed, nil
}
