package workspace

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"neuroskip/internal/logging"
)

// LockChecker answers whether a work item is currently being processed.
type LockChecker interface {
	IsLocked(ctx context.Context, id string) (bool, error)
}

// SweepResult contains the outcome of one stale workspace sweep.
type SweepResult struct {
	Removed []string
	Skipped []string
	Errors  []SweepError
}

// SweepError pairs a directory path with its cleanup error.
type SweepError struct {
	Path  string
	Error error
}

// Reaper periodically removes unlocked, expired workspaces from the shared
// temp root. It runs on its own timer, decoupled from request and worker
// lifecycles.
type Reaper struct {
	manager  *Manager
	locks    LockChecker
	interval time.Duration
	maxAge   time.Duration
	logger   *slog.Logger
}

// NewReaper constructs a reaper over the manager's root.
func NewReaper(manager *Manager, locks LockChecker, interval, maxAge time.Duration, logger *slog.Logger) *Reaper {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Reaper{
		manager:  manager,
		locks:    locks,
		interval: interval,
		maxAge:   maxAge,
		logger:   logging.NewComponentLogger(logger, "reaper"),
	}
}

// Run sweeps on a fixed period until the context is canceled.
func (r *Reaper) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			result := r.Sweep(ctx)
			if len(result.Removed) > 0 || len(result.Errors) > 0 {
				r.logger.Info("stale workspace sweep finished",
					logging.Int("removed", len(result.Removed)),
					logging.Int("skipped_locked", len(result.Skipped)),
					logging.Int("errors", len(result.Errors)),
				)
			}
		}
	}
}

// Sweep removes every top-level directory under the temp root that is not
// currently locked and whose modification time exceeds the staleness
// threshold. Lock presence always wins over age.
func (r *Reaper) Sweep(ctx context.Context) SweepResult {
	result := SweepResult{}

	root := r.manager.Root()
	entries, err := os.ReadDir(root)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, SweepError{Path: root, Error: err})
		}
		return result
	}

	cutoff := time.Now().Add(-r.maxAge)

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		id := entry.Name()
		dirPath := filepath.Join(root, id)

		locked, err := r.locks.IsLocked(ctx, id)
		if err != nil {
			// Cannot prove the item is idle; leave it for the next cycle.
			result.Errors = append(result.Errors, SweepError{Path: dirPath, Error: err})
			continue
		}
		if locked {
			result.Skipped = append(result.Skipped, dirPath)
			continue
		}

		info, err := entry.Info()
		if err != nil {
			result.Errors = append(result.Errors, SweepError{Path: dirPath, Error: err})
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		if err := os.RemoveAll(dirPath); err != nil {
			result.Errors = append(result.Errors, SweepError{Path: dirPath, Error: err})
			r.logger.Warn("failed to remove stale workspace",
				logging.String("path", dirPath),
				logging.Error(err),
				logging.String(logging.FieldEventType, "workspace_sweep_failed"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			continue
		}
		result.Removed = append(result.Removed, dirPath)
		r.logger.Info("removed stale workspace",
			logging.String("path", dirPath),
			logging.Duration("age", time.Since(info.ModTime())),
			logging.String(logging.FieldEventType, "workspace_sweep"),
		)
	}

	return result
}
