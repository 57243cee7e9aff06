package tasks

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"neuroskip/internal/config"
)

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    lane TEXT NOT NULL,
    status TEXT NOT NULL,
    payload_json TEXT NOT NULL DEFAULT '',
    error_message TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_lane_status ON tasks(lane, status, created_at);
`

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Store manages task persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the task database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.DataDir, "tasks.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init task schema: %w", err)
	}

	return &Store{db: db, path: dbPath}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the on-disk location of the task database.
func (s *Store) Path() string {
	return s.path
}

// Enqueue persists a new pending task on the given lane. The payload is
// JSON-encoded into the row.
func (s *Store) Enqueue(ctx context.Context, kind Kind, lane Lane, payload any) (*Task, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal task payload: %w", err)
	}

	id := uuid.NewString()
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.execWithRetry(
		ctx,
		`INSERT INTO tasks (id, kind, lane, status, payload_json, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, kind, lane, StatusPending, string(encoded), timestamp, timestamp,
	); err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}

	return s.GetByID(ctx, id)
}

// NextForLane atomically claims the oldest pending task on a lane,
// transitioning it to running. Returns nil when the lane is empty.
func (s *Store) NextForLane(ctx context.Context, lane Lane) (*Task, error) {
	ctx = ensureContext(ctx)
	for {
		row := s.db.QueryRowContext(
			ctx,
			`SELECT id FROM tasks WHERE lane = ? AND status = ? ORDER BY created_at, id LIMIT 1`,
			lane, StatusPending,
		)
		var id string
		if err := row.Scan(&id); errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		} else if err != nil {
			return nil, fmt.Errorf("select next task: %w", err)
		}

		timestamp := time.Now().UTC().Format(time.RFC3339Nano)
		var res sql.Result
		err := retryOnBusy(ctx, func() error {
			var execErr error
			res, execErr = s.db.ExecContext(
				ctx,
				`UPDATE tasks SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
				StatusRunning, timestamp, id, StatusPending,
			)
			return execErr
		})
		if err != nil {
			return nil, fmt.Errorf("claim task: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("claim task rows: %w", err)
		}
		if affected == 0 {
			// Another worker claimed it between select and update.
			continue
		}
		return s.GetByID(ctx, id)
	}
}

// GetByID fetches a task by identifier. Returns nil when absent.
func (s *Store) GetByID(ctx context.Context, id string) (*Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

// MarkCompleted transitions a running task to completed.
func (s *Store) MarkCompleted(ctx context.Context, id string) error {
	return s.finish(ctx, id, StatusCompleted, "")
}

// MarkFailed transitions a running task to failed with the given message.
func (s *Store) MarkFailed(ctx context.Context, id, message string) error {
	return s.finish(ctx, id, StatusFailed, message)
}

func (s *Store) finish(ctx context.Context, id string, status Status, message string) error {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.execWithRetry(
		ctx,
		`UPDATE tasks SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		status, nullableString(message), timestamp, id,
	); err != nil {
		return fmt.Errorf("finish task: %w", err)
	}
	return nil
}

// List returns tasks ordered newest first, optionally filtered by status.
func (s *Store) List(ctx context.Context, status Status, limit int) ([]Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	args := make([]any, 0, 2)
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, *task)
	}
	return out, rows.Err()
}

// Health aggregates task counts per lifecycle state.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT status, COUNT(*) FROM tasks GROUP BY status`,
	)
	if err != nil {
		return HealthSummary{}, fmt.Errorf("task health: %w", err)
	}
	defer rows.Close()

	var summary HealthSummary
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return HealthSummary{}, fmt.Errorf("scan task health: %w", err)
		}
		summary.Total += count
		switch Status(status) {
		case StatusPending:
			summary.Pending = count
		case StatusRunning:
			summary.Running = count
		case StatusCompleted:
			summary.Completed = count
		case StatusFailed:
			summary.Failed = count
		}
	}
	return summary, rows.Err()
}

// FailRunning marks every running task as failed with the given reason.
// Used on daemon shutdown so restarts do not inherit phantom workers.
func (s *Store) FailRunning(ctx context.Context, reason string) (int64, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	ctx = ensureContext(ctx)
	var res sql.Result
	err := retryOnBusy(ctx, func() error {
		var execErr error
		res, execErr = s.db.ExecContext(
			ctx,
			`UPDATE tasks SET status = ?, error_message = ?, updated_at = ? WHERE status = ?`,
			StatusFailed, nullableString(reason), timestamp, StatusRunning,
		)
		return execErr
	})
	if err != nil {
		return 0, fmt.Errorf("fail running tasks: %w", err)
	}
	return res.RowsAffected()
}

const taskColumns = "id, kind, lane, status, payload_json, error_message, created_at, updated_at"

func scanTask(scanner interface{ Scan(dest ...any) error }) (*Task, error) {
	var task Task
	var errorMessage sql.NullString
	var createdAt, updatedAt string
	if err := scanner.Scan(
		&task.ID, (*string)(&task.Kind), (*string)(&task.Lane), (*string)(&task.Status),
		&task.PayloadJSON, &errorMessage, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}
	task.ErrorMessage = errorMessage.String
	task.CreatedAt = parseTimestamp(createdAt)
	task.UpdatedAt = parseTimestamp(updatedAt)
	return &task, nil
}

func parseTimestamp(value string) time.Time {
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}
