package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"neuroskip/internal/logging"
)

// Manager owns the identifier-keyed temporary directory lifecycle. Every
// pipeline run gets one directory under the shared temp root; the directory
// is destroyed at run end regardless of outcome.
type Manager struct {
	root   string
	logger *slog.Logger
}

// NewManager constructs a manager rooted at root.
func NewManager(root string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		root:   strings.TrimSpace(root),
		logger: logging.NewComponentLogger(logger, "workspace"),
	}
}

// Root returns the shared temporary root directory.
func (m *Manager) Root() string {
	return m.root
}

// Path returns the workspace directory for id without creating it.
func (m *Manager) Path(id string) string {
	return filepath.Join(m.root, id)
}

// Create makes the workspace directory for id and returns its path.
func (m *Manager) Create(id string) (string, error) {
	dir := m.Path(id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create workspace %q: %w", id, err)
	}
	m.logger.Debug("workspace created", logging.String(logging.FieldVideoID, id), logging.String("path", dir))
	return dir, nil
}

// Cleanup removes the workspace for id. A missing directory is a no-op.
func (m *Manager) Cleanup(id string) error {
	dir := m.Path(id)
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat workspace %q: %w", id, err)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove workspace %q: %w", id, err)
	}
	m.logger.Debug("workspace removed", logging.String(logging.FieldVideoID, id))
	return nil
}

// RemoveFile deletes a single file inside a workspace, best effort. Media
// parts are removed immediately after transcription to bound disk usage.
func (m *Manager) RemoveFile(path string) {
	if strings.TrimSpace(path) == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		m.logger.Warn("failed to remove workspace file",
			logging.String("path", path),
			logging.Error(err),
		)
	}
}

// Age returns how long ago the workspace for id was last modified.
func (m *Manager) Age(id string) (time.Duration, error) {
	info, err := os.Stat(m.Path(id))
	if err != nil {
		return 0, err
	}
	return time.Since(info.ModTime()), nil
}
