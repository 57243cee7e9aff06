// Package source fetches remote video audio into the local workspace.
package source

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"

	"neuroskip/internal/logging"
	"neuroskip/internal/services"
)

var videoIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)

// ValidateID reports whether the identifier matches the expected format.
func ValidateID(externalID string) error {
	if !videoIDPattern.MatchString(externalID) {
		return services.Wrap(services.ErrValidation, "fetch", "validate id", externalID, nil)
	}
	return nil
}

// CommandRunner executes an external command and returns its combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func defaultRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.CombinedOutput()
}

// Fetcher downloads audio tracks via yt-dlp. Downloads are idempotent:
// a non-empty cached file short-circuits the network entirely.
type Fetcher struct {
	tempDir string
	binary  string
	runner  CommandRunner
	logger  *slog.Logger
}

// NewFetcher builds a fetcher rooted at the given temp directory.
func NewFetcher(tempDir string, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Fetcher{
		tempDir: tempDir,
		binary:  "yt-dlp",
		runner:  defaultRunner,
		logger:  logging.NewComponentLogger(logger, "source"),
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (f *Fetcher) WithCommandRunner(runner CommandRunner) {
	if runner != nil {
		f.runner = runner
	}
}

// AudioPath returns the canonical location for a video's audio file.
func (f *Fetcher) AudioPath(externalID string) string {
	return filepath.Join(f.tempDir, externalID, fmt.Sprintf("audio_%s.mp3", externalID))
}

// FetchAudio downloads the audio track for a video and returns its path.
// An existing non-empty file is reused; an empty leftover is removed and
// re-downloaded.
func (f *Fetcher) FetchAudio(ctx context.Context, externalID string) (string, error) {
	if err := ValidateID(externalID); err != nil {
		return "", err
	}

	output := f.AudioPath(externalID)
	if info, err := os.Stat(output); err == nil {
		if info.Size() > 0 {
			f.logger.Info("using cached audio file",
				logging.String(logging.FieldVideoID, externalID),
				logging.String("path", output))
			return output, nil
		}
		_ = os.Remove(output)
	}

	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "fetch", "prepare directory", externalID, err)
	}

	url := "https://www.youtube.com/watch?v=" + externalID
	f.logger.Info("downloading audio",
		logging.String(logging.FieldVideoID, externalID),
		logging.String("url", url))

	out, err := f.runner(ctx, f.binary,
		"--extract-audio",
		"--audio-format", "mp3",
		"--audio-quality", "128K",
		"--output", output,
		url,
	)
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "fetch", "download audio",
			fmt.Sprintf("%s: %s", externalID, string(out)), err)
	}

	info, err := os.Stat(output)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "fetch", "verify download", externalID, err)
	}
	if info.Size() == 0 {
		return "", services.Wrap(services.ErrValidation, "fetch", "verify download", "downloaded file is empty", nil)
	}

	f.logger.Info("audio download complete",
		logging.String(logging.FieldVideoID, externalID),
		logging.Int64("bytes", info.Size()))
	return output, nil
}
