package media

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"neuroskip/internal/logging"
	"neuroskip/internal/services"
)

// Command names for external tools.
const (
	FFmpegCommand  = "ffmpeg"
	FFprobeCommand = "ffprobe"
)

// Part is one bounded-duration slice of the source media, ordered by Index.
type Part struct {
	Path  string
	Index int
}

// CommandRunner executes an external command and returns its combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func defaultRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		return output, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return output, nil
}

// Engine validates media files and splits them into parts at silence
// boundaries supplied by the voice-activity capability.
type Engine struct {
	ffmpegBinary  string
	ffprobeBinary string
	runner        CommandRunner
	logger        *slog.Logger
}

// NewEngine creates an engine using the given binaries (empty uses defaults).
func NewEngine(ffmpegBinary, ffprobeBinary string, logger *slog.Logger) *Engine {
	if ffmpegBinary == "" {
		ffmpegBinary = FFmpegCommand
	}
	if ffprobeBinary == "" {
		ffprobeBinary = FFprobeCommand
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{
		ffmpegBinary:  ffmpegBinary,
		ffprobeBinary: ffprobeBinary,
		runner:        defaultRunner,
		logger:        logging.NewComponentLogger(logger, "media"),
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (e *Engine) WithCommandRunner(runner CommandRunner) {
	if runner != nil {
		e.runner = runner
	}
}

// Verify runs a decode-and-discard pass over path. False signals a corrupt or
// unreadable file; callers abort the run instead of attempting segmentation.
func (e *Engine) Verify(ctx context.Context, path string) bool {
	_, err := e.runner(ctx, e.ffmpegBinary, "-v", "error", "-i", path, "-f", "null", "-")
	if err != nil {
		e.logger.Warn("media verification failed",
			logging.String("path", path),
			logging.Error(err),
		)
		return false
	}
	return true
}

// Duration probes the playable duration of path in seconds.
func (e *Engine) Duration(ctx context.Context, path string) (float64, error) {
	output, err := e.runner(ctx, e.ffprobeBinary,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, services.Wrap(services.ErrExternalTool, "media", "probe duration", path, err)
	}
	value := strings.TrimSpace(string(output))
	duration, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, services.Wrap(services.ErrExternalTool, "media", "parse duration", value, err)
	}
	return duration, nil
}

// Split cuts path at each silence boundary, writing sequential parts into
// outputDir named deterministically by id and index. An empty boundary list
// falls back to the whole file as a single part spanning its full duration.
// The returned boundary list is the one actually used for offsets: boundary i
// is the start time of part i+1.
func (e *Engine) Split(ctx context.Context, path string, boundaries []float64, outputDir, id string) ([]Part, []float64, error) {
	if len(boundaries) == 0 {
		duration, err := e.Duration(ctx, path)
		if err != nil {
			return nil, nil, err
		}
		boundaries = []float64{duration}
		e.logger.Info("no silence boundaries detected, using full duration",
			logging.String(logging.FieldVideoID, id),
			logging.Float64("duration", duration),
		)
	}

	cutPoints := make([]string, len(boundaries))
	for i, boundary := range boundaries {
		cutPoints[i] = strconv.FormatFloat(boundary, 'f', -1, 64)
	}
	outputPattern := filepath.Join(outputDir, fmt.Sprintf("audio_part_%s_%%03d.mp3", id))

	_, err := e.runner(ctx, e.ffmpegBinary,
		"-i", path,
		"-f", "segment", "-segment_times", strings.Join(cutPoints, ","),
		"-c:a", "mp3", "-b:a", "192k",
		"-avoid_negative_ts", "make_zero",
		outputPattern, "-y",
	)
	if err != nil {
		return nil, nil, services.Wrap(services.ErrSegmentation, "media", "split", path, err)
	}

	matches, err := filepath.Glob(filepath.Join(outputDir, fmt.Sprintf("audio_part_%s_*.mp3", id)))
	if err != nil {
		return nil, nil, services.Wrap(services.ErrSegmentation, "media", "enumerate parts", outputDir, err)
	}
	sort.Strings(matches)

	if len(matches) == 0 {
		return nil, nil, services.Wrap(services.ErrSegmentation, "media", "split", "no parts were created", nil)
	}

	// Boundary i must be the start of part i+1. A single trailing boundary at
	// or past end-of-stream yields no extra part; anything else would
	// misalign offsets and fails the run instead.
	if len(matches) != len(boundaries)+1 && len(matches) != len(boundaries) {
		return nil, nil, services.Wrap(
			services.ErrValidation,
			"media", "split",
			fmt.Sprintf("part count %d does not match %d boundaries", len(matches), len(boundaries)),
			nil,
		)
	}

	parts := make([]Part, len(matches))
	for i, match := range matches {
		parts[i] = Part{Path: match, Index: i}
	}

	e.logger.Info("media split into parts",
		logging.String(logging.FieldVideoID, id),
		logging.Int("parts", len(parts)),
		logging.Int("boundaries", len(boundaries)),
	)
	return parts, boundaries, nil
}

// LongestPart returns the part with the greatest playable duration, ties
// broken by encounter order. Unreadable parts are skipped. The second return
// is false when no part could be probed.
func (e *Engine) LongestPart(ctx context.Context, parts []Part) (Part, bool) {
	var longest Part
	found := false
	maxDuration := 0.0

	for _, part := range parts {
		duration, err := e.Duration(ctx, part.Path)
		if err != nil {
			e.logger.Warn("could not probe part duration",
				logging.String("path", part.Path),
				logging.Error(err),
			)
			continue
		}
		if !found || duration > maxDuration {
			maxDuration = duration
			longest = part
			found = true
		}
	}
	return longest, found
}
