package vad

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"neuroskip/internal/logging"
	"neuroskip/internal/services"
)

// CommandRunner executes the detector binary and returns its stdout.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ToolDetector shells out to an external VAD binary that analyzes a file and
// emits speech timestamps as JSON on stdout:
//
//	{"duration": 63.2, "speech": [{"start": 1.4, "end": 9.8}, ...]}
type ToolDetector struct {
	binary     string
	sampleRate int
	runner     CommandRunner
	logger     *slog.Logger
}

// NewToolDetector constructs a detector around the configured binary.
func NewToolDetector(binary string, sampleRate int, logger *slog.Logger) *ToolDetector {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &ToolDetector{
		binary:     binary,
		sampleRate: sampleRate,
		runner:     defaultRunner,
		logger:     logging.NewComponentLogger(logger, "vad"),
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (d *ToolDetector) WithCommandRunner(runner CommandRunner) {
	if runner != nil {
		d.runner = runner
	}
}

func defaultRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return output, nil
}

type toolPayload struct {
	Duration float64      `json:"duration"`
	Speech   []SpeechSpan `json:"speech"`
}

func (d *ToolDetector) analyze(ctx context.Context, path string) (toolPayload, error) {
	var payload toolPayload
	output, err := d.runner(ctx, d.binary,
		"--input", path,
		"--sample-rate", strconv.Itoa(d.sampleRate),
		"--output", "json",
	)
	if err != nil {
		return payload, services.Wrap(services.ErrExternalTool, "vad", "analyze", path, err)
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(output))), &payload); err != nil {
		return payload, services.Wrap(services.ErrExternalTool, "vad", "parse output", path, err)
	}
	return payload, nil
}

// DetectSilenceBoundaries returns ascending silence-gap end timestamps for
// path, falling back to the file's full duration when no gaps exist.
func (d *ToolDetector) DetectSilenceBoundaries(ctx context.Context, path string) ([]float64, error) {
	payload, err := d.analyze(ctx, path)
	if err != nil {
		return nil, err
	}
	boundaries := SilenceBoundariesFromSpeech(payload.Speech, payload.Duration)
	d.logger.Debug("silence boundaries detected",
		logging.String("path", path),
		logging.Int("count", len(boundaries)),
	)
	return boundaries, nil
}

// DetectSpeechSegments returns the raw speech spans for path.
func (d *ToolDetector) DetectSpeechSegments(ctx context.Context, path string) ([]SpeechSpan, error) {
	payload, err := d.analyze(ctx, path)
	if err != nil {
		return nil, err
	}
	return payload.Speech, nil
}
