package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"neuroskip/internal/config"
	"neuroskip/internal/services"
)

// CommandRunner executes the whisper binary and returns its stdout.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// WhisperEngine shells out to a whisper CLI that prints JSON to stdout:
//
//	{"language": "en", "segments": [{"start": 0.0, "end": 4.2, "text": "..."}]}
type WhisperEngine struct {
	binary  string
	model   string
	threads int
	runner  CommandRunner
}

// NewWhisperEngine constructs an engine from application config.
func NewWhisperEngine(cfg config.Whisper) *WhisperEngine {
	return &WhisperEngine{
		binary:  cfg.Binary,
		model:   cfg.Model,
		threads: cfg.CPUThreads,
		runner:  defaultRunner,
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (e *WhisperEngine) WithCommandRunner(runner CommandRunner) {
	if runner != nil {
		e.runner = runner
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

type whisperPayload struct {
	Language string `json:"language"`
	Segments []Span `json:"segments"`
}

// Transcribe runs the whisper CLI over path. An empty language enables
// autodetection; the model's detected language is returned either way.
func (e *WhisperEngine) Transcribe(ctx context.Context, path, language string) ([]Span, string, error) {
	args := []string{
		path,
		"--model", e.model,
		"--threads", strconv.Itoa(e.threads),
		"--output", "json",
	}
	if lang := strings.TrimSpace(language); lang != "" {
		args = append(args, "--language", lang)
	}

	output, err := e.runner(ctx, e.binary, args...)
	if err != nil {
		return nil, "", services.Wrap(services.ErrExternalTool, "transcribe", "whisper", path, err)
	}

	var payload whisperPayload
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(output))), &payload); err != nil {
		return nil, "", services.Wrap(services.ErrExternalTool, "transcribe", "parse whisper output", path, err)
	}
	return payload.Segments, payload.Language, nil
}
