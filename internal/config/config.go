package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	TempDir string `toml:"temp_dir"`
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
	APIBind string `toml:"api_bind"`
}

// Redis contains connection settings for the lock backing store.
type Redis struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// Whisper contains speech-to-text engine settings.
type Whisper struct {
	Binary     string `toml:"binary"`
	Model      string `toml:"model"`
	CPUThreads int    `toml:"cpu_threads"`
}

// VAD contains voice activity detection settings.
type VAD struct {
	Binary     string `toml:"binary"`
	SampleRate int    `toml:"sample_rate"`
}

// Classifier contains the advertisement classifier endpoint settings.
type Classifier struct {
	URL            string `toml:"url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Workflow contains pipeline timing and coordination settings.
type Workflow struct {
	LockTTLSeconds     int `toml:"lock_ttl_seconds"`
	ReaperInterval     int `toml:"reaper_interval_seconds"`
	ReaperMaxAge       int `toml:"reaper_max_age_seconds"`
	QueuePollInterval  int `toml:"queue_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config is the root application configuration.
type Config struct {
	Paths      Paths      `toml:"paths"`
	Redis      Redis      `toml:"redis"`
	Whisper    Whisper    `toml:"whisper"`
	VAD        VAD        `toml:"vad"`
	Classifier Classifier `toml:"classifier"`
	Workflow   Workflow   `toml:"workflow"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the expected location of the config file.
func DefaultConfigPath() string {
	return expandPath("~/.config/neuroskip/config.toml")
}

// Load reads configuration from path, falling back to defaults for a missing
// file. An empty path uses DefaultConfigPath.
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		path = DefaultConfigPath()
	}
	path = expandPath(path)

	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg.normalize()
			return &cfg, nil
		}
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// WriteSample writes the embedded sample configuration to path.
func WriteSample(path string) error {
	path = expandPath(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure config directory: %w", err)
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	return os.WriteFile(path, []byte(sampleConfig), 0o644)
}

// EnsureDirectories creates the runtime directories the daemon needs.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.TempDir, c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func (c *Config) normalize() {
	c.Paths.TempDir = expandPath(c.Paths.TempDir)
	c.Paths.DataDir = expandPath(c.Paths.DataDir)
	c.Paths.LogDir = expandPath(c.Paths.LogDir)

	if c.Workflow.LockTTLSeconds <= 0 {
		c.Workflow.LockTTLSeconds = defaultLockTTLSeconds
	}
	if c.Workflow.ReaperInterval <= 0 {
		c.Workflow.ReaperInterval = defaultReaperIntervalSeconds
	}
	if c.Workflow.ReaperMaxAge <= 0 {
		c.Workflow.ReaperMaxAge = defaultReaperMaxAgeSeconds
	}
	if c.Workflow.QueuePollInterval <= 0 {
		c.Workflow.QueuePollInterval = defaultQueuePollInterval
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		c.Workflow.ErrorRetryInterval = defaultErrorRetryInterval
	}
	if c.Classifier.TimeoutSeconds <= 0 {
		c.Classifier.TimeoutSeconds = defaultClassifierTimeout
	}
	if c.VAD.SampleRate <= 0 {
		c.VAD.SampleRate = defaultVADSampleRate
	}
	if c.Whisper.CPUThreads <= 0 {
		c.Whisper.CPUThreads = defaultWhisperThreads
	}
}

func expandPath(path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return trimmed
	}
	if trimmed == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			return home
		}
		return trimmed
	}
	if strings.HasPrefix(trimmed, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, trimmed[2:])
		}
	}
	return trimmed
}
