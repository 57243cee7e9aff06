package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks configuration values for internal consistency.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Paths.TempDir) == "" {
		problems = append(problems, "paths.temp_dir must not be empty")
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		problems = append(problems, "paths.data_dir must not be empty")
	}
	if strings.TrimSpace(c.Redis.Addr) == "" {
		problems = append(problems, "redis.addr must not be empty")
	}
	if c.Workflow.LockTTLSeconds <= 0 {
		problems = append(problems, "workflow.lock_ttl_seconds must be positive")
	}
	if c.Workflow.ReaperInterval <= 0 {
		problems = append(problems, "workflow.reaper_interval_seconds must be positive")
	}
	if c.Workflow.ReaperMaxAge <= 0 {
		problems = append(problems, "workflow.reaper_max_age_seconds must be positive")
	}
	if raw := strings.TrimSpace(c.Classifier.URL); raw != "" {
		if parsed, err := url.Parse(raw); err != nil || parsed.Scheme == "" || parsed.Host == "" {
			problems = append(problems, fmt.Sprintf("classifier.url %q is not a valid URL", raw))
		}
	}
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q must be console or json", c.Logging.Format))
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}
