package main

import (
	"neuroskip/internal/config"
)

// commandContext lazily loads configuration once per invocation.
type commandContext struct {
	configFlag *string
	cfg        *config.Config
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	path := ""
	if c.configFlag != nil {
		path = *c.configFlag
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	c.cfg = cfg
	return cfg, nil
}

func (c *commandContext) configPath() string {
	if c.configFlag != nil && *c.configFlag != "" {
		return *c.configFlag
	}
	return config.DefaultConfigPath()
}
