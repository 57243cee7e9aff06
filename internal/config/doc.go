// Package config defines the TOML application configuration, its defaults,
// and validation. A Config is constructed once at process start and shared
// read-only by every component.
package config
