// Package logging provides slog-based structured logging helpers shared by
// every neuroskip component: typed attribute constructors, standardized field
// names, and logger construction from application configuration.
package logging
