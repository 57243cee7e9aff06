// Package daemon wires configuration, stores, the worker pool, the
// workspace reaper, and the HTTP API into a single long-running process
// guarded by a file lock.
package daemon
