// Package tasks provides the persistent priority-lane task queue, the
// dispatcher that routes work onto it, and the worker pool that drains it.
package tasks
