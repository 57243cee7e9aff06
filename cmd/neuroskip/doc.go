// Package main hosts the neuroskip CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into direct
// store reads, lock-aware dispatch requests, workspace reaping, and
// configuration scaffolding. It centralizes configuration resolution so
// subcommands can focus on presentation instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
