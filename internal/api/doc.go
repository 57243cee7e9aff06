// Package api defines wire-format types and the segment lookup service
// backing the HTTP surface. It translates internal store models into
// transport-friendly DTOs so browser extensions and CLI consumers never
// couple to internal types.
package api
