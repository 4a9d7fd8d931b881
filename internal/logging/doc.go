// Package logging assembles the structured slog loggers used across retag.
//
// It owns the console/JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so component code automatically tags log
// lines with the resource and component being processed. A no-op logger is
// provided for tests and wiring code that cannot fail.
package logging
