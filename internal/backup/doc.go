// Package backup guards metadata writes with per-file transactions.
// A configurable strategy decides what gets captured before a write:
// changelog entries, in-memory copies, critical-field snapshots, or
// full file copies.
package backup
