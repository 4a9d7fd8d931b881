// Package prefstore persists user conflict decisions and batch rules
// between runs as JSON files guarded by a file lock.
package prefstore
