// Package enrich orchestrates the per-file flow: read current tags,
// gather and aggregate candidates, resolve conflicts, and write the
// outcome under a backup transaction.
package enrich
