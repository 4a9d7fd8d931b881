// Package changelog records every metadata rewrite in SQLite so that
// changes can be inspected and rolled back without file copies.
package changelog
