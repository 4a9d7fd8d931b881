package services

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel markers for failure classification. Every error crossing a
// component boundary is wrapped with exactly one of these so callers can
// decide between aborting the run and recording a per-item warning.
var (
	// ErrConfiguration marks missing or invalid required settings. Fatal at startup.
	ErrConfiguration = errors.New("configuration error")
	// ErrSource marks a single candidate source failure. Recovered locally;
	// the source contributes zero candidates.
	ErrSource = errors.New("source unavailable")
	// ErrBackup marks a snapshot that could not be taken. The write proceeds
	// uninsured unless strict mode is enabled.
	ErrBackup = errors.New("backup failure")
	// ErrWrite marks a failed tag write. Triggers rollback for the affected
	// file without aborting the batch.
	ErrWrite = errors.New("write failure")
	// ErrNotFound marks a lookup with no matching record (e.g. restore with
	// no snapshot). Reported, never raised as a batch failure.
	ErrNotFound = errors.New("not found")
	// ErrCorruptState marks unreadable persisted preferences or rules.
	// The store is treated as empty and the corruption logged once.
	ErrCorruptState = errors.New("corrupt persisted state")
	// ErrTransient marks everything else recoverable.
	ErrTransient = errors.New("transient failure")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsFatal reports whether an error should abort the whole run. Only
// configuration-level failures qualify; everything else is recorded as a
// per-item warning and the batch continues.
func IsFatal(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
