package logging

import (
	"context"
	"log/slog"

	"retag/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldResource is the standardized structured logging key for the audio file being processed.
	FieldResource = "resource"
	// FieldField is the standardized structured logging key for tag field names.
	FieldField = "field"
	// FieldSource is the standardized structured logging key for metadata source ids.
	FieldSource = "source"
	// FieldStrategy is the standardized structured logging key for backup strategy names.
	FieldStrategy = "strategy"
	// FieldAction is the standardized structured logging key for resolution actions.
	FieldAction = "action"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 2)
	if resource, ok := services.ResourceFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldResource, resource))
	}
	if component, ok := services.ComponentFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldComponent, component))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
