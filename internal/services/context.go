package services

import "context"

type contextKey string

const (
	resourceKey  contextKey = "resource"
	componentKey contextKey = "component"
)

// WithResource annotates context with the audio resource being processed.
func WithResource(ctx context.Context, path string) context.Context {
	if path == "" {
		return ctx
	}
	return context.WithValue(ctx, resourceKey, path)
}

// ResourceFromContext extracts the resource path if present.
func ResourceFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(resourceKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithComponent annotates context with the active component name.
func WithComponent(ctx context.Context, component string) context.Context {
	if component == "" {
		return ctx
	}
	return context.WithValue(ctx, componentKey, component)
}

// ComponentFromContext returns the component name if present.
func ComponentFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(componentKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}
