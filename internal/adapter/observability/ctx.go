package observability

import "context"

type requestIDKey struct{}

// ContextWithRequestID attaches a request ID to ctx for cross-layer log
// correlation alongside the trace/span IDs already in scope.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the request ID stored by
// ContextWithRequestID, or "" if none is present.
func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}
