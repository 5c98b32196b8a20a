package ctxkeys

import "context"

// contextKey is the key type for values stored in a context.
type contextKey string

const (
	traceIDKey contextKey = "trace_id"
	runIDKey   contextKey = "run_id"
	graphKey   contextKey = "graph"
	requestKey contextKey = "request_id"
)

// WithTraceID sets the trace id.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceID returns the trace id.
func TraceID(ctx context.Context) (string, bool) {
	return lookup(ctx, traceIDKey)
}

// WithRunID sets the id of the logic run in progress.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// RunID returns the id of the logic run in progress.
func RunID(ctx context.Context) (string, bool) {
	return lookup(ctx, runIDKey)
}

// WithGraphName sets the name of the graph being executed.
func WithGraphName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, graphKey, name)
}

// GraphName returns the name of the graph being executed.
func GraphName(ctx context.Context) (string, bool) {
	return lookup(ctx, graphKey)
}

// WithRequestID sets the id of the HTTP request being served.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestKey, id)
}

// RequestID returns the id of the HTTP request being served.
func RequestID(ctx context.Context) (string, bool) {
	return lookup(ctx, requestKey)
}

func lookup(ctx context.Context, key contextKey) (string, bool) {
	v, ok := ctx.Value(key).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
