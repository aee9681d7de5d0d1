package ctxutil

import "context"

type traceDataKey struct{}
type callerDataKey struct{}

type TraceData struct {
	TraceID   string
	RequestID string
}

// CallerData identifies whoever triggered a write (admin backfill, user confirmation).
type CallerData struct {
	Subject string
	Admin   bool
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	return context.WithValue(ctx, traceDataKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	if td, ok := ctx.Value(traceDataKey{}).(*TraceData); ok {
		return td
	}
	return nil
}

func WithCallerData(ctx context.Context, cd *CallerData) context.Context {
	return context.WithValue(ctx, callerDataKey{}, cd)
}

func GetCallerData(ctx context.Context) *CallerData {
	if cd, ok := ctx.Value(callerDataKey{}).(*CallerData); ok {
		return cd
	}
	return nil
}

// CallerOr returns the caller subject or def when the request is anonymous.
func CallerOr(ctx context.Context, def string) string {
	if cd := GetCallerData(ctx); cd != nil && cd.Subject != "" {
		return cd.Subject
	}
	return def
}
