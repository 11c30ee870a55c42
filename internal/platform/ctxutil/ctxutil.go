package ctxutil

import "context"

// Default returns context.Background() when ctx is nil.
func Default(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

type traceDataKey struct{}

type TraceData struct {
	TraceID   string
	RequestID string
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

type externalUserKey struct{}

// WithExternalUserID stores the identity-provider subject for the request.
func WithExternalUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, externalUserKey{}, id)
}

func ExternalUserID(ctx context.Context) string {
	id, _ := ctx.Value(externalUserKey{}).(string)
	return id
}
