package logging

import (
	"context"
)

type contextKey string

const (
	TraceIDKey   contextKey = "trace_id"
	OperationKey contextKey = "operation"
	FilterKeyKey contextKey = "filter_key"
	UserKey      contextKey = "user"
)

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

func WithOperation(ctx context.Context, operation string) context.Context {
	return context.WithValue(ctx, OperationKey, operation)
}

func WithFilterKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, FilterKeyKey, key)
}

func WithUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, UserKey, user)
}

func GetTraceID(ctx context.Context) string {
	return stringValue(ctx, TraceIDKey)
}

func GetOperation(ctx context.Context) string {
	return stringValue(ctx, OperationKey)
}

func GetFilterKey(ctx context.Context) string {
	return stringValue(ctx, FilterKeyKey)
}

func GetUser(ctx context.Context) string {
	return stringValue(ctx, UserKey)
}

func stringValue(ctx context.Context, key contextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

func GetLogFields(ctx context.Context) []interface{} {
	fields := make([]interface{}, 0, 8)

	if traceID := GetTraceID(ctx); traceID != "" {
		fields = append(fields, string(TraceIDKey), traceID)
	}

	if op := GetOperation(ctx); op != "" {
		fields = append(fields, string(OperationKey), op)
	}

	if key := GetFilterKey(ctx); key != "" {
		fields = append(fields, string(FilterKeyKey), key)
	}

	if user := GetUser(ctx); user != "" {
		fields = append(fields, string(UserKey), user)
	}

	return fields
}
