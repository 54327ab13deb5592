package events

import (
	"context"
)

type contextKey int

const (
	loggerKey contextKey = iota
	requestIDKey
	tenantIDKey
	logNameKey
)

// FromContext extracts logger from context.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerKey).(*Logger); ok {
		return l
	}
	// Return default logger
	return defaultLogger
}

// WithLogger adds logger to context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// WithRequestID adds request ID to context.
func WithRequestID(ctx context.Context, id string) context.Context {
	logger := FromContext(ctx).WithField("request_id", id)
	ctx = context.WithValue(ctx, requestIDKey, id)
	return WithLogger(ctx, logger)
}

// WithTenantID adds tenant ID to context.
func WithTenantID(ctx context.Context, id string) context.Context {
	logger := FromContext(ctx).WithField("tenant_id", id)
	ctx = context.WithValue(ctx, tenantIDKey, id)
	return WithLogger(ctx, logger)
}

// WithLogName adds the log name to context.
func WithLogName(ctx context.Context, name string) context.Context {
	logger := FromContext(ctx).WithField("log_name", name)
	ctx = context.WithValue(ctx, logNameKey, name)
	return WithLogger(ctx, logger)
}

// GetRequestID retrieves request ID from context.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// GetTenantID retrieves tenant ID from context.
func GetTenantID(ctx context.Context) string {
	if id, ok := ctx.Value(tenantIDKey).(string); ok {
		return id
	}
	return ""
}

// GetLogName retrieves the log name from context.
func GetLogName(ctx context.Context) string {
	if name, ok := ctx.Value(logNameKey).(string); ok {
		return name
	}
	return ""
}
