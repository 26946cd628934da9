// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package log provides structured logging utilities.
package log

import (
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

type ctxKey string

const (
	requestIDKey ctxKey = FieldRequestID
	taskIDKey    ctxKey = FieldTaskID
)

// ContextWithRequestID stores the HTTP request ID in the context.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return withValue(ctx, requestIDKey, id)
}

// ContextWithTaskID stores the processing task ID in the context.
func ContextWithTaskID(ctx context.Context, id string) context.Context {
	return withValue(ctx, taskIDKey, id)
}

func RequestIDFromContext(ctx context.Context) string { return stringFromContext(ctx, requestIDKey) }

func TaskIDFromContext(ctx context.Context) string { return stringFromContext(ctx, taskIDKey) }

func withValue(ctx context.Context, key ctxKey, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, id)
}

func stringFromContext(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}

// WithContext adds request_id, task_id and trace_id from ctx to logger.
// The trace ID comes from the active OpenTelemetry span, sampled or not.
func WithContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	if ctx == nil {
		return logger
	}
	fields := map[string]any{}
	if rid := RequestIDFromContext(ctx); rid != "" {
		fields[FieldRequestID] = rid
	}
	if tid := TaskIDFromContext(ctx); tid != "" {
		fields[FieldTaskID] = tid
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		fields[FieldTraceID] = sc.TraceID().String()
	}
	if len(fields) == 0 {
		return logger
	}
	return logger.With().Fields(fields).Logger()
}

// WithComponentFromContext is WithContext applied to WithComponent(component).
func WithComponentFromContext(ctx context.Context, component string) zerolog.Logger {
	return WithContext(ctx, WithComponent(component))
}
