// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Span attribute keys.
const (
	TaskIDKey     = "footage.task_id"
	TaskStatusKey = "footage.task_status"
	FilenameKey   = "footage.filename"
	BytesKey      = "footage.bytes"
	FramesKey     = "footage.frames"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// TaskAttributes describes a processing task.
func TaskAttributes(taskID, filename string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 2)
	if taskID != "" {
		attrs = append(attrs, attribute.String(TaskIDKey, taskID))
	}
	if filename != "" {
		attrs = append(attrs, attribute.String(FilenameKey, filename))
	}
	return attrs
}

// ResultAttributes describes the outcome of a task.
func ResultAttributes(status string, bytes int64, frames int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(TaskStatusKey, status),
		attribute.Int64(BytesKey, bytes),
		attribute.Int(FramesKey, frames),
	}
}

// ErrorAttributes marks a span as failed with errorType.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
