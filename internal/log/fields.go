// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldTaskID    = "task_id"
	FieldTraceID   = "trace_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// File fields
	FieldFilename   = "filename"
	FieldStoredName = "stored_name"
	FieldBytes      = "bytes"
	FieldPath       = "path"

	// Network fields
	FieldBaseURL    = "base_url"
	FieldRemoteAddr = "remote_addr"
	FieldStatus     = "status"
	FieldDuration   = "duration_ms"
)
