// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package sse implements the server-sent events wire format used by the
// relay's event stream and read by the upload client.
package sse

import "time"

// ContentType is the media type of an event stream.
const ContentType = "text/event-stream"

// Event is one dispatched server-sent event.
type Event struct {
	ID    string
	Type  string
	Data  []byte
	Retry time.Duration
}
