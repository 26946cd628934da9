// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

// State is the lifecycle position of a session.
type State int

const (
	Idle State = iota
	Uploading
	Tracking
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Uploading:
		return "uploading"
	case Tracking:
		return "tracking"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the session reached Done or Failed.
func (s State) Terminal() bool { return s == Done || s == Failed }

// Snapshot is a read-only copy of the session for renderers.
type Snapshot struct {
	State State
	File  string
	Size  int64

	BytesSent  int64
	BytesTotal int64

	TaskID      string
	Progress    float64
	HasProgress bool
	Message     string
	Frames      *FrameProgress

	ResultURL string
	Err       error
}

// FrameProgress mirrors the frame counters of the last event.
type FrameProgress struct {
	Processed int
	Total     int
	FPS       float64
}
