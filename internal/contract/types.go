// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package contract defines the wire types shared by the relay and the upload
// client, and embeds the OpenAPI description of the relay.
package contract

import "time"

// Event status values. Only StatusCompleted and StatusError are terminal.
const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusError     = "error"
)

// Multipart field names.
const (
	UploadField       = "file"
	LegacyUploadField = "video"
)

// ProgressEvent is one message on the task event stream.
type ProgressEvent struct {
	Message  string   `json:"message"`
	Progress *float64 `json:"progress,omitempty"`
	Status   string   `json:"status,omitempty"`

	TaskID    string              `json:"task_id,omitempty"`
	ResultURL string              `json:"result_url,omitempty"`
	Frames    *ProcessingProgress `json:"frames,omitempty"`
}

// Terminal reports whether the event ends the stream.
func (e ProgressEvent) Terminal() bool {
	return IsTerminal(e.Status)
}

// IsTerminal reports whether status ends a task.
func IsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusError
}

// Percent returns a pointer to p, for building events.
func Percent(p float64) *float64 {
	return &p
}

// UploadResponse is returned by POST /upload.
type UploadResponse struct {
	TaskID string `json:"task_id"`
}

// ErrorResponse is the JSON error envelope of the relay.
type ErrorResponse struct {
	Error string `json:"error"`
}

// DetectRequest is the body of POST /detect.
type DetectRequest struct {
	VideoURL string `json:"videoUrl"`
}

// VideoProcessingResponse is returned by POST /detect.
type VideoProcessingResponse struct {
	Success           bool     `json:"success"`
	AnnotatedVideoURL string   `json:"annotatedVideoUrl,omitempty"`
	ProcessingTime    *float64 `json:"processingTime,omitempty"`
	TotalFrames       *int     `json:"totalFrames,omitempty"`
	Error             string   `json:"error,omitempty"`
}

// VideoProperties describes a probed video.
type VideoProperties struct {
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	FPS         float64 `json:"fps"`
	TotalFrames int     `json:"totalFrames"`
}

// Duration returns the nominal play time, or zero when fps is unknown.
func (p VideoProperties) Duration() time.Duration {
	if p.FPS <= 0 {
		return 0
	}
	return time.Duration(float64(p.TotalFrames) / p.FPS * float64(time.Second))
}

// ProcessingProgress is frame-based progress of a running analysis.
type ProcessingProgress struct {
	FramesProcessed int     `json:"framesProcessed"`
	TotalFrames     int     `json:"totalFrames"`
	FPS             float64 `json:"fps"`
	Progress        float64 `json:"progress"`
}

// LegacyUploadResponse is returned by POST /api/uploadVideo.
type LegacyUploadResponse struct {
	Message  string `json:"message"`
	VideoURL string `json:"videoUrl"`
}
