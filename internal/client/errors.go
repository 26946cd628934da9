// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package client

import (
	"errors"
	"fmt"
)

// Default messages shown when the relay gives no better one.
const (
	MsgNoFile          = "no file selected"
	MsgUploadFailed    = "upload failed"
	MsgProcessFailed   = "processing failed"
	MsgConnectionError = "connection error while processing video"
)

var (
	// ErrNoFile is wrapped by the ValidationError returned when nothing is selected.
	ErrNoFile = errors.New(MsgNoFile)
	// ErrSuperseded is returned by work that a newer selection replaced.
	ErrSuperseded = errors.New("session superseded by a new selection")
	// ErrTimeout marks an upload or stream that ran past its deadline.
	ErrTimeout = errors.New("timed out")
)

// ValidationError rejects a submit before any network call.
type ValidationError struct {
	Message string
	Err     error
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return e.Err }

// UploadError is a failed POST /upload. Status is zero for transport failures.
type UploadError struct {
	Status  int
	Message string
	Err     error
}

func (e *UploadError) Error() string { return e.Message }

func (e *UploadError) Unwrap() error { return e.Err }

// Detail includes the status code and cause, for logs.
func (e *UploadError) Detail() string {
	msg := e.Message
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// StreamError is a transport failure of the event stream. Users only ever
// see the generic message; the cause stays in Err.
type StreamError struct {
	Status int
	Err    error
}

func (e *StreamError) Error() string { return MsgConnectionError }

func (e *StreamError) Unwrap() error { return e.Err }

// ProcessingError carries the message of an error event from the relay.
type ProcessingError struct {
	Message string
}

func (e *ProcessingError) Error() string { return e.Message }
