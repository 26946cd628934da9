// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import "errors"

var (
	// ErrMissingHub is returned when the app is built without a task hub.
	ErrMissingHub = errors.New("task hub is required")

	// ErrMissingPool is returned when the app is built without a processing pool.
	ErrMissingPool = errors.New("processing pool is required")

	// ErrMissingHandler is returned when the HTTP handler is not provided.
	ErrMissingHandler = errors.New("HTTP handler is required")

	// ErrMissingListener is returned when no listener was opened.
	ErrMissingListener = errors.New("listener is required")

	// ErrAlreadyRunning is returned by a second Run.
	ErrAlreadyRunning = errors.New("app already running")
)
