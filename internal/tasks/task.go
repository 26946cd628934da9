// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package tasks tracks processing tasks: their persisted state and the live
// event fan-out to stream subscribers.
package tasks

import (
	"time"

	"github.com/ManuGH/footage/internal/contract"
)

// Task is the relay-side record of one uploaded video being processed.
type Task struct {
	ID         string                       `json:"id"`
	Filename   string                       `json:"filename"`
	StoredName string                       `json:"stored_name,omitempty"`
	Status     string                       `json:"status"`
	Progress   float64                      `json:"progress"`
	Message    string                       `json:"message,omitempty"`
	ResultURL  string                       `json:"result_url,omitempty"`
	Properties *contract.VideoProperties    `json:"properties,omitempty"`
	Frames     *contract.ProcessingProgress `json:"frames,omitempty"`
	Error      string                       `json:"error,omitempty"`
	CreatedAt  time.Time                    `json:"created_at"`
	UpdatedAt  time.Time                    `json:"updated_at"`
}

// NewTask returns a queued task.
func NewTask(id, filename, storedName string, now time.Time) Task {
	now = now.UTC()
	return Task{
		ID:         id,
		Filename:   filename,
		StoredName: storedName,
		Status:     contract.StatusQueued,
		Message:    "Queued for processing",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Terminal reports whether the task has completed or failed.
func (t Task) Terminal() bool {
	return contract.IsTerminal(t.Status)
}

// Apply folds ev into the task, last write wins. Terminal tasks never change;
// Apply reports whether ev was applied.
func (t *Task) Apply(ev contract.ProgressEvent, now time.Time) bool {
	if t.Terminal() {
		return false
	}
	t.Message = ev.Message
	if ev.Progress != nil {
		t.Progress = *ev.Progress
	}
	if ev.Frames != nil {
		f := *ev.Frames
		t.Frames = &f
	}
	switch ev.Status {
	case contract.StatusCompleted:
		t.Status = contract.StatusCompleted
		t.ResultURL = ev.ResultURL
	case contract.StatusError:
		t.Status = contract.StatusError
		t.Error = ev.Message
	case contract.StatusQueued, contract.StatusRunning:
		t.Status = ev.Status
	default:
		if t.Status == contract.StatusQueued {
			t.Status = contract.StatusRunning
		}
	}
	t.UpdatedAt = now.UTC()
	return true
}

// Event renders the task state as the event replayed to new subscribers.
func (t Task) Event() contract.ProgressEvent {
	ev := contract.ProgressEvent{
		Message:   t.Message,
		Progress:  contract.Percent(t.Progress),
		Status:    t.Status,
		TaskID:    t.ID,
		ResultURL: t.ResultURL,
	}
	if t.Frames != nil {
		f := *t.Frames
		ev.Frames = &f
	}
	return ev
}
