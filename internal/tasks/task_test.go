// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package tasks

import (
	"testing"
	"time"

	"github.com/ManuGH/footage/internal/contract"
	"github.com/stretchr/testify/assert"
)

func TestTaskApply(t *testing.T) {
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	task := NewTask("t1", "match.mp4", "match.mp4", now)
	assert.Equal(t, contract.StatusQueued, task.Status)

	assert.True(t, task.Apply(contract.ProgressEvent{Message: "Step 2", Progress: contract.Percent(40)}, now.Add(time.Second)))
	assert.Equal(t, contract.StatusRunning, task.Status)
	assert.InDelta(t, 40, task.Progress, 0.001)
	assert.Equal(t, "Step 2", task.Message)

	// Progress is last-write-wins and may go backwards.
	assert.True(t, task.Apply(contract.ProgressEvent{Message: "Rewind", Progress: contract.Percent(10)}, now))
	assert.InDelta(t, 10, task.Progress, 0.001)

	// A message without progress keeps the last value.
	assert.True(t, task.Apply(contract.ProgressEvent{Message: "Still going"}, now))
	assert.InDelta(t, 10, task.Progress, 0.001)

	assert.True(t, task.Apply(contract.ProgressEvent{Message: "Done", Status: contract.StatusCompleted, ResultURL: "http://x/processed_match.mp4"}, now))
	assert.True(t, task.Terminal())
	assert.Equal(t, "http://x/processed_match.mp4", task.ResultURL)

	assert.False(t, task.Apply(contract.ProgressEvent{Message: "late", Status: contract.StatusError}, now))
	assert.Equal(t, contract.StatusCompleted, task.Status)
	assert.Equal(t, "Done", task.Message)
}

func TestTaskApplyError(t *testing.T) {
	task := NewTask("t1", "a.mp4", "a.mp4", time.Now())
	task.Apply(contract.ProgressEvent{Message: "bad frame", Status: contract.StatusError}, time.Now())
	assert.Equal(t, contract.StatusError, task.Status)
	assert.Equal(t, "bad frame", task.Error)

	ev := task.Event()
	assert.True(t, ev.Terminal())
	assert.Equal(t, "t1", ev.TaskID)
}
