// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package processor

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/footage/internal/bus"
	"github.com/ManuGH/footage/internal/contract"
	"github.com/ManuGH/footage/internal/tasks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type recorder struct {
	mu     sync.Mutex
	events []contract.ProgressEvent
}

func (r *recorder) Report(_ context.Context, ev contract.ProgressEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) all() []contract.ProgressEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]contract.ProgressEvent(nil), r.events...)
}

type fakeProber struct {
	props contract.VideoProperties
	err   error
}

func (f fakeProber) Available() bool { return true }

func (f fakeProber) Probe(context.Context, string) (contract.VideoProperties, error) {
	return f.props, f.err
}

func writeInput(t *testing.T, dir, name string, size int) []byte {
	t.Helper()
	data := bytes.Repeat([]byte("v"), size)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o600))
	return data
}

func TestAnnotatorCopiesWithFrameProgress(t *testing.T) {
	dir := t.TempDir()
	data := writeInput(t, dir, "match.mp4", 40)

	a := NewAnnotator(fakeProber{props: contract.VideoProperties{Width: 1280, Height: 720, FPS: 25, TotalFrames: 100}}, 10, 0)
	rec := &recorder{}
	res, err := a.Process(context.Background(), Job{
		TaskID: "t1", StoredName: "match.mp4", Dir: dir, OutputName: "processed_match.mp4",
	}, rec)
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(dir, "processed_match.mp4"))
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.EqualValues(t, 40, res.Bytes)
	assert.Equal(t, 100, res.FramesProcessed)
	require.NotNil(t, res.Properties)
	assert.Equal(t, 25.0, res.Properties.FPS)

	events := rec.all()
	require.Len(t, events, 6, "start, probed, and one per chunk")
	last := events[len(events)-1]
	require.NotNil(t, last.Frames)
	assert.Equal(t, 100, last.Frames.FramesProcessed)
	assert.Equal(t, "Processing frame 100/100", last.Message)
	assert.InDelta(t, copyDone, *last.Progress, 0.001)

	prev := -1.0
	for _, ev := range events {
		assert.Empty(t, ev.Status, "processor never emits terminal states")
		require.NotNil(t, ev.Progress)
		assert.GreaterOrEqual(t, *ev.Progress, prev)
		prev = *ev.Progress
	}
}

func TestAnnotatorByteProgressWithoutProbe(t *testing.T) {
	dir := t.TempDir()
	writeInput(t, dir, "a.mp4", 8)

	a := NewAnnotator(fakeProber{err: errors.New("no ffprobe here")}, 4, 0)
	rec := &recorder{}
	res, err := a.Process(context.Background(), Job{StoredName: "a.mp4", Dir: dir, OutputName: "processed_a.mp4"}, rec)
	require.NoError(t, err)
	assert.Nil(t, res.Properties)

	events := rec.all()
	assert.Equal(t, "Processing video (100%)", events[len(events)-1].Message)
	assert.Nil(t, events[len(events)-1].Frames)
}

func TestAnnotatorMissingInput(t *testing.T) {
	a := NewAnnotator(nil, 0, 0)
	_, err := a.Process(context.Background(), Job{StoredName: "nope.mp4", Dir: t.TempDir(), OutputName: "out.mp4"}, nil)
	require.ErrorIs(t, err, ErrInputMissing)
}

func TestAnnotatorCancelLeavesNoOutput(t *testing.T) {
	dir := t.TempDir()
	writeInput(t, dir, "a.mp4", 64)

	a := NewAnnotator(nil, 1, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	r := ReporterFunc(func(_ context.Context, ev contract.ProgressEvent) {
		if ev.Progress != nil && *ev.Progress > probeDone {
			cancel()
		}
	})
	_, err := a.Process(ctx, Job{StoredName: "a.mp4", Dir: dir, OutputName: "processed_a.mp4"}, r)
	require.ErrorIs(t, err, context.Canceled)
	_, statErr := os.Stat(filepath.Join(dir, "processed_a.mp4"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestThrottlePassesStatusEvents(t *testing.T) {
	rec := &recorder{}
	r := Throttle(rec, time.Hour)
	ctx := context.Background()

	r.Report(ctx, contract.ProgressEvent{Message: "a"})
	r.Report(ctx, contract.ProgressEvent{Message: "b"})
	r.Report(ctx, contract.ProgressEvent{Message: "c", Status: contract.StatusRunning})

	var msgs []string
	for _, ev := range rec.all() {
		msgs = append(msgs, ev.Message)
	}
	assert.Equal(t, []string{"a", "c"}, msgs)
	assert.Same(t, Reporter(rec), Throttle(rec, 0))
}

type blockingProcessor struct {
	started chan string
	release chan struct{}
}

func (b *blockingProcessor) Process(ctx context.Context, job Job, _ Reporter) (Result, error) {
	b.started <- job.TaskID
	select {
	case <-b.release:
		return Result{OutputName: job.OutputName}, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func newHub(t *testing.T) *tasks.Hub {
	t.Helper()
	b := bus.NewMemoryBus(16)
	t.Cleanup(func() { _ = b.Close() })
	return tasks.NewHub(tasks.NewMemoryStore(), b)
}

func waitStatus(t *testing.T, hub *tasks.Hub, id, status string) tasks.Task {
	t.Helper()
	var task tasks.Task
	require.Eventually(t, func() bool {
		var err error
		task, err = hub.Get(context.Background(), id)
		return err == nil && task.Status == status
	}, 2*time.Second, 10*time.Millisecond)
	return task
}

func TestPoolCompletesTask(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	hub := newHub(t)
	dir := t.TempDir()
	writeInput(t, dir, "m.mp4", 16)

	task, err := hub.Create(context.Background(), "m.mp4", "m.mp4")
	require.NoError(t, err)

	pool := NewPool(hub, NewAnnotator(fakeProber{props: contract.VideoProperties{FPS: 30, TotalFrames: 60}}, 4, 0), PoolConfig{Workers: 2, QueueSize: 4})
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = pool.Run(ctx) }()
	defer func() { cancel(); <-pool.Done() }()

	require.NoError(t, pool.Submit(Job{
		TaskID: task.ID, StoredName: "m.mp4", Dir: dir, OutputName: "processed_m.mp4",
		ResultURL: "http://relay/uploads/processed_m.mp4",
	}))

	done := waitStatus(t, hub, task.ID, contract.StatusCompleted)
	assert.Equal(t, "http://relay/uploads/processed_m.mp4", done.ResultURL)
	assert.Equal(t, 100.0, done.Progress)
	require.NotNil(t, done.Properties)
	assert.Equal(t, 60, done.Properties.TotalFrames)
	assert.FileExists(t, filepath.Join(dir, "processed_m.mp4"))
}

func TestPoolReportsFailure(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	hub := newHub(t)
	task, err := hub.Create(context.Background(), "gone.mp4", "gone.mp4")
	require.NoError(t, err)

	pool := NewPool(hub, NewAnnotator(nil, 0, 0), PoolConfig{Workers: 1})
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = pool.Run(ctx) }()
	defer func() { cancel(); <-pool.Done() }()

	require.NoError(t, pool.Submit(Job{TaskID: task.ID, StoredName: "gone.mp4", Dir: t.TempDir(), OutputName: "x"}))
	failed := waitStatus(t, hub, task.ID, contract.StatusError)
	assert.Equal(t, "uploaded file is missing", failed.Message)
}

func TestPoolTimeout(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	hub := newHub(t)
	task, err := hub.Create(context.Background(), "slow.mp4", "slow.mp4")
	require.NoError(t, err)

	proc := &blockingProcessor{started: make(chan string, 1), release: make(chan struct{})}
	pool := NewPool(hub, proc, PoolConfig{Workers: 1, TaskTimeout: 50 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = pool.Run(ctx) }()
	defer func() { cancel(); <-pool.Done() }()

	require.NoError(t, pool.Submit(Job{TaskID: task.ID}))
	failed := waitStatus(t, hub, task.ID, contract.StatusError)
	assert.Equal(t, "processing timed out", failed.Message)
}

func TestPoolOrderAndBounds(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	hub := newHub(t)
	proc := &blockingProcessor{started: make(chan string, 4), release: make(chan struct{})}
	pool := NewPool(hub, proc, PoolConfig{Workers: 1, QueueSize: 2})

	var ids []string
	for i := 0; i < 3; i++ {
		task, err := hub.Create(context.Background(), "f.mp4", "f.mp4")
		require.NoError(t, err)
		ids = append(ids, task.ID)
	}

	require.NoError(t, pool.Submit(Job{TaskID: ids[0]}))
	require.ErrorIs(t, pool.Submit(Job{TaskID: ids[0]}), ErrDuplicate)
	require.NoError(t, pool.Submit(Job{TaskID: ids[1]}))
	require.ErrorIs(t, pool.Submit(Job{TaskID: ids[2]}), ErrQueueFull)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = pool.Run(ctx) }()

	assert.Equal(t, ids[0], <-proc.started)
	select {
	case id := <-proc.started:
		t.Fatalf("second job %s started while the only worker was busy", id)
	case <-time.After(50 * time.Millisecond):
	}
	proc.release <- struct{}{}
	assert.Equal(t, ids[1], <-proc.started)
	proc.release <- struct{}{}

	waitStatus(t, hub, ids[1], contract.StatusCompleted)
	cancel()
	<-pool.Done()
	require.ErrorIs(t, pool.Submit(Job{TaskID: ids[2]}), ErrPoolClosed)
}

func TestPoolShutdownFailsQueuedJobs(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	hub := newHub(t)
	proc := &blockingProcessor{started: make(chan string, 2), release: make(chan struct{})}
	pool := NewPool(hub, proc, PoolConfig{Workers: 1, QueueSize: 2})

	a, err := hub.Create(context.Background(), "a.mp4", "a.mp4")
	require.NoError(t, err)
	b, err := hub.Create(context.Background(), "b.mp4", "b.mp4")
	require.NoError(t, err)
	require.NoError(t, pool.Submit(Job{TaskID: a.ID}))
	require.NoError(t, pool.Submit(Job{TaskID: b.ID}))

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = pool.Run(ctx) }()
	<-proc.started
	cancel()
	<-pool.Done()

	ta, err := hub.Get(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, contract.StatusError, ta.Status)
	assert.Equal(t, "processing cancelled", ta.Message)

	tb, err := hub.Get(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, contract.StatusError, tb.Status)
	assert.Equal(t, "server shutting down", tb.Message)
}
