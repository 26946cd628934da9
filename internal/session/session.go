// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package session drives one upload-and-track flow: a selected file is
// uploaded, then its processing events are followed until the relay reports
// completion or an error.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ManuGH/footage/internal/client"
	"github.com/ManuGH/footage/internal/contract"
	"github.com/ManuGH/footage/internal/log"
	"github.com/rs/zerolog"
)

var (
	// ErrBusy is returned by Submit while an upload or tracking is running.
	ErrBusy = errors.New("session already submitted")
	// ErrClosed is returned by Submit after Close.
	ErrClosed = errors.New("session closed")
)

// Stream is an open event subscription.
type Stream interface {
	Next() (contract.ProgressEvent, error)
	Close() error
}

// Transport performs the network side of a session.
type Transport interface {
	Upload(ctx context.Context, f client.File, progress client.ProgressFunc) (string, error)
	Subscribe(ctx context.Context, taskID string) (Stream, error)
	ResultURL(ev contract.ProgressEvent, filename string) string
}

// FromClient adapts a relay client.
func FromClient(c *client.Client) Transport { return clientTransport{c} }

type clientTransport struct{ *client.Client }

func (t clientTransport) Subscribe(ctx context.Context, taskID string) (Stream, error) {
	sub, err := t.Client.Subscribe(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// Observer receives a snapshot after every change. Observers run in order
// on the goroutine that made the change and must not call back into the
// session.
type Observer func(Snapshot)

// Options bound the network phases. Zero means no limit.
type Options struct {
	UploadTimeout time.Duration
	StreamTimeout time.Duration
}

// Session holds one user's upload. All methods are safe for concurrent use.
type Session struct {
	transport Transport
	opts      Options
	logger    zerolog.Logger

	mu     sync.Mutex
	snap   Snapshot
	file   *client.File
	gen    uint64
	stream Stream
	cancel context.CancelFunc
	closed bool

	notifyMu  sync.Mutex
	observers []Observer
}

// New returns an idle session.
func New(t Transport, opts Options) *Session {
	return &Session{
		transport: t,
		opts:      opts,
		logger:    log.WithComponent("session"),
	}
}

// Observe registers fn for future snapshots.
func (s *Session) Observe(fn Observer) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.observers = append(s.observers, fn)
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Select makes f the session's file and starts over: the session returns to
// Idle and any running upload or subscription is abandoned.
func (s *Session) Select(f client.File) {
	s.mu.Lock()
	s.abandonLocked()
	s.file = &f
	s.snap = Snapshot{State: Idle, File: f.Name, Size: f.Size}
	s.publishLocked()
}

// Close tears the session down. Later Submits fail with ErrClosed.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.abandonLocked()
	return nil
}

// abandonLocked bumps the generation, so in-flight work of the old one
// discards its results, and releases the old subscription.
func (s *Session) abandonLocked() {
	s.gen++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.closeStreamLocked()
}

func (s *Session) closeStreamLocked() {
	if s.stream != nil {
		if err := s.stream.Close(); err != nil {
			s.logger.Debug().Err(err).Msg("closing event stream")
		}
		s.stream = nil
	}
}

// publishLocked hands the current snapshot to observers and releases mu.
// notifyMu is taken before mu is released so observers see changes in order.
func (s *Session) publishLocked() {
	snap := s.snap
	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()
	for _, fn := range s.observers {
		fn(snap)
	}
}

// update applies fn when gen is still current and publishes the result.
func (s *Session) update(gen uint64, fn func(*Snapshot)) bool {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return false
	}
	fn(&s.snap)
	s.publishLocked()
	return true
}

// Submit uploads the selected file and follows its processing until the
// relay reports a terminal state. It returns nil when the session ends in
// Done, the failure that moved it to Failed otherwise, and ErrSuperseded if
// a new selection replaced it midway.
func (s *Session) Submit(ctx context.Context) error {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return ErrClosed
	case s.snap.State == Uploading || s.snap.State == Tracking:
		s.mu.Unlock()
		return ErrBusy
	case s.file == nil:
		err := &client.ValidationError{Message: client.MsgNoFile, Err: client.ErrNoFile}
		s.snap = Snapshot{State: Idle, Message: err.Message, Err: err}
		s.publishLocked()
		return err
	}

	f := *s.file
	gen := s.gen
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.snap = Snapshot{State: Uploading, File: f.Name, Size: f.Size, BytesTotal: f.Size, Message: "Uploading"}
	s.publishLocked()
	defer cancel()

	logger := s.logger.With().Str(log.FieldFilename, f.Name).Logger()

	taskID, err := s.upload(ctx, gen, f)
	if err != nil {
		return s.fail(gen, err, uploadMessage(err))
	}
	logger.Info().Str(log.FieldTaskID, taskID).Msg("upload accepted")

	if !s.update(gen, func(snap *Snapshot) {
		snap.State = Tracking
		snap.TaskID = taskID
		snap.BytesSent = snap.BytesTotal
		snap.Message = "Processing video"
	}) {
		return client.ErrSuperseded
	}
	return s.track(ctx, gen, f, taskID)
}

// Follow tracks a task that was uploaded earlier, for example by another
// client. filename feeds the result URL fallback and may be empty.
func (s *Session) Follow(ctx context.Context, taskID, filename string) error {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return ErrClosed
	case s.snap.State == Uploading || s.snap.State == Tracking:
		s.mu.Unlock()
		return ErrBusy
	}
	s.abandonLocked()
	gen := s.gen
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.file = nil
	s.snap = Snapshot{State: Tracking, File: filename, TaskID: taskID, Message: "Processing video"}
	s.publishLocked()
	defer cancel()

	return s.track(ctx, gen, client.File{Name: filename}, taskID)
}

func (s *Session) upload(ctx context.Context, gen uint64, f client.File) (string, error) {
	if s.opts.UploadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.UploadTimeout)
		defer cancel()
	}
	id, err := s.transport.Upload(ctx, f, func(sent, total int64) {
		s.update(gen, func(snap *Snapshot) {
			snap.BytesSent = sent
			if total > 0 {
				snap.BytesTotal = total
			}
		})
	})
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = &client.UploadError{Message: "upload timed out", Err: errors.Join(client.ErrTimeout, err)}
	}
	return id, err
}

func (s *Session) track(ctx context.Context, gen uint64, f client.File, taskID string) error {
	if s.opts.StreamTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.StreamTimeout)
		defer cancel()
	}

	stream, err := s.transport.Subscribe(ctx, taskID)
	if err != nil {
		return s.fail(gen, s.streamFailure(ctx, err), client.MsgConnectionError)
	}
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		_ = stream.Close()
		return client.ErrSuperseded
	}
	s.stream = stream
	s.mu.Unlock()

	// Closing the stream is what unblocks Next when the deadline passes.
	stop := context.AfterFunc(ctx, func() { _ = stream.Close() })
	defer stop()

	for {
		ev, err := stream.Next()
		if err != nil {
			if !s.current(gen) {
				return client.ErrSuperseded
			}
			err = s.streamFailure(ctx, err)
			msg := client.MsgConnectionError
			if errors.Is(err, client.ErrTimeout) {
				msg = "processing timed out"
			}
			return s.fail(gen, err, msg)
		}

		var result error
		applied := s.apply(gen, func(snap *Snapshot) {
			snap.Message = ev.Message
			if ev.Progress != nil {
				snap.Progress = *ev.Progress
				snap.HasProgress = true
			}
			if ev.Frames != nil {
				snap.Frames = &FrameProgress{Processed: ev.Frames.FramesProcessed, Total: ev.Frames.TotalFrames, FPS: ev.Frames.FPS}
			}
			switch ev.Status {
			case contract.StatusCompleted:
				snap.State = Done
				snap.ResultURL = s.transport.ResultURL(ev, f.Name)
			case contract.StatusError:
				msg := ev.Message
				if msg == "" {
					msg = client.MsgProcessFailed
				}
				result = &client.ProcessingError{Message: msg}
				snap.State = Failed
				snap.Message = msg
				snap.Err = result
			}
		})
		if !applied {
			return client.ErrSuperseded
		}
		if ev.Terminal() {
			return result
		}
	}
}

// apply folds one event into the snapshot, closing the stream in the same
// critical section when the event is terminal.
func (s *Session) apply(gen uint64, fn func(*Snapshot)) bool {
	s.mu.Lock()
	if gen != s.gen || s.snap.State.Terminal() {
		s.mu.Unlock()
		return false
	}
	fn(&s.snap)
	if s.snap.State.Terminal() {
		s.closeStreamLocked()
		s.cancel = nil
	}
	s.publishLocked()
	return true
}

func (s *Session) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen == s.gen
}

func (s *Session) streamFailure(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &client.StreamError{Err: errors.Join(client.ErrTimeout, err)}
	}
	var se *client.StreamError
	if errors.As(err, &se) {
		return se
	}
	return &client.StreamError{Err: err}
}

// fail moves the session to Failed with msg, unless it was superseded.
func (s *Session) fail(gen uint64, err error, msg string) error {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return client.ErrSuperseded
	}
	s.closeStreamLocked()
	s.cancel = nil
	s.snap.State = Failed
	s.snap.Message = msg
	s.snap.Err = err
	s.logger.Warn().Err(err).Str("state", Failed.String()).Msg(msg)
	s.publishLocked()
	return err
}

func uploadMessage(err error) string {
	var ue *client.UploadError
	if errors.As(err, &ue) && ue.Message != "" {
		return ue.Message
	}
	var ve *client.ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	return client.MsgUploadFailed
}
