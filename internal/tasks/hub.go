// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ManuGH/footage/internal/bus"
	"github.com/ManuGH/footage/internal/contract"
	"github.com/ManuGH/footage/internal/log"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const defaultPublishTimeout = 2 * time.Second

// ErrStreamClosed is returned by Stream.Next after Close or when the bus
// drops the subscription.
var ErrStreamClosed = errors.New("event stream closed")

// Hub persists task events and fans them out to subscribers. Every event is
// written to the store before it is published, so a subscriber that replays
// the stored state and then follows the bus misses nothing.
type Hub struct {
	store  Store
	bus    bus.Bus
	logger zerolog.Logger
	now    func() time.Time

	// PublishTimeout bounds how long a slow subscriber can hold up Emit.
	PublishTimeout time.Duration
}

// NewHub wires a store to a bus.
func NewHub(store Store, b bus.Bus) *Hub {
	return &Hub{
		store:          store,
		bus:            b,
		logger:         log.WithComponent("tasks"),
		now:            time.Now,
		PublishTimeout: defaultPublishTimeout,
	}
}

// Store returns the underlying store.
func (h *Hub) Store() Store { return h.store }

// Create registers a new queued task with a fresh id.
func (h *Hub) Create(ctx context.Context, filename, storedName string) (Task, error) {
	t := NewTask(uuid.NewString(), filename, storedName, h.now())
	if err := h.store.Create(ctx, t); err != nil {
		return Task{}, fmt.Errorf("create task: %w", err)
	}
	h.logger.Info().
		Str(log.FieldEvent, "task.created").
		Str(log.FieldTaskID, t.ID).
		Str(log.FieldFilename, filename).
		Msg("task created")
	return t, nil
}

// Get returns the stored task.
func (h *Hub) Get(ctx context.Context, id string) (Task, error) {
	return h.store.Get(ctx, id)
}

// SetProperties records probed video properties on the task.
func (h *Hub) SetProperties(ctx context.Context, id string, p contract.VideoProperties) error {
	_, err := h.store.Update(ctx, id, func(t *Task) error {
		t.Properties = &p
		t.UpdatedAt = h.now().UTC()
		return nil
	})
	return err
}

// Emit applies ev to the task and publishes it. Events for tasks that are
// already terminal are dropped and reported with applied=false.
func (h *Hub) Emit(ctx context.Context, id string, ev contract.ProgressEvent) (t Task, applied bool, err error) {
	t, err = h.store.Update(ctx, id, func(t *Task) error {
		applied = t.Apply(ev, h.now())
		return nil
	})
	if err != nil {
		return Task{}, false, fmt.Errorf("store event: %w", err)
	}
	if !applied {
		h.logger.Debug().
			Str(log.FieldTaskID, id).
			Str(log.FieldEvent, "task.event_ignored").
			Msg("event for finished task ignored")
		return t, false, nil
	}

	ev.TaskID = id
	payload, err := json.Marshal(ev)
	if err != nil {
		return t, true, fmt.Errorf("encode event: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, h.PublishTimeout)
	defer cancel()
	if err := h.bus.Publish(pctx, bus.TaskTopic(id), bus.Message(payload)); err != nil {
		// The store already holds the state; subscribers resync from it.
		h.logger.Warn().
			Err(err).
			Str(log.FieldTaskID, id).
			Str(log.FieldEvent, "task.publish_failed").
			Msg("failed to publish task event")
	}

	if t.Terminal() {
		h.logger.Info().
			Str(log.FieldEvent, "task.finished").
			Str(log.FieldTaskID, id).
			Str(log.FieldNewState, t.Status).
			Msg("task finished")
	}
	return t, true, nil
}

// Subscribe opens a stream for task id. The bus subscription is registered
// before the stored state is read, so the replayed snapshot and the live
// events together cover every transition. Events published between the two
// steps arrive again after the snapshot: a subscriber may see duplicates and
// a progress value older than the snapshot (60, 40, 60). Consumers apply
// events last-write-wins, and a terminal event still ends the stream.
func (h *Hub) Subscribe(ctx context.Context, id string) (*Stream, error) {
	sub, err := h.bus.Subscribe(ctx, bus.TaskTopic(id))
	if err != nil {
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	t, err := h.store.Get(ctx, id)
	if err != nil {
		_ = sub.Close()
		return nil, err
	}
	return &Stream{
		hub:      h,
		id:       id,
		sub:      sub,
		snapshot: t.Event(),
	}, nil
}

// Stream yields the replayed state of a task followed by its live events,
// and ends after the first terminal event.
type Stream struct {
	hub      *Hub
	id       string
	sub      bus.Subscriber
	snapshot contract.ProgressEvent

	replayed bool
	finished bool

	closeOnce sync.Once
	closeErr  error
}

// Next returns the next event. It returns io.EOF after a terminal event,
// ErrStreamClosed once the stream is closed, and ctx.Err() when ctx ends.
func (s *Stream) Next(ctx context.Context) (contract.ProgressEvent, error) {
	if s.finished {
		return contract.ProgressEvent{}, io.EOF
	}
	if !s.replayed {
		s.replayed = true
		s.finished = s.snapshot.Terminal()
		return s.snapshot, nil
	}
	for {
		select {
		case <-ctx.Done():
			return contract.ProgressEvent{}, ctx.Err()
		case msg, ok := <-s.sub.C():
			if !ok {
				return contract.ProgressEvent{}, ErrStreamClosed
			}
			var ev contract.ProgressEvent
			if err := json.Unmarshal(msg, &ev); err != nil {
				s.hub.logger.Warn().Err(err).Str(log.FieldTaskID, s.id).Msg("dropping undecodable task event")
				continue
			}
			s.finished = ev.Terminal()
			return ev, nil
		}
	}
}

// Resync returns the terminal event from the store when the task finished
// but the live event never arrived.
func (s *Stream) Resync(ctx context.Context) (contract.ProgressEvent, bool) {
	if s.finished {
		return contract.ProgressEvent{}, false
	}
	t, err := s.hub.store.Get(ctx, s.id)
	if err != nil || !t.Terminal() {
		return contract.ProgressEvent{}, false
	}
	s.finished = true
	return t.Event(), true
}

// Close releases the bus subscription. It is safe to call more than once.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.sub.Close()
	})
	return s.closeErr
}

// Sweep deletes tasks not updated within ttl.
func (h *Hub) Sweep(ctx context.Context, ttl time.Duration) (int, error) {
	n, err := h.store.DeleteBefore(ctx, h.now().Add(-ttl))
	if err != nil {
		return n, fmt.Errorf("sweep tasks: %w", err)
	}
	if n > 0 {
		h.logger.Info().Str(log.FieldEvent, "task.swept").Int("count", n).Msg("expired tasks removed")
	}
	return n, nil
}
