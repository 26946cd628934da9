// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package relay

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/ManuGH/footage/internal/contract"
	"github.com/ManuGH/footage/internal/log"
	"github.com/ManuGH/footage/internal/metrics"
	"github.com/ManuGH/footage/internal/sse"
	"github.com/ManuGH/footage/internal/tasks"
	"github.com/go-chi/chi/v5"
)

// handleEvents streams a task: its stored state first, then live events,
// closing after the first completed or error event.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "task_id")
	ctx := log.ContextWithTaskID(r.Context(), id)
	logger := log.WithComponentFromContext(ctx, "events")

	stream, err := s.deps.Hub.Subscribe(ctx, id)
	if errors.Is(err, tasks.ErrNotFound) {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		logger.Error().Err(err).Msg("subscribe failed")
		writeError(w, http.StatusInternalServerError, "failed to open event stream")
		return
	}
	defer func() { _ = stream.Close() }()

	sw, err := sse.NewWriter(w)
	if err != nil {
		logger.Error().Err(err).Msg("response cannot stream")
		return
	}

	metrics.EventSubscribers.Inc()
	defer metrics.EventSubscribers.Dec()

	send := func(ev contract.ProgressEvent) bool {
		if err := sw.JSON(ev); err != nil {
			logger.Debug().Err(err).Msg("subscriber went away")
			return false
		}
		metrics.EventsSentTotal.Inc()
		return true
	}

	for {
		nctx, cancel := context.WithTimeout(ctx, s.cfg.KeepAlive)
		ev, err := stream.Next(nctx)
		cancel()

		switch {
		case err == nil:
			if !send(ev) {
				return
			}
		case errors.Is(err, io.EOF):
			return
		case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
			// Quiet period: pick up a terminal state whose live event was
			// dropped, otherwise keep the connection warm.
			if final, ok := stream.Resync(ctx); ok {
				send(final)
				return
			}
			if err := sw.Comment("ping"); err != nil {
				return
			}
		case errors.Is(err, tasks.ErrStreamClosed):
			if final, ok := stream.Resync(ctx); ok {
				send(final)
			}
			return
		default:
			return
		}
	}
}

func (s *Server) handleTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.deps.Hub.Get(r.Context(), chi.URLParam(r, "task_id"))
	if errors.Is(err, tasks.ErrNotFound) {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load task")
		return
	}
	writeJSON(w, http.StatusOK, task)
}
