// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package daemon runs the relay: it wires the configured backends together
// and owns their lifecycle from startup to graceful shutdown.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ManuGH/footage/internal/config"
	"github.com/ManuGH/footage/internal/log"
	"github.com/ManuGH/footage/internal/relay"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	defaultHookTimeout = 30 * time.Second
	sweepInterval      = 10 * time.Minute
)

// ShutdownHook releases a resource. Hooks run in reverse registration order.
type ShutdownHook func(ctx context.Context) error

type namedHook struct {
	name string
	hook ShutdownHook
}

// App owns the long-lived parts of a relay process.
type App struct {
	logger       zerolog.Logger
	deps         Deps
	reloadSignal os.Signal

	mu      sync.Mutex
	hooks   []namedHook
	running bool
}

// NewApp validates deps and returns an App ready to Run.
func NewApp(deps Deps) (*App, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dependencies: %w", err)
	}
	a := &App{
		logger:       log.WithComponent("daemon"),
		deps:         deps,
		reloadSignal: syscall.SIGHUP,
	}
	if deps.Holder != nil {
		deps.Holder.OnReload(a.applyReload)
	}
	return a, nil
}

// RegisterShutdownHook adds a cleanup step run after the server stopped.
func (a *App) RegisterShutdownHook(name string, hook ShutdownHook) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.hooks = append(a.hooks, namedHook{name: name, hook: hook})
}

// applyReload pushes the settings that can change at runtime.
func (a *App) applyReload(old, updated config.AppConfig) {
	if old.LogLevel != updated.LogLevel {
		log.SetLevel(updated.LogLevel)
	}
	if a.deps.CORS != nil {
		a.deps.CORS.Update(updated.CORS.AllowedOrigins, updated.CORS.AllowCredentials)
	}
}

// Run serves until ctx is cancelled or a component fails, then drains the
// pool and runs the shutdown hooks.
func (a *App) Run(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return ErrAlreadyRunning
	}
	a.running = true
	a.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)

	// The watcher is best-effort; the relay runs fine on the startup config.
	if a.deps.Holder != nil {
		if err := a.deps.Holder.StartWatcher(gctx); err != nil {
			a.logger.Warn().Err(err).Str(log.FieldEvent, "config.watcher_start_failed").Msg("failed to start config watcher")
		}
		if a.reloadSignal != nil {
			g.Go(func() error {
				a.reloadOnSignal(gctx)
				return nil
			})
		}
	}

	g.Go(func() error {
		return a.deps.Pool.Run(gctx)
	})

	if ttl := a.deps.Config.Store.TTL; ttl > 0 {
		g.Go(func() error {
			a.sweep(gctx, ttl)
			return nil
		})
	}

	g.Go(func() error {
		err := relay.Serve(gctx, a.deps.Listener, a.deps.Handler, a.deps.HTTP)
		if err == nil && ctx.Err() == nil {
			err = errors.New("server stopped unexpectedly")
		}
		return err
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if hookErr := a.shutdown(ctx); hookErr != nil {
		err = errors.Join(err, hookErr)
	}
	return err
}

func (a *App) reloadOnSignal(ctx context.Context) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, a.reloadSignal)
	defer signal.Stop(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ch:
			a.logger.Info().
				Str(log.FieldEvent, "config.reload_signal").
				Str("signal", a.reloadSignal.String()).
				Msg("received reload signal, reloading config")
			if err := a.deps.Holder.Reload(ctx); err != nil {
				a.logger.Warn().Err(err).Str(log.FieldEvent, "config.reload_failed").Msg("config reload failed")
			}
		}
	}
}

// sweep drops expired tasks once at start and then periodically.
func (a *App) sweep(ctx context.Context, ttl time.Duration) {
	interval := min(sweepInterval, ttl)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := a.deps.Hub.Sweep(ctx, ttl); err != nil && ctx.Err() == nil {
			a.logger.Warn().Err(err).Str(log.FieldEvent, "task.sweep_failed").Msg("task sweep failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (a *App) shutdown(ctx context.Context) error {
	timeout := a.deps.HTTP.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultHookTimeout
	}
	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	a.mu.Lock()
	hooks := append([]namedHook(nil), a.hooks...)
	a.mu.Unlock()

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]
		start := time.Now()
		if err := h.hook(hctx); err != nil {
			a.logger.Error().Err(err).Str("hook", h.name).Dur("duration", time.Since(start)).Msg("shutdown hook failed")
			errs = append(errs, fmt.Errorf("hook %s: %w", h.name, err))
			continue
		}
		a.logger.Debug().Str("hook", h.name).Dur("duration", time.Since(start)).Msg("shutdown hook completed")
	}
	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	a.logger.Info().Str(log.FieldEvent, "server.stopped").Msg("relay stopped cleanly")
	return nil
}
