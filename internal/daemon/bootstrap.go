// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/ManuGH/footage/internal/bus"
	"github.com/ManuGH/footage/internal/config"
	"github.com/ManuGH/footage/internal/health"
	"github.com/ManuGH/footage/internal/log"
	"github.com/ManuGH/footage/internal/media/ffprobe"
	"github.com/ManuGH/footage/internal/processor"
	"github.com/ManuGH/footage/internal/relay"
	"github.com/ManuGH/footage/internal/relay/middleware"
	"github.com/ManuGH/footage/internal/tasks"
	"github.com/ManuGH/footage/internal/telemetry"
)

// Build opens the configured backends and returns an App that serves them.
// Whatever was opened before a failure is closed again.
func Build(ctx context.Context, cfg config.AppConfig, holder *config.Holder, version string) (app *App, err error) {
	logger := log.WithComponent("bootstrap")
	var cleanup []namedHook
	defer func() {
		if err == nil {
			return
		}
		for i := len(cleanup) - 1; i >= 0; i-- {
			if cerr := cleanup[i].hook(context.WithoutCancel(ctx)); cerr != nil {
				logger.Warn().Err(cerr).Str("hook", cleanup[i].name).Msg("cleanup after failed start")
			}
		}
	}()

	tp, err := telemetry.NewProvider(ctx, telemetry.FromConfig(cfg.Telemetry, version))
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	cleanup = append(cleanup, namedHook{"telemetry", tp.Shutdown})

	store, err := tasks.OpenStore(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open task store: %w", err)
	}
	cleanup = append(cleanup, namedHook{"task-store", func(context.Context) error { return store.Close() }})

	b, err := openBus(ctx, cfg.Bus)
	if err != nil {
		return nil, fmt.Errorf("open event bus: %w", err)
	}
	cleanup = append(cleanup, namedHook{"event-bus", func(context.Context) error { return b.Close() }})

	hub := tasks.NewHub(store, b)
	prober := ffprobe.New(cfg.Processor.FFprobeBin)
	annotator := processor.NewAnnotator(prober, cfg.Processor.ChunkSize, cfg.Processor.StepDelay)
	pool := processor.NewPool(hub, annotator, processor.PoolConfig{
		Workers:          cfg.Processor.Workers,
		QueueSize:        cfg.Processor.QueueSize,
		TaskTimeout:      cfg.Processor.TaskTimeout,
		ProgressInterval: cfg.Processor.ProgressInterval,
	})

	hm := health.NewManager(version)
	if p, ok := store.(tasks.Pinger); ok {
		hm.RegisterChecker(health.NewPingChecker("task_store", p.Ping))
	}
	hm.RegisterChecker(health.NewDirChecker("uploads_dir", cfg.Uploads.Dir))
	hm.RegisterChecker(health.NewBinaryChecker("ffprobe", prober.Bin))

	cors := middleware.NewOriginPolicy(cfg.CORS.AllowedOrigins, cfg.CORS.AllowCredentials)
	srv := relay.New(relay.ConfigFrom(cfg), relay.Deps{
		Hub:      hub,
		Pool:     pool,
		Detector: annotator,
		Health:   hm,
		CORS:     cors,
	})

	httpCfg := relay.HTTPConfigFrom(cfg.Server)
	ln, err := relay.Listen(httpCfg)
	if err != nil {
		return nil, err
	}
	cleanup = append(cleanup, namedHook{"listener", func(context.Context) error {
		if cerr := ln.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			return cerr
		}
		return nil
	}})

	app, err = NewApp(Deps{
		Config:   cfg,
		Holder:   holder,
		Hub:      hub,
		Pool:     pool,
		Handler:  srv.Handler(),
		Listener: ln,
		HTTP:     httpCfg,
		CORS:     cors,
	})
	if err != nil {
		return nil, err
	}
	// The listener is closed by the server itself once Run starts.
	for _, h := range cleanup[:len(cleanup)-1] {
		app.RegisterShutdownHook(h.name, h.hook)
	}
	return app, nil
}

func openBus(ctx context.Context, cfg config.BusConfig) (bus.Bus, error) {
	switch cfg.Backend {
	case config.BusRedis:
		return bus.NewRedisBus(ctx, bus.RedisConfig{Addr: cfg.RedisAddr, Buffer: cfg.Buffer})
	case config.BusMemory, "":
		return bus.NewMemoryBus(cfg.Buffer), nil
	default:
		return nil, fmt.Errorf("unknown bus backend: %s", cfg.Backend)
	}
}
