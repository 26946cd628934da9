// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ManuGH/footage/internal/contract"
	"github.com/ManuGH/footage/internal/log"
	"github.com/ManuGH/footage/internal/metrics"
	"github.com/ManuGH/footage/internal/tasks"
	"github.com/ManuGH/footage/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

var (
	// ErrQueueFull is returned by Submit when the queue is at capacity.
	ErrQueueFull = errors.New("processing queue full")
	// ErrPoolClosed is returned by Submit once Run has returned.
	ErrPoolClosed = errors.New("processing pool closed")
	// ErrDuplicate is returned when the task is already queued or running.
	ErrDuplicate = errors.New("task already scheduled")
)

const finishTimeout = 5 * time.Second

// PoolConfig sizes a Pool.
type PoolConfig struct {
	Workers          int
	QueueSize        int
	TaskTimeout      time.Duration
	ProgressInterval time.Duration
}

// Pool runs jobs through a Processor with bounded concurrency. Jobs start
// in submission order and every state change goes through the task hub.
type Pool struct {
	hub  *tasks.Hub
	proc Processor
	cfg  PoolConfig

	queue chan Job
	sem   *semaphore.Weighted

	mu       sync.Mutex
	inflight map[string]struct{}
	closed   bool
	done     chan struct{}

	logger zerolog.Logger
}

// NewPool returns a pool; call Run to start it.
func NewPool(hub *tasks.Hub, proc Processor, cfg PoolConfig) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = cfg.Workers
	}
	return &Pool{
		hub:      hub,
		proc:     proc,
		cfg:      cfg,
		queue:    make(chan Job, cfg.QueueSize),
		sem:      semaphore.NewWeighted(int64(cfg.Workers)),
		inflight: make(map[string]struct{}),
		done:     make(chan struct{}),
		logger:   log.WithComponent("processor"),
	}
}

// Submit enqueues job without blocking.
func (p *Pool) Submit(job Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPoolClosed
	}
	if _, ok := p.inflight[job.TaskID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, job.TaskID)
	}
	select {
	case p.queue <- job:
	default:
		return ErrQueueFull
	}
	p.inflight[job.TaskID] = struct{}{}
	metrics.TasksQueued.Inc()
	return nil
}

// Run dispatches queued jobs until ctx is cancelled, then waits for running
// jobs and fails the ones still queued.
func (p *Pool) Run(ctx context.Context) error {
	defer close(p.done)
	g, gctx := errgroup.WithContext(ctx)

dispatch:
	for {
		select {
		case <-gctx.Done():
			break dispatch
		case job := <-p.queue:
			metrics.TasksQueued.Dec()
			if err := p.sem.Acquire(gctx, 1); err != nil {
				p.abandon(job)
				break dispatch
			}
			g.Go(func() error {
				defer p.sem.Release(1)
				p.execute(gctx, job)
				return nil
			})
		}
	}

	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	err := g.Wait()
	for {
		select {
		case job := <-p.queue:
			metrics.TasksQueued.Dec()
			p.abandon(job)
		default:
			return err
		}
	}
}

// Done is closed when Run has returned.
func (p *Pool) Done() <-chan struct{} { return p.done }

func (p *Pool) execute(ctx context.Context, job Job) {
	defer p.release(job.TaskID)
	metrics.TasksRunning.Inc()
	defer metrics.TasksRunning.Dec()

	if p.cfg.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.TaskTimeout)
		defer cancel()
	}
	ctx, span := telemetry.Tracer("footage/processor").Start(log.ContextWithTaskID(ctx, job.TaskID), "task.process",
		trace.WithAttributes(telemetry.TaskAttributes(job.TaskID, job.Filename)...))
	defer span.End()
	logger := log.WithContext(ctx, p.logger)

	start := time.Now()
	p.emit(ctx, job.TaskID, contract.ProgressEvent{
		Message:  "Processing started",
		Progress: contract.Percent(0),
		Status:   contract.StatusRunning,
	})

	reporter := Throttle(ReporterFunc(func(ctx context.Context, ev contract.ProgressEvent) {
		p.emit(ctx, job.TaskID, ev)
	}), p.cfg.ProgressInterval)

	res, err := p.proc.Process(ctx, job, reporter)

	// The task context may be done; terminal events must still land.
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
	defer cancel()

	if err != nil {
		msg := failureMessage(ctx, err)
		logger.Warn().Err(err).Str(log.FieldEvent, "task.failed").Msg("processing failed")
		span.RecordError(err)
		span.SetStatus(codes.Error, msg)
		span.SetAttributes(telemetry.ErrorAttributes(fmt.Sprintf("%T", err))...)
		p.emit(fctx, job.TaskID, contract.ProgressEvent{Message: msg, Status: contract.StatusError})
		metrics.RecordTaskFinished(contract.StatusError, time.Since(start).Seconds())
		return
	}

	if res.Properties != nil {
		if err := p.hub.SetProperties(fctx, job.TaskID, *res.Properties); err != nil {
			logger.Warn().Err(err).Msg("failed to store video properties")
		}
	}
	p.emit(fctx, job.TaskID, contract.ProgressEvent{
		Message:   "Processing complete",
		Progress:  contract.Percent(100),
		Status:    contract.StatusCompleted,
		ResultURL: job.ResultURL,
	})
	metrics.RecordTaskFinished(contract.StatusCompleted, time.Since(start).Seconds())
	span.SetAttributes(telemetry.ResultAttributes(contract.StatusCompleted, res.Bytes, res.FramesProcessed)...)
	logger.Info().
		Str(log.FieldEvent, "task.processed").
		Str(log.FieldStoredName, res.OutputName).
		Int64(log.FieldBytes, res.Bytes).
		Dur("elapsed", res.Elapsed).
		Msg("processing finished")
}

func (p *Pool) abandon(job Job) {
	defer p.release(job.TaskID)
	ctx, cancel := context.WithTimeout(context.Background(), finishTimeout)
	defer cancel()
	p.emit(ctx, job.TaskID, contract.ProgressEvent{
		Message: "server shutting down",
		Status:  contract.StatusError,
	})
	metrics.RecordTaskFinished(contract.StatusError, 0)
}

func (p *Pool) release(id string) {
	p.mu.Lock()
	delete(p.inflight, id)
	p.mu.Unlock()
}

func (p *Pool) emit(ctx context.Context, id string, ev contract.ProgressEvent) {
	if _, _, err := p.hub.Emit(ctx, id, ev); err != nil {
		p.logger.Warn().Err(err).Str(log.FieldTaskID, id).Msg("failed to record task event")
	}
}

func failureMessage(ctx context.Context, err error) string {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return "processing timed out"
	case errors.Is(err, context.Canceled):
		return "processing cancelled"
	case errors.Is(err, ErrInputMissing):
		return "uploaded file is missing"
	default:
		return "processing failed: " + err.Error()
	}
}
