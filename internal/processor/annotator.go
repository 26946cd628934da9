// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package processor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ManuGH/footage/internal/contract"
	"github.com/ManuGH/footage/internal/fsutil"
	"github.com/ManuGH/footage/internal/log"
	"github.com/rs/zerolog"
)

const (
	defaultChunkSize = 1 << 20

	probeDone = 5.0
	copyDone  = 95.0
)

// ErrInputMissing is returned when the job input does not exist.
var ErrInputMissing = errors.New("input file not found")

// Prober reads video properties. *ffprobe.Prober satisfies it.
type Prober interface {
	Available() bool
	Probe(ctx context.Context, path string) (contract.VideoProperties, error)
}

// Annotator is the reference processor. It probes the input when a prober
// is available and writes the output in chunks, reporting frame based
// progress when the frame count is known and byte based progress otherwise.
type Annotator struct {
	Prober    Prober
	ChunkSize int
	// StepDelay pauses after every chunk; zero disables it.
	StepDelay time.Duration

	logger zerolog.Logger
	now    func() time.Time
}

// NewAnnotator returns an Annotator; prober may be nil.
func NewAnnotator(prober Prober, chunkSize int, stepDelay time.Duration) *Annotator {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	return &Annotator{
		Prober:    prober,
		ChunkSize: chunkSize,
		StepDelay: stepDelay,
		logger:    log.WithComponent("processor"),
		now:       time.Now,
	}
}

// Process implements Processor.
func (a *Annotator) Process(ctx context.Context, job Job, r Reporter) (Result, error) {
	if r == nil {
		r = Discard
	}
	start := a.now()
	in := filepath.Join(job.Dir, job.StoredName)
	out := filepath.Join(job.Dir, job.OutputName)

	info, err := os.Stat(in)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{}, fmt.Errorf("%w: %s", ErrInputMissing, job.StoredName)
		}
		return Result{}, fmt.Errorf("stat input: %w", err)
	}

	r.Report(ctx, contract.ProgressEvent{Message: "Analyzing video", Progress: contract.Percent(0)})
	props := a.probe(ctx, in, job)
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	r.Report(ctx, contract.ProgressEvent{Message: "Video analyzed", Progress: contract.Percent(probeDone)})

	src, err := os.Open(in) // #nosec G304 -- path confined to the uploads dir by the caller
	if err != nil {
		return Result{}, fmt.Errorf("open input: %w", err)
	}
	defer func() { _ = src.Close() }()

	total := info.Size()
	var written int64
	frames := 0
	err = fsutil.WriteAtomic(out, func(w io.Writer) error {
		buf := make([]byte, a.ChunkSize)
		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			n, rerr := src.Read(buf)
			if n > 0 {
				if _, werr := w.Write(buf[:n]); werr != nil {
					return fmt.Errorf("write output: %w", werr)
				}
				written += int64(n)
				frames = a.report(ctx, r, props, written, total)
				if err := a.sleep(ctx); err != nil {
					return err
				}
			}
			if rerr == io.EOF {
				return nil
			}
			if rerr != nil {
				return fmt.Errorf("read input: %w", rerr)
			}
		}
	})
	if err != nil {
		return Result{}, err
	}

	res := Result{
		OutputName:      job.OutputName,
		Properties:      props,
		FramesProcessed: frames,
		Bytes:           written,
		Elapsed:         a.now().Sub(start),
	}
	a.logger.Debug().
		Str(log.FieldTaskID, job.TaskID).
		Str(log.FieldStoredName, job.OutputName).
		Int64(log.FieldBytes, written).
		Dur("elapsed", res.Elapsed).
		Msg("annotation written")
	return res, nil
}

func (a *Annotator) probe(ctx context.Context, path string, job Job) *contract.VideoProperties {
	if a.Prober == nil || !a.Prober.Available() {
		return nil
	}
	p, err := a.Prober.Probe(ctx, path)
	if err != nil {
		a.logger.Warn().Err(err).Str(log.FieldTaskID, job.TaskID).Msg("probe failed, falling back to byte progress")
		return nil
	}
	return &p
}

// report emits progress for written of total bytes and returns the frame
// count it corresponds to.
func (a *Annotator) report(ctx context.Context, r Reporter, props *contract.VideoProperties, written, total int64) int {
	frac := 1.0
	if total > 0 {
		frac = float64(written) / float64(total)
	}
	pct := probeDone + frac*(copyDone-probeDone)

	if props == nil || props.TotalFrames <= 0 {
		r.Report(ctx, contract.ProgressEvent{
			Message:  fmt.Sprintf("Processing video (%.0f%%)", frac*100),
			Progress: contract.Percent(pct),
		})
		return 0
	}

	done := int(frac * float64(props.TotalFrames))
	r.Report(ctx, contract.ProgressEvent{
		Message:  fmt.Sprintf("Processing frame %d/%d", done, props.TotalFrames),
		Progress: contract.Percent(pct),
		Frames: &contract.ProcessingProgress{
			FramesProcessed: done,
			TotalFrames:     props.TotalFrames,
			FPS:             props.FPS,
			Progress:        frac * 100,
		},
	})
	return done
}

func (a *Annotator) sleep(ctx context.Context) error {
	if a.StepDelay <= 0 {
		return nil
	}
	t := time.NewTimer(a.StepDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
