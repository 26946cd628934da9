// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package processor runs uploaded videos through the analysis step and
// reports progress while it works. The analysis itself is opaque; Annotator
// is the reference implementation used by the relay.
package processor

import (
	"context"
	"time"

	"github.com/ManuGH/footage/internal/contract"
)

// Job describes one file to process.
type Job struct {
	TaskID     string
	Filename   string
	StoredName string
	// Dir holds the input and receives the output.
	Dir string
	// OutputName is the file written into Dir.
	OutputName string
	// ResultURL is announced on the completed event.
	ResultURL string
}

// Result is the outcome of a successful run.
type Result struct {
	OutputName      string
	Properties      *contract.VideoProperties
	FramesProcessed int
	Bytes           int64
	Elapsed         time.Duration
}

// Reporter receives intermediate progress. Implementations must not block
// for long; the processor calls Report inline.
type Reporter interface {
	Report(ctx context.Context, ev contract.ProgressEvent)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(ctx context.Context, ev contract.ProgressEvent)

// Report calls f.
func (f ReporterFunc) Report(ctx context.Context, ev contract.ProgressEvent) { f(ctx, ev) }

// Discard drops every report.
var Discard Reporter = ReporterFunc(func(context.Context, contract.ProgressEvent) {})

// Processor turns an uploaded file into its processed counterpart.
type Processor interface {
	Process(ctx context.Context, job Job, r Reporter) (Result, error)
}
