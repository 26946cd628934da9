// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ManuGH/footage/internal/session"
	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/schollz/progressbar/v3"
)

const barWidth = 40

// Renderer draws session snapshots. It is an Observer; register it with
// session.Observe(r.Observe).
type Renderer struct {
	out      io.Writer
	tty      bool
	colorize bool

	mu      sync.Mutex
	state   session.State
	upload  *progressbar.ProgressBar
	process *progressbar.ProgressBar
	lastMsg string
}

// NewRenderer writes to out, with bars and colors only on a terminal.
func NewRenderer(out io.Writer) *Renderer {
	tty := IsTerminal(out)
	return &Renderer{out: out, tty: tty, colorize: tty}
}

// Observe renders one snapshot.
func (r *Renderer) Observe(snap session.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.state
	r.state = snap.State
	switch snap.State {
	case session.Idle:
		r.reset()
		if snap.Err != nil {
			r.line(text.FgRed, "error", snap.Message)
		}
	case session.Uploading:
		if prev != session.Uploading {
			r.reset()
			r.line(text.FgCyan, "upload", fmt.Sprintf("%s (%s)", snap.File, humanBytes(snap.BytesTotal)))
		}
		if r.tty {
			_ = r.uploadBar(snap.BytesTotal).Set64(snap.BytesSent)
		}
	case session.Tracking:
		if prev == session.Uploading {
			r.finishUpload()
			r.line(text.FgCyan, "task", snap.TaskID)
		}
		r.progress(snap)
	case session.Done:
		r.progress(snap)
		r.finishBars()
		r.line(text.FgGreen, "done", snap.ResultURL)
	case session.Failed:
		r.finishBars()
		r.line(text.FgRed, "failed", snap.Message)
	}
}

func (r *Renderer) progress(snap session.Snapshot) {
	if r.tty {
		bar := r.processBar()
		bar.Describe(snap.Message)
		if snap.HasProgress {
			_ = bar.Set(int(snap.Progress))
		}
		return
	}
	if snap.Message == r.lastMsg {
		return
	}
	r.lastMsg = snap.Message
	msg := snap.Message
	if snap.HasProgress {
		msg = fmt.Sprintf("%3.0f%% %s", snap.Progress, snap.Message)
	}
	r.line(text.FgHiBlack, "progress", msg)
}

func (r *Renderer) uploadBar(total int64) *progressbar.ProgressBar {
	if r.upload == nil {
		if total <= 0 {
			total = -1
		}
		r.upload = progressbar.NewOptions64(total,
			progressbar.OptionSetWriter(r.out),
			progressbar.OptionSetDescription("uploading"),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(barWidth),
			progressbar.OptionThrottle(65*time.Millisecond),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionOnCompletion(func() { _, _ = fmt.Fprintln(r.out) }),
		)
	}
	return r.upload
}

func (r *Renderer) processBar() *progressbar.ProgressBar {
	if r.process == nil {
		r.process = progressbar.NewOptions(100,
			progressbar.OptionSetWriter(r.out),
			progressbar.OptionSetWidth(barWidth),
			progressbar.OptionThrottle(65*time.Millisecond),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionShowCount(),
			progressbar.OptionOnCompletion(func() { _, _ = fmt.Fprintln(r.out) }),
		)
	}
	return r.process
}

func (r *Renderer) finishUpload() {
	if r.upload != nil {
		_ = r.upload.Finish()
		r.upload = nil
	}
}

func (r *Renderer) finishBars() {
	r.finishUpload()
	if r.process != nil {
		_ = r.process.Finish()
		r.process = nil
	}
}

func (r *Renderer) reset() {
	if r.upload != nil {
		_ = r.upload.Clear()
		r.upload = nil
	}
	if r.process != nil {
		_ = r.process.Clear()
		r.process = nil
	}
	r.lastMsg = ""
}

func (r *Renderer) line(color text.Color, label, msg string) {
	tag := fmt.Sprintf("%-9s", label)
	if r.colorize {
		tag = color.Sprint(tag)
	}
	_, _ = fmt.Fprintf(r.out, "%s %s\n", tag, msg)
}

func humanBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}
