// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package processor

import (
	"context"
	"time"

	"github.com/ManuGH/footage/internal/contract"
	"golang.org/x/time/rate"
)

// Throttle limits r to one intermediate event per interval. Events carrying
// a status always pass, so state changes are never swallowed.
func Throttle(r Reporter, interval time.Duration) Reporter {
	if interval <= 0 {
		return r
	}
	return &throttled{next: r, limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

type throttled struct {
	next    Reporter
	limiter *rate.Limiter
}

func (t *throttled) Report(ctx context.Context, ev contract.ProgressEvent) {
	if ev.Status == "" && !t.limiter.Allow() {
		return
	}
	t.next.Report(ctx, ev)
}
