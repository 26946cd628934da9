// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/ManuGH/footage/internal/contract"
	"github.com/ManuGH/footage/internal/metrics"
	"github.com/go-chi/httprate"
)

// RateLimit allows limit requests per window and client IP on the wrapped
// routes. route labels rejections in metrics. limit <= 0 disables it.
func RateLimit(limit int, window time.Duration, route string) func(http.Handler) http.Handler {
	if limit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		limit,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			metrics.RateLimitedTotal.WithLabelValues(route).Inc()
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(contract.ErrorResponse{Error: "too many uploads, try again later"})
		}),
	)
}
