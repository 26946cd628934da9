// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"github.com/ManuGH/footage/internal/log"
	"github.com/go-chi/chi/v5"
)

// StackConfig selects the optional parts of the ingress stack.
type StackConfig struct {
	// CORS is nil when cross-origin access is disabled.
	CORS *OriginPolicy

	EnableMetrics bool
	// TracingService names the server span; empty disables tracing.
	TracingService string
	EnableLogging  bool
}

// NewRouter returns a chi router with the stack applied.
func NewRouter(cfg StackConfig) *chi.Mux {
	r := chi.NewRouter()
	ApplyStack(r, cfg)
	return r
}

// ApplyStack installs, outermost first: panic recovery, request id, CORS,
// metrics, tracing and access logging.
func ApplyStack(r chi.Router, cfg StackConfig) {
	r.Use(Recoverer)
	r.Use(RequestID)
	if cfg.CORS != nil {
		r.Use(CORS(cfg.CORS))
	}
	if cfg.EnableMetrics {
		r.Use(Metrics())
	}
	if cfg.TracingService != "" {
		r.Use(OTelHTTP(cfg.TracingService))
	}
	if cfg.EnableLogging {
		r.Use(log.Middleware())
	}
}
