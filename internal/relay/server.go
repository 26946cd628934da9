// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package relay is the HTTP side of footage: it accepts uploads, hands them
// to the processing pool and streams task progress as server-sent events.
package relay

import (
	"net/http"
	"time"

	"github.com/ManuGH/footage/internal/config"
	"github.com/ManuGH/footage/internal/contract"
	"github.com/ManuGH/footage/internal/health"
	"github.com/ManuGH/footage/internal/log"
	"github.com/ManuGH/footage/internal/processor"
	"github.com/ManuGH/footage/internal/relay/middleware"
	"github.com/ManuGH/footage/internal/tasks"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const (
	defaultKeepAlive     = 15 * time.Second
	defaultDetectTimeout = 30 * time.Minute
	multipartOverhead    = 1 << 20
)

// Config holds the relay settings taken from the app config.
type Config struct {
	UploadsDir     string
	MaxUploadBytes int64
	LegacyMaxBytes int64
	// PublicURL prefixes result URLs; empty derives it from the request.
	PublicURL           string
	UploadRatePerMinute int
	// KeepAlive is the idle interval after which event streams get a ping.
	KeepAlive     time.Duration
	DetectTimeout time.Duration
}

// ConfigFrom maps the relevant parts of the app config.
func ConfigFrom(cfg config.AppConfig) Config {
	return Config{
		UploadsDir:          cfg.Uploads.Dir,
		MaxUploadBytes:      cfg.Uploads.MaxBytes,
		LegacyMaxBytes:      cfg.Uploads.LegacyMaxBytes,
		PublicURL:           cfg.Server.PublicURL,
		UploadRatePerMinute: cfg.Server.UploadRatePerMinute,
		DetectTimeout:       cfg.Processor.TaskTimeout,
	}
}

// Submitter queues processing jobs. *processor.Pool satisfies it.
type Submitter interface {
	Submit(job processor.Job) error
}

// Deps are the collaborators of a Server.
type Deps struct {
	Hub      *tasks.Hub
	Pool     Submitter
	Detector processor.Processor
	Health   *health.Manager
	CORS     *middleware.OriginPolicy
}

// Server routes relay requests.
type Server struct {
	cfg    Config
	deps   Deps
	logger zerolog.Logger
	now    func() time.Time
}

// New returns a Server.
func New(cfg Config, deps Deps) *Server {
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = defaultKeepAlive
	}
	if cfg.DetectTimeout <= 0 {
		cfg.DetectTimeout = defaultDetectTimeout
	}
	if deps.Health == nil {
		deps.Health = health.NewManager("")
	}
	return &Server{
		cfg:    cfg,
		deps:   deps,
		logger: log.WithComponent("relay"),
		now:    time.Now,
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := middleware.NewRouter(middleware.StackConfig{
		CORS:           s.deps.CORS,
		EnableMetrics:  true,
		TracingService: "footage-relay",
		EnableLogging:  true,
	})

	r.Get("/healthz", s.deps.Health.ServeHealth)
	r.Get("/readyz", s.deps.Health.ServeReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/openapi.yaml", handleOpenAPI)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(s.cfg.UploadRatePerMinute, time.Minute, "upload"))
		r.Post("/upload", s.handleUpload)
		r.Post("/upload/", s.handleUpload)
		r.Post("/api/uploadVideo", s.handleLegacyUpload)
	})
	r.Post("/detect", s.handleDetect)
	r.Post("/detect/", s.handleDetect)

	r.Get("/events/{task_id}", s.handleEvents)
	r.Get("/tasks/{task_id}", s.handleTask)
	r.Get("/uploads/{filename}", s.handleFile)
	r.Head("/uploads/{filename}", s.handleFile)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	return r
}

func handleOpenAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(contract.OpenAPI())
}
