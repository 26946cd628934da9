// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UploadsTotal counts upload attempts by endpoint and outcome.
	UploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "footage_uploads_total",
		Help: "Total number of uploads, by endpoint (upload|legacy) and result",
	}, []string{"endpoint", "result"})

	// UploadBytes observes accepted upload sizes.
	UploadBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "footage_upload_bytes",
		Help:    "Size of accepted uploads in bytes",
		Buckets: prometheus.ExponentialBuckets(1<<20, 4, 8),
	})

	// TasksTotal counts finished tasks by terminal status.
	TasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "footage_tasks_total",
		Help: "Total number of processing tasks by terminal status",
	}, []string{"status"})

	// TaskDuration observes processing wall time.
	TaskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "footage_task_duration_seconds",
		Help:    "Processing duration of tasks by terminal status",
		Buckets: []float64{0.5, 1, 5, 15, 60, 300, 900, 1800},
	}, []string{"status"})

	// TasksQueued is the number of tasks waiting for a worker.
	TasksQueued = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "footage_tasks_queued",
		Help: "Tasks accepted but not yet picked up by a worker",
	})

	// TasksRunning is the number of tasks being processed.
	TasksRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "footage_tasks_running",
		Help: "Tasks currently being processed",
	})

	// EventSubscribers is the number of open event streams.
	EventSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "footage_event_subscribers",
		Help: "Number of open server-sent event streams",
	})

	// EventsSentTotal counts events written to event streams.
	EventsSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "footage_events_sent_total",
		Help: "Total number of progress events written to subscribers",
	})
)

// RecordUpload records the outcome of one upload request.
func RecordUpload(endpoint, result string) {
	UploadsTotal.WithLabelValues(orUnknown(endpoint), orUnknown(result)).Inc()
}

// RecordTaskFinished records a task reaching a terminal status.
func RecordTaskFinished(status string, seconds float64) {
	status = orUnknown(status)
	TasksTotal.WithLabelValues(status).Inc()
	TaskDuration.WithLabelValues(status).Observe(seconds)
}
