// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metrics provides Prometheus metrics for footage.
// Labels never carry task or request ids.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BusPublishedTotal counts messages published per bus backend.
	BusPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "footage_bus_published_total",
		Help: "Total number of task events published on the event bus",
	}, []string{"backend"})

	// BusDroppedTotal counts messages that could not be delivered, by reason.
	BusDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "footage_bus_dropped_total",
		Help: "Total number of event bus message drops by backend and reason",
	}, []string{"backend", "reason"})
)

// IncBusPublished records a published bus message.
func IncBusPublished(backend string) {
	BusPublishedTotal.WithLabelValues(orUnknown(backend)).Inc()
}

// IncBusDrop records a dropped bus message with a concrete reason.
func IncBusDrop(backend, reason string) {
	BusDroppedTotal.WithLabelValues(orUnknown(backend), orUnknown(reason)).Inc()
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
