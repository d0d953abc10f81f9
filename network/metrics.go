// SPDX-FileCopyrightText: 2026 The go-ofscp Authors
//
// SPDX-License-Identifier: MIT

package network

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

// Metrics are updated by connections and the instrumented registry.
type Metrics struct {
	Dials         metrics.Counter
	DialFailures  metrics.Counter
	FramesIn      metrics.Counter
	FramesOut     metrics.Counter
	FramesDropped metrics.Counter

	// Sockets is the number of currently open websockets.
	Sockets metrics.Gauge
	// Tracked is the number of hosts held by the registry.
	Tracked metrics.Gauge

	// SessionDuration observes how long a socket stayed open, in seconds.
	SessionDuration metrics.Histogram
}

// NopMetrics discards everything.
func NopMetrics() Metrics {
	return Metrics{
		Dials:           discard.NewCounter(),
		DialFailures:    discard.NewCounter(),
		FramesIn:        discard.NewCounter(),
		FramesOut:       discard.NewCounter(),
		FramesDropped:   discard.NewCounter(),
		Sockets:         discard.NewGauge(),
		Tracked:         discard.NewGauge(),
		SessionDuration: discard.NewHistogram(),
	}
}

// PrometheusMetrics registers the collectors with the default prometheus registry.
// It must only be called once per process.
func PrometheusMetrics(namespace string) Metrics {
	events := prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "network",
		Name:      "events_total",
	}, []string{"event"})

	conns := prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "network",
		Name:      "connections",
	}, []string{"part"})

	durr := prometheus.NewSummaryFrom(stdprometheus.SummaryOpts{
		Namespace: namespace,
		Subsystem: "network",
		Name:      "session_durations_seconds",
	}, []string{})

	return Metrics{
		Dials:           events.With("event", "dial"),
		DialFailures:    events.With("event", "dial_failure"),
		FramesIn:        events.With("event", "frame_in"),
		FramesOut:       events.With("event", "frame_out"),
		FramesDropped:   events.With("event", "frame_dropped"),
		Sockets:         conns.With("part", "sockets"),
		Tracked:         conns.With("part", "tracked_hosts"),
		SessionDuration: durr,
	}
}

// withDefaults fills unset fields with discarding implementations.
func (m Metrics) withDefaults() Metrics {
	nop := NopMetrics()
	if m.Dials == nil {
		m.Dials = nop.Dials
	}
	if m.DialFailures == nil {
		m.DialFailures = nop.DialFailures
	}
	if m.FramesIn == nil {
		m.FramesIn = nop.FramesIn
	}
	if m.FramesOut == nil {
		m.FramesOut = nop.FramesOut
	}
	if m.FramesDropped == nil {
		m.FramesDropped = nop.FramesDropped
	}
	if m.Sockets == nil {
		m.Sockets = nop.Sockets
	}
	if m.Tracked == nil {
		m.Tracked = nop.Tracked
	}
	if m.SessionDuration == nil {
		m.SessionDuration = nop.SessionDuration
	}
	return m
}
