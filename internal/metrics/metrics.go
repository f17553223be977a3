// Package metrics defines the Prometheus collectors for the HTTP surface,
// the ingest pipeline and the outbound tracker.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	HTTPPanicsTotal      *prometheus.CounterVec
	IngestEventsTotal    *prometheus.CounterVec
	IngestInsertDuration *prometheus.HistogramVec
	TrackerEventsTotal   *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them with reg.
// A nil reg uses a fresh private registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, route, and status.",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "route"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		HTTPPanicsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_panics_total",
				Help: "Handler panics recovered, by route.",
			},
			[]string{"route"},
		),
		IngestEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_ingest_events_total",
				Help: "Analytics submissions by outcome (ok or the error kind).",
			},
			[]string{"outcome"},
		),
		IngestInsertDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "analytics_ingest_insert_duration_seconds",
				Help:    "Latency of the backing store insert.",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"sink"},
		),
		TrackerEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_tracker_events_total",
				Help: "Outbound analytics events by result (sent, failed, dropped).",
			},
			[]string{"result"},
		),
		gatherer: reg,
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.HTTPPanicsTotal,
		m.IngestEventsTotal,
		m.IngestInsertDuration,
		m.TrackerEventsTotal,
	)

	return m
}

// Handler returns the Prometheus scrape handler for this registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
