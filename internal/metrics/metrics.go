// Package metrics exposes Prometheus instrumentation for the service. A
// dedicated registry is used instead of the package-level default so tests
// can create isolated instances.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cdpguard"

// Metrics bundles every collector used across the service.
type Metrics struct {
	registry *prometheus.Registry

	EvaluationsTotal      prometheus.Counter
	LiquidationsTotal     *prometheus.CounterVec
	LiquidatablePositions prometheus.Gauge
	QuotesTotal           *prometheus.CounterVec
	MonitorTicksTotal     prometheus.Counter
	MonitorTickDuration   prometheus.Histogram
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
}

// New creates a Metrics instance with its own registry, including the
// standard Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		EvaluationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "evaluations_total",
			Help:      "Number of health factor evaluations performed.",
		}),
		LiquidationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "liquidation",
			Name:      "executions_total",
			Help:      "Number of liquidation executions by outcome status.",
		}, []string{"status"}),
		LiquidatablePositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "liquidatable_positions",
			Help:      "Liquidatable positions found in the latest monitor sweep.",
		}),
		QuotesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "quotes_total",
			Help:      "Number of price quotes served by source.",
		}, []string{"source"}),
		MonitorTicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "ticks_total",
			Help:      "Number of completed monitoring sweeps.",
		}),
		MonitorTickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "tick_duration_seconds",
			Help:      "Duration of a monitoring sweep.",
			Buckets:   prometheus.DefBuckets,
		}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Number of HTTP requests by method and status code.",
		}, []string{"method", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration by method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}

	reg.MustRegister(
		m.EvaluationsTotal,
		m.LiquidationsTotal,
		m.LiquidatablePositions,
		m.QuotesTotal,
		m.MonitorTicksTotal,
		m.MonitorTickDuration,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)

	return m
}

// Handler returns the HTTP handler serving the /metrics endpoint for this
// registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
