// Package metrics provides Prometheus metrics for the posting pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"CatalogPoster/internal/domain"
	"CatalogPoster/internal/ports"
)

const namespace = "catalogposter"

// Pipeline holds the collectors fed by pipeline runs.
type Pipeline struct {
	registry *prometheus.Registry

	// ItemsTotal counts processed products by outcome.
	ItemsTotal *prometheus.CounterVec
	// ErrorsTotal counts errors by kind.
	ErrorsTotal *prometheus.CounterVec
	// RunsTotal counts finished runs; cancelled runs are labelled separately.
	RunsTotal *prometheus.CounterVec
	// RunDuration measures run wall time.
	RunDuration *prometheus.HistogramVec
	// LastRunPosts is the number of posts mutated by the latest run.
	LastRunPosts *prometheus.GaugeVec
}

var _ ports.RunMetrics = (*Pipeline)(nil)

// New registers all collectors on a private registry.
func New() *Pipeline {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Pipeline{
		registry: reg,
		ItemsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "items_total",
				Help:      "Total number of processed catalog items",
			},
			[]string{"job", "outcome"},
		),
		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of errors",
			},
			[]string{"job", "kind"},
		),
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of finished pipeline runs",
			},
			[]string{"job", "status"},
		),
		RunDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of pipeline runs in seconds",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
			},
			[]string{"job"},
		),
		LastRunPosts: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_run_posts",
				Help:      "Posts created or updated by the latest run",
			},
			[]string{"job"},
		),
	}
}

// ObserveOutcome records one processed item.
func (m *Pipeline) ObserveOutcome(job string, outcome domain.Outcome) {
	m.ItemsTotal.WithLabelValues(job, string(outcome)).Inc()
}

// ObserveError records an error.
func (m *Pipeline) ObserveError(job string, kind domain.ErrorKind) {
	m.ErrorsTotal.WithLabelValues(job, string(kind)).Inc()
}

// ObserveRun records a finished run.
func (m *Pipeline) ObserveRun(job string, result domain.RunResult) {
	status := "completed"
	if result.Cancelled {
		status = "cancelled"
	}
	m.RunsTotal.WithLabelValues(job, status).Inc()
	if !result.FinishedAt.IsZero() && !result.StartedAt.IsZero() {
		m.RunDuration.WithLabelValues(job).Observe(result.FinishedAt.Sub(result.StartedAt).Seconds())
	}
	m.LastRunPosts.WithLabelValues(job).Set(float64(len(result.PostIDs)))
}

// Registry exposes the underlying registry.
func (m *Pipeline) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Pipeline) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
