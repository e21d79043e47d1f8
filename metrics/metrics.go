// Package metrics exposes Prometheus metrics for the pipeline and HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/poiesic/quarry/ingestion"
	"github.com/poiesic/quarry/materialize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the application.
// Each Collector has its own registry, so several can coexist in tests.
type Collector struct {
	registry *prometheus.Registry

	// Pipeline metrics
	Stages           *prometheus.CounterVec
	Analyses         *prometheus.CounterVec
	AnalysisDuration *prometheus.HistogramVec
	RowsInserted     *prometheus.CounterVec
	RowsDropped      *prometheus.CounterVec
	PhaseFailures    *prometheus.CounterVec

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

var _ ingestion.Monitor = (*Collector)(nil)

// NewCollector creates a new metrics collector with the given namespace.
func NewCollector(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		Stages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ingestion_stage_total",
				Help:      "Submissions that reached each pipeline stage",
			},
			[]string{"stage"},
		),
		Analyses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "analyses_total",
				Help:      "Analysis attempts by outcome and error code",
			},
			[]string{"status", "code"},
		),
		AnalysisDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "analysis_duration_seconds",
				Help:      "Analysis duration in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"status"},
		),
		RowsInserted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "materialized_rows_total",
				Help:      "Graph rows written, by entity kind",
			},
			[]string{"phase"},
		),
		RowsDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dropped_references_total",
				Help:      "Edges and links dropped for unresolved references",
			},
			[]string{"phase"},
		),
		PhaseFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "materialization_failures_total",
				Help:      "Materialization phases that failed",
			},
			[]string{"phase"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	c.registry.MustRegister(
		c.Stages,
		c.Analyses,
		c.AnalysisDuration,
		c.RowsInserted,
		c.RowsDropped,
		c.PhaseFailures,
		c.HTTPRequests,
		c.HTTPDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// StageReached implements ingestion.Monitor.
func (c *Collector) StageReached(_ string, stage ingestion.Stage) {
	c.Stages.WithLabelValues(string(stage)).Inc()
}

// AnalysisFinished implements ingestion.Monitor.
func (c *Collector) AnalysisFinished(_ string, status ingestion.AnalysisStatus, code string, elapsed time.Duration) {
	c.Analyses.WithLabelValues(string(status), code).Inc()
	c.AnalysisDuration.WithLabelValues(string(status)).Observe(elapsed.Seconds())
}

// Materialized implements ingestion.Monitor.
func (c *Collector) Materialized(_ string, res *materialize.Result) {
	for _, p := range res.All() {
		phase := string(p.Phase)
		c.RowsInserted.WithLabelValues(phase).Add(float64(p.Inserted))
		if p.Dropped > 0 {
			c.RowsDropped.WithLabelValues(phase).Add(float64(p.Dropped))
		}
		if p.Err != nil {
			c.PhaseFailures.WithLabelValues(phase).Inc()
		}
	}
}

// RecordHTTPRequest records one served request.
func (c *Collector) RecordHTTPRequest(method, route string, status int, elapsed time.Duration) {
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
