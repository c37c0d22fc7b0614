// Package metrics exposes Prometheus instruments for the risk engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all instruments. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	analyses         *prometheus.CounterVec
	trainingRuns     *prometheus.CounterVec
	trainingAUC      prometheus.Gauge
	trainingDuration prometheus.Histogram
	publishFailures  prometheus.Counter
	httpDuration     *prometheus.HistogramVec
}

// New registers all instruments on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "risco_analyses_total",
			Help: "Risk analyses served, by outcome (computed or reused).",
		}, []string{"outcome"}),
		trainingRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "risco_training_runs_total",
			Help: "Training runs, by result and dataset source.",
		}, []string{"result", "source"}),
		trainingAUC: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "risco_model_cv_auc",
			Help: "Mean cross-validated AUC of the active model.",
		}),
		trainingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "risco_training_duration_seconds",
			Help:    "Wall time of training runs.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		publishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "risco_event_publish_failures_total",
			Help: "risk.computed events that could not be published.",
		}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "risco_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "status"}),
	}
	reg.MustRegister(
		m.analyses,
		m.trainingRuns,
		m.trainingAUC,
		m.trainingDuration,
		m.publishFailures,
		m.httpDuration,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) AnalysisServed(outcome string) {
	if m == nil {
		return
	}
	m.analyses.WithLabelValues(outcome).Inc()
}

func (m *Metrics) TrainingFinished(result, source string, auc float64, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.trainingRuns.WithLabelValues(result, source).Inc()
	m.trainingDuration.Observe(elapsed.Seconds())
	if result == "accepted" {
		m.trainingAUC.Set(auc)
	}
}

func (m *Metrics) PublishFailed() {
	if m == nil {
		return
	}
	m.publishFailures.Inc()
}

func (m *Metrics) RequestServed(method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, statusClass(status)).Observe(elapsed.Seconds())
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
