// Package metrics exposes pipeline counters and latencies for Prometheus.
package metrics

import (
	"net/http"
	"time"

	"wisefido-risk/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns its registry; a nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	assessments   *prometheus.CounterVec
	alerts        *prometheus.CounterVec
	suppressions  *prometheus.CounterVec
	partials      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	sweepFailures prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		assessments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wisefido_risk",
			Name:      "assessments_total",
			Help:      "Assessments persisted, by pipeline and severity tier.",
		}, []string{"pipeline", "tier"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wisefido_risk",
			Name:      "alerts_emitted_total",
			Help:      "Alerts persisted, by pipeline and severity.",
		}, []string{"pipeline", "severity"}),
		suppressions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wisefido_risk",
			Name:      "alerts_suppressed_total",
			Help:      "Eligible alerts not emitted, by pipeline and reason.",
		}, []string{"pipeline", "reason"}),
		partials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wisefido_risk",
			Name:      "partial_persistence_total",
			Help:      "Assessments saved whose alert could not be written.",
		}, []string{"pipeline"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "wisefido_risk",
			Name:      "pipeline_duration_seconds",
			Help:      "Wall time of one pipeline run.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"pipeline"}),
		sweepFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wisefido_risk",
			Name:      "sweep_subject_failures_total",
			Help:      "Caregivers a burnout sweep could not evaluate.",
		}),
	}
	m.registry.MustRegister(
		m.assessments, m.alerts, m.suppressions, m.partials, m.duration, m.sweepFailures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ObserveAssessment(pipeline string, tier models.SeverityTier, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.assessments.WithLabelValues(pipeline, string(tier)).Inc()
	m.duration.WithLabelValues(pipeline).Observe(elapsed.Seconds())
}

func (m *Metrics) AlertEmitted(pipeline string, severity models.SeverityTier) {
	if m == nil {
		return
	}
	m.alerts.WithLabelValues(pipeline, string(severity)).Inc()
}

func (m *Metrics) AlertSuppressed(pipeline, reason string) {
	if m == nil {
		return
	}
	m.suppressions.WithLabelValues(pipeline, reason).Inc()
}

func (m *Metrics) PartialPersistence(pipeline string) {
	if m == nil {
		return
	}
	m.partials.WithLabelValues(pipeline).Inc()
}

func (m *Metrics) SweepSubjectFailed() {
	if m == nil {
		return
	}
	m.sweepFailures.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
