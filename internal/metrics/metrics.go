// Package metrics exposes Prometheus counters for triage decisions.
//
// A nil *Metrics is valid and records nothing, so components can take one
// unconditionally.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mindcare"

// Metrics holds every collector registered by the triage pipeline.
type Metrics struct {
	reg prometheus.Gatherer

	assessments      *prometheus.CounterVec
	riskScore        prometheus.Histogram
	rankings         *prometheus.CounterVec
	rankDuration     prometheus.Histogram
	assignments      *prometheus.CounterVec
	capacityRetries  prometheus.Counter
	queued           prometheus.Counter
	reviewQueueDepth prometheus.Gauge
	predictions      *prometheus.CounterVec
	alerts           *prometheus.CounterVec
	alertTransitions *prometheus.CounterVec
	explanations     *prometheus.CounterVec
	explainDrops     *prometheus.CounterVec
	validationErrors *prometheus.CounterVec
}

// New registers the collectors on reg. Passing a fresh prometheus.Registry
// keeps tests isolated from the default registry.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		assessments: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "risk_assessments_total",
			Help:      "Risk assessments produced, by level.",
		}, []string{"level"}),
		riskScore: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "risk_score",
			Help:      "Distribution of overall risk scores.",
			Buckets:   []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		}),
		rankings: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "match_rankings_total",
			Help:      "Therapist rankings computed, by whether any candidate remained.",
		}, []string{"outcome"}),
		rankDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "match_rank_duration_seconds",
			Help:      "Time spent ranking a roster.",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1},
		}),
		assignments: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assignments_total",
			Help:      "Assignment lifecycle events, by event.",
		}, []string{"event"}),
		capacityRetries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assignment_capacity_fallbacks_total",
			Help:      "Candidates skipped because their capacity was taken.",
		}),
		queued: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "review_queue_enqueued_total",
			Help:      "Patients queued for manual review.",
		}),
		reviewQueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "review_queue_depth",
			Help:      "Patients currently waiting for manual review.",
		}),
		predictions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropout_predictions_total",
			Help:      "Dropout predictions, by model version and intervention flag.",
		}, []string{"model_version", "intervention"}),
		alerts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_derived_total",
			Help:      "Alerts created, by type and severity.",
		}, []string{"type", "severity"}),
		alertTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alert_transitions_total",
			Help:      "Alert state transitions, by target status.",
		}, []string{"status"}),
		explanations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "explanations_total",
			Help:      "Explanations produced, by kind and source.",
		}, []string{"kind", "source"}),
		explainDrops: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "explanations_dropped_total",
			Help:      "Async explanations dropped because the queue was full.",
		}, []string{"kind"}),
		validationErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_errors_total",
			Help:      "Inputs rejected before scoring, by operation.",
		}, []string{"operation"}),
	}
}

// Gatherer returns the registry the collectors live on.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m == nil {
		return prometheus.NewRegistry()
	}
	return m.reg
}

// WriteTextfile writes the current values in the text exposition format,
// suitable for the node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Gatherer())
}

func (m *Metrics) Assessed(level string, score float64) {
	if m == nil {
		return
	}
	m.assessments.WithLabelValues(level).Inc()
	m.riskScore.Observe(score)
}

func (m *Metrics) Ranked(candidates int, took time.Duration) {
	if m == nil {
		return
	}
	outcome := "matched"
	if candidates == 0 {
		outcome = "empty"
	}
	m.rankings.WithLabelValues(outcome).Inc()
	m.rankDuration.Observe(took.Seconds())
}

func (m *Metrics) AssignmentCreated(fallbacks int) {
	if m == nil {
		return
	}
	m.assignments.WithLabelValues("created").Inc()
	m.capacityRetries.Add(float64(fallbacks))
}

func (m *Metrics) AssignmentEnded() {
	if m == nil {
		return
	}
	m.assignments.WithLabelValues("ended").Inc()
}

// Queued records a patient sent to manual review and the resulting depth.
func (m *Metrics) Queued(depth int) {
	if m == nil {
		return
	}
	m.queued.Inc()
	m.reviewQueueDepth.Set(float64(depth))
}

func (m *Metrics) QueueDepth(depth int) {
	if m == nil {
		return
	}
	m.reviewQueueDepth.Set(float64(depth))
}

func (m *Metrics) Predicted(modelVersion string, intervention bool) {
	if m == nil {
		return
	}
	flag := "false"
	if intervention {
		flag = "true"
	}
	m.predictions.WithLabelValues(modelVersion, flag).Inc()
}

func (m *Metrics) AlertDerived(alertType, severity string) {
	if m == nil {
		return
	}
	m.alerts.WithLabelValues(alertType, severity).Inc()
}

func (m *Metrics) AlertTransition(status string) {
	if m == nil {
		return
	}
	m.alertTransitions.WithLabelValues(status).Inc()
}

func (m *Metrics) Explained(kind, source string) {
	if m == nil {
		return
	}
	m.explanations.WithLabelValues(kind, source).Inc()
}

func (m *Metrics) ExplanationDropped(kind string) {
	if m == nil {
		return
	}
	m.explainDrops.WithLabelValues(kind).Inc()
}

func (m *Metrics) Rejected(operation string) {
	if m == nil {
		return
	}
	m.validationErrors.WithLabelValues(operation).Inc()
}
