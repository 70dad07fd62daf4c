package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Assessed("critical", 91)
	m.Assessed("critical", 88)
	m.Assessed("low", 12)
	m.Ranked(3, time.Millisecond)
	m.Ranked(0, time.Millisecond)
	m.AssignmentCreated(2)
	m.AssignmentEnded()
	m.Queued(4)
	m.Predicted("1.0.0", true)
	m.AlertDerived("crisis_keyword", "critical")
	m.AlertTransition("acknowledged")
	m.Explained("assessment", "rules")
	m.ExplanationDropped("match")
	m.Rejected("score_intake")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.assessments.WithLabelValues("critical")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.assessments.WithLabelValues("low")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rankings.WithLabelValues("empty")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rankings.WithLabelValues("matched")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.assignments.WithLabelValues("created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.assignments.WithLabelValues("ended")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.capacityRetries))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.queued))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.reviewQueueDepth))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.predictions.WithLabelValues("1.0.0", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.alerts.WithLabelValues("crisis_keyword", "critical")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.alertTransitions.WithLabelValues("acknowledged")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.explanations.WithLabelValues("assessment", "rules")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.explainDrops.WithLabelValues("match")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.validationErrors.WithLabelValues("score_intake")))

	m.QueueDepth(1)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reviewQueueDepth))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Assessed("high", 70)
		m.Ranked(1, time.Second)
		m.AssignmentCreated(0)
		m.AssignmentEnded()
		m.Queued(1)
		m.QueueDepth(0)
		m.Predicted("1.0.0", false)
		m.AlertDerived("high_risk", "high")
		m.AlertTransition("resolved")
		m.Explained("match", "llm")
		m.ExplanationDropped("assessment")
		m.Rejected("rank")
	})
	assert.NotNil(t, m.Gatherer())
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.Assessed("moderate", 45)

	path := filepath.Join(t.TempDir(), "mindcare.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `mindcare_risk_assessments_total{level="moderate"} 1`))
}
