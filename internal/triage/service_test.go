package triage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dineshreddykolli/mindcare-ai/internal/alerting"
	"github.com/dineshreddykolli/mindcare-ai/internal/config"
	"github.com/dineshreddykolli/mindcare-ai/internal/dropout"
	"github.com/dineshreddykolli/mindcare-ai/internal/explain"
	"github.com/dineshreddykolli/mindcare-ai/internal/fault"
	"github.com/dineshreddykolli/mindcare-ai/internal/llm"
	"github.com/dineshreddykolli/mindcare-ai/internal/matching"
	"github.com/dineshreddykolli/mindcare-ai/internal/metrics"
	"github.com/dineshreddykolli/mindcare-ai/internal/risk"
	"github.com/dineshreddykolli/mindcare-ai/internal/screening"
	"github.com/dineshreddykolli/mindcare-ai/internal/store"
)

var fixedNow = time.Date(2026, 4, 6, 14, 0, 0, 0, time.UTC)

type recordingSink struct {
	mu           sync.Mutex
	assessments  []risk.Assessment
	alerts       []alerting.Alert
	assignments  []matching.Assignment
	predictions  []dropout.Prediction
	sessions     []dropout.SessionRecord
	explanations []explain.Explanation

	failAlerts      bool
	failAssignments bool
}

func (r *recordingSink) SaveAssessment(_ context.Context, a risk.Assessment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assessments = append(r.assessments, a)
	return nil
}

func (r *recordingSink) SaveAlert(_ context.Context, a alerting.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAlerts {
		return errors.New("disk full")
	}
	r.alerts = append(r.alerts, a)
	return nil
}

func (r *recordingSink) SaveAssignment(_ context.Context, a matching.Assignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAssignments {
		return errors.New("disk full")
	}
	r.assignments = append(r.assignments, a)
	return nil
}

func (r *recordingSink) AppendPrediction(_ context.Context, p dropout.Prediction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.predictions = append(r.predictions, p)
	return nil
}

func (r *recordingSink) SaveSession(_ context.Context, rec dropout.SessionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = append(r.sessions, rec)
	return nil
}

func (r *recordingSink) SaveExplanation(_ context.Context, e explain.Explanation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.explanations = append(r.explanations, e)
	return nil
}

type fixture struct {
	svc     *Service
	sink    *recordingSink
	metrics *metrics.Metrics
}

func newFixture(t *testing.T, opts ...Option) fixture {
	t.Helper()
	var n atomic.Int64
	sink := &recordingSink{}
	m := metrics.New(prometheus.NewRegistry())
	base := []Option{
		WithSink(sink),
		WithMetrics(m),
		WithClock(func() time.Time { return fixedNow }),
		WithIDs(func() string { return fmt.Sprintf("id-%d", n.Add(1)) }),
	}
	svc, err := New(config.Default(), append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	return fixture{svc: svc, sink: sink, metrics: m}
}

func intake(patient string, dep, anx []int, concern string, sentiment *float64) *screening.IntakeResponse {
	return &screening.IntakeResponse{
		PatientID:  patient,
		Depression: dep,
		Anxiety:    anx,
		Text:       screening.FreeText{PrimaryConcern: concern},
		Sentiment:  sentiment,
	}
}

func ptr(v float64) *float64 { return &v }

func roster() []matching.Therapist {
	return []matching.Therapist{
		{ID: "A", Specialties: []string{"trauma"}, Languages: []string{"english"}, MaxCaseload: 5, AcceptsHighRisk: false, Active: true, SuccessRate: 90},
		{ID: "B", Specialties: []string{"trauma"}, Languages: []string{"english"}, MaxCaseload: 2, AcceptsHighRisk: true, Active: true, SuccessRate: 70},
		{ID: "C", Specialties: []string{"couples"}, Languages: []string{"english"}, MaxCaseload: 20, AcceptsHighRisk: true, Active: true, SuccessRate: 95},
	}
}

func TestScoreIntake_SelfHarmIsCritical(t *testing.T) {
	f := newFixture(t)
	in := intake("p-1", []int{2, 2, 2, 1, 1, 1, 1, 1, 3}, []int{0, 0, 0, 0, 0, 0, 0}, "trouble sleeping", ptr(0.9))

	res, err := f.svc.ScoreIntake(context.Background(), in)
	require.NoError(t, err)

	a := res.Assessment
	assert.Equal(t, 14, a.Scores.Depression)
	assert.True(t, a.Scores.SelfHarm)
	assert.Equal(t, risk.LevelCritical, a.Level)
	assert.NotEmpty(t, in.ID, "intake ID is stamped")
	assert.Equal(t, fixedNow, in.SubmittedAt)

	require.NotNil(t, res.Alert)
	assert.Equal(t, alerting.TypeCrisisKeyword, res.Alert.Type)
	assert.Equal(t, alerting.SeverityCritical, res.Alert.Severity)
	assert.Equal(t, a.ID, res.Alert.SourceID)

	require.Len(t, f.sink.assessments, 1)
	require.Len(t, f.sink.alerts, 1)
	cur, ok := f.svc.CurrentAssessment("p-1")
	require.True(t, ok)
	assert.Equal(t, a.ID, cur.ID)

	// Re-deriving from the same snapshot never duplicates the alert.
	again, created := f.svc.deriver.FromAssessment(a)
	assert.False(t, created)
	assert.Equal(t, res.Alert.ID, again.ID)
	assert.Len(t, f.svc.Alerts(alerting.Filter{PatientID: "p-1"}), 1)
}

func TestScoreIntake_LowRiskNoAlert(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.ScoreIntake(context.Background(), intake("p-2", make([]int, 9), make([]int, 7), "work stress", ptr(0.8)))
	require.NoError(t, err)
	assert.Equal(t, risk.LevelLow, res.Assessment.Level)
	assert.Nil(t, res.Alert)
	assert.Empty(t, f.sink.alerts)
}

func TestScoreIntake_CrisisLanguageAlertsAtLowLevel(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.ScoreIntake(context.Background(), intake("p-4", make([]int, 9), make([]int, 7), "I want to kill myself", nil))
	require.NoError(t, err)

	assert.Equal(t, risk.LevelLow, res.Assessment.Level)
	assert.Equal(t, []string{"kill myself"}, res.Assessment.Keywords)
	require.NotNil(t, res.Alert)
	assert.Equal(t, alerting.TypeCrisisKeyword, res.Alert.Type)
	assert.Equal(t, alerting.SeverityCritical, res.Alert.Severity)
	require.Len(t, f.sink.alerts, 1)
	assert.Equal(t, res.Assessment.ID, f.sink.alerts[0].SourceID)
}

func TestScoreIntake_InvalidPersistsNothing(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ScoreIntake(context.Background(), intake("p-3", []int{0, 0, 4, 0, 0, 0, 0, 0, 0}, make([]int, 7), "x", nil))

	var ve *fault.ErrValidation
	require.ErrorAs(t, err, &ve)
	assert.Empty(t, f.sink.assessments)
	_, ok := f.svc.CurrentAssessment("p-3")
	assert.False(t, ok)
}

func TestScoreIntake_AlertSaveFailureSurfaces(t *testing.T) {
	f := newFixture(t)
	f.sink.failAlerts = true
	_, err := f.svc.ScoreIntake(context.Background(), intake("p-4", []int{3, 3, 3, 3, 3, 3, 3, 3, 3}, []int{3, 3, 3, 3, 3, 3, 3}, "I feel hopeless", nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save alert")
}

func TestScoreBatch_IsolatesFailures(t *testing.T) {
	f := newFixture(t)
	intakes := []*screening.IntakeResponse{
		intake("p-1", make([]int, 9), make([]int, 7), "a", nil),
		intake("p-2", []int{1}, make([]int, 7), "b", nil),
		intake("p-3", []int{3, 3, 3, 3, 3, 3, 3, 3, 0}, []int{3, 3, 3, 3, 3, 3, 3}, "c", ptr(-1)),
	}

	results := f.svc.ScoreBatch(context.Background(), intakes)
	require.Len(t, results, 3)
	for i, r := range results {
		assert.Equal(t, i, r.Index)
	}
	require.NoError(t, results[0].Err)
	assert.Equal(t, "p-1", results[0].Result.Assessment.PatientID)
	assert.Error(t, results[1].Err)
	assert.Nil(t, results[1].Result)
	require.NoError(t, results[2].Err)
	assert.True(t, results[2].Result.Assessment.Level.AtLeast(risk.LevelHigh))
}

func TestScoreBatch_CancelledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := f.svc.ScoreBatch(ctx, []*screening.IntakeResponse{intake("p", make([]int, 9), make([]int, 7), "a", nil)})
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, context.Canceled)
}

func TestAutoAssign_CriticalTraumaScenario(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.svc.LoadRoster(roster()))

	p := matching.Patient{ID: "p-1", Level: risk.LevelCritical, Needs: []string{"trauma"}}
	res, err := f.svc.AutoAssign(context.Background(), p, "system")
	require.NoError(t, err)

	var ids []string
	for _, c := range res.Ranking.Candidates {
		ids = append(ids, c.TherapistID)
	}
	assert.NotContains(t, ids, "A", "therapist without high-risk acceptance is excluded")
	require.GreaterOrEqual(t, len(ids), 2)
	assert.Equal(t, "B", ids[0], "specialty match outranks spare capacity")

	require.NotNil(t, res.Assignment)
	assert.Equal(t, "B", res.Assignment.TherapistID)
	assert.Equal(t, "system", res.Assignment.AssignedBy)
	assert.Equal(t, 1, f.svc.Capacity()["B"].Current)
	require.Len(t, f.sink.assignments, 1)

	active, ok := f.svc.ActiveAssignment("p-1")
	require.True(t, ok)
	assert.Equal(t, res.Assignment.ID, active.ID)
}

func TestAutoAssign_ConcurrentLastSlot(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.svc.LoadRoster([]matching.Therapist{
		{ID: "T1", Specialties: []string{"trauma"}, Languages: []string{"english"}, MaxCaseload: 1, Active: true},
		{ID: "T2", Specialties: []string{"grief"}, Languages: []string{"english"}, MaxCaseload: 5, Active: true},
	}))

	var wg sync.WaitGroup
	results := make([]*AutoResult, 2)
	errs := make([]error, 2)
	for i := range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p := matching.Patient{ID: fmt.Sprintf("p-%d", i), Level: risk.LevelModerate, Needs: []string{"trauma"}}
			results[i], errs[i] = f.svc.AutoAssign(context.Background(), p, "system")
		}()
	}
	wg.Wait()

	got := map[string]int{}
	for i := range 2 {
		require.NoError(t, errs[i])
		got[results[i].Assignment.TherapistID]++
	}
	assert.Equal(t, map[string]int{"T1": 1, "T2": 1}, got)
	assert.Equal(t, 1, f.svc.Capacity()["T1"].Current)
	assert.Equal(t, 1, f.svc.Capacity()["T2"].Current)
}

func TestAutoAssign_NoCapacityQueues(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.svc.LoadRoster([]matching.Therapist{
		{ID: "full", Specialties: []string{"trauma"}, Languages: []string{"english"}, MaxCaseload: 1, CurrentCaseload: 1, Active: true},
	}))

	res, err := f.svc.AutoAssign(context.Background(), matching.Patient{ID: "p-9", Level: risk.LevelLow}, "system")
	var noCap *fault.ErrNoCapacity
	require.ErrorAs(t, err, &noCap)
	assert.Equal(t, "no capacity available — queued for manual review", err.Error())
	require.NotNil(t, res)
	assert.Empty(t, res.Ranking.Candidates)

	queue := f.svc.ReviewQueue()
	require.Len(t, queue, 1)
	assert.Equal(t, "p-9", queue[0].PatientID)
}

func TestAssign_ManualAndEnd(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.svc.LoadRoster(roster()))
	ctx := context.Background()

	asg, err := f.svc.Assign(ctx, matching.Request{PatientID: "p-1", TherapistID: "C", AssignedBy: "admin"})
	require.NoError(t, err)
	assert.Equal(t, 1, f.svc.Capacity()["C"].Current)

	_, err = f.svc.Assign(ctx, matching.Request{PatientID: "p-1", TherapistID: "B", AssignedBy: "admin"})
	var tr *fault.ErrInvalidTransition
	require.ErrorAs(t, err, &tr, "one active assignment per patient")

	_, err = f.svc.Assign(ctx, matching.Request{PatientID: "p-2", TherapistID: "nobody"})
	var nf *fault.ErrNotFound
	require.ErrorAs(t, err, &nf)

	ended, err := f.svc.EndAssignment(ctx, asg.ID, "completed treatment")
	require.NoError(t, err)
	assert.Equal(t, matching.AssignmentEnded, ended.Status)
	require.NotNil(t, ended.EndedAt)
	assert.Equal(t, 0, f.svc.Capacity()["C"].Current)

	_, err = f.svc.EndAssignment(ctx, asg.ID, "again")
	require.ErrorAs(t, err, &tr)
}

func TestAssign_EnforcesHardRules(t *testing.T) {
	f := newFixture(t)
	inactive := matching.Therapist{ID: "D", Specialties: []string{"grief"}, Languages: []string{"english"}, MaxCaseload: 3, AcceptsHighRisk: true}
	require.NoError(t, f.svc.LoadRoster(append(roster(), inactive)))
	ctx := context.Background()

	scored, err := f.svc.ScoreIntake(ctx, intake("p-1", []int{2, 2, 2, 1, 1, 1, 1, 1, 3}, []int{1, 1, 1, 1, 1, 1, 1}, "flashbacks", ptr(-0.4)))
	require.NoError(t, err)
	require.Equal(t, risk.LevelCritical, scored.Assessment.Level)

	_, err = f.svc.Assign(ctx, matching.Request{PatientID: "p-1", TherapistID: "A", AssignedBy: "admin"})
	var ve *fault.ErrValidation
	require.ErrorAs(t, err, &ve, "A does not accept high-risk patients")
	assert.Equal(t, "therapist_id", ve.Field)
	assert.Equal(t, 0, f.svc.Capacity()["A"].Current)
	_, ok := f.svc.ActiveAssignment("p-1")
	assert.False(t, ok)

	_, err = f.svc.Assign(ctx, matching.Request{PatientID: "p-2", TherapistID: "D"})
	require.ErrorAs(t, err, &ve, "inactive therapists take no new patients")
	assert.Equal(t, 0, f.svc.Capacity()["D"].Current)

	asg, err := f.svc.Assign(ctx, matching.Request{PatientID: "p-1", TherapistID: "B", AssignedBy: "admin"})
	require.NoError(t, err)
	assert.Equal(t, "B", asg.TherapistID)
}

func TestAssign_SaveFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.svc.LoadRoster(roster()))
	ctx := context.Background()
	f.sink.failAssignments = true

	_, err := f.svc.Assign(ctx, matching.Request{PatientID: "p-1", TherapistID: "C", AssignedBy: "admin"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save assignment")
	assert.Equal(t, 0, f.svc.Capacity()["C"].Current)
	_, ok := f.svc.ActiveAssignment("p-1")
	assert.False(t, ok)

	_, err = f.svc.AutoAssign(ctx, matching.Patient{ID: "p-2", Level: risk.LevelModerate, Needs: []string{"trauma"}}, "system")
	require.Error(t, err)
	for id, u := range f.svc.Capacity() {
		assert.Equal(t, 0, u.Current, "therapist %s kept an unsaved slot", id)
	}
	_, ok = f.svc.ActiveAssignment("p-2")
	assert.False(t, ok)

	f.sink.failAssignments = false
	asg, err := f.svc.Assign(ctx, matching.Request{PatientID: "p-1", TherapistID: "C", AssignedBy: "admin"})
	require.NoError(t, err)
	assert.Equal(t, 1, f.svc.Capacity()["C"].Current)
	require.Len(t, f.sink.assignments, 1)
	assert.Equal(t, asg.ID, f.sink.assignments[0].ID)
}

func TestAssign_CapacityExceeded(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.svc.LoadRoster([]matching.Therapist{
		{ID: "T", Specialties: []string{"x"}, Languages: []string{"en"}, MaxCaseload: 1, CurrentCaseload: 1, Active: true},
	}))
	_, err := f.svc.Assign(context.Background(), matching.Request{PatientID: "p", TherapistID: "T"})
	var ce *fault.ErrCapacityExceeded
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "T", ce.TherapistID)
}

func TestLoadRoster_Rejects(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.svc.LoadRoster(roster()[:1]))
	err := f.svc.LoadRoster(roster()[:1])
	var inv *fault.ErrInvariantViolation
	require.ErrorAs(t, err, &inv)

	err = f.svc.LoadRoster([]matching.Therapist{{ID: "bad", MaxCaseload: 1, CurrentCaseload: 2}})
	var ve *fault.ErrValidation
	require.ErrorAs(t, err, &ve)
}

func TestPredictDropout_AlertLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.PredictDropout(ctx, "p-1", dropout.FeatureVector{
		SessionsCancelled:    1,
		SessionsNoShow:       4,
		SentimentTrend:       ptr(-0.5),
		DaysSinceLastSession: 60,
	})
	require.NoError(t, err)
	p := res.Prediction
	assert.True(t, p.InterventionRecommended)
	assert.Equal(t, dropout.DefaultVersion, p.ModelVersion)
	assert.GreaterOrEqual(t, p.Probability, 85.0)

	require.NotNil(t, res.Alert)
	assert.Equal(t, alerting.TypeDropoutRisk, res.Alert.Type)
	assert.Equal(t, alerting.SeverityCritical, res.Alert.Severity)
	require.Len(t, f.sink.predictions, 1)

	id := res.Alert.ID
	acked, err := f.svc.AcknowledgeAlert(ctx, id, "dr.lee")
	require.NoError(t, err)
	assert.Equal(t, alerting.StatusAcknowledged, acked.Status)

	resolved, err := f.svc.ResolveAlert(ctx, id, "called patient")
	require.NoError(t, err)
	assert.Equal(t, alerting.StatusResolved, resolved.Status)

	_, err = f.svc.AcknowledgeAlert(ctx, id, "dr.lee")
	var tr *fault.ErrInvalidTransition
	require.ErrorAs(t, err, &tr)

	saved := f.sink.alerts
	require.Len(t, saved, 3)
	assert.Equal(t, alerting.StatusResolved, saved[2].Status)

	got, err := f.svc.Alert(id)
	require.NoError(t, err)
	assert.Equal(t, "called patient", got.ResolutionNotes)
}

func TestPredictDropout_Rejects(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.PredictDropout(context.Background(), "", dropout.FeatureVector{})
	var ve *fault.ErrValidation
	require.ErrorAs(t, err, &ve)
	assert.Empty(t, f.sink.predictions)
}

func TestRecordSession_PredictsOnOutcome(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	scheduled := dropout.SessionRecord{ID: "s-1", PatientID: "p-1", ScheduledAt: fixedNow.Add(24 * time.Hour), Status: dropout.SessionScheduled}
	res, err := f.svc.RecordSession(ctx, scheduled)
	require.NoError(t, err)
	assert.Nil(t, res)

	done := dropout.SessionRecord{ID: "s-0", PatientID: "p-1", ScheduledAt: fixedNow.Add(-72 * time.Hour), Status: dropout.SessionCompleted, Sentiment: ptr(0.3)}
	res, err = f.svc.RecordSession(ctx, done)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 1, res.Prediction.Features.SessionsAttended)
	assert.False(t, res.Prediction.InterventionRecommended)

	assert.Len(t, f.svc.Sessions("p-1"), 2)
	assert.Len(t, f.svc.Predictions("p-1"), 1)
	assert.Len(t, f.sink.sessions, 2)

	done.Status = dropout.SessionNoShow
	_, err = f.svc.RecordSession(ctx, done)
	var tr *fault.ErrInvalidTransition
	require.ErrorAs(t, err, &tr, "an outcome is frozen")
}

func TestExplanations_AttachedAsync(t *testing.T) {
	body, err := json.Marshal(map[string]string{"summary": "Critical risk driven by the self-harm answer."})
	require.NoError(t, err)
	mock := llm.NewMockProvider(llm.MockResponse{Content: body})

	f := newFixture(t, WithProvider(mock))
	_, err = f.svc.ScoreIntake(context.Background(), intake("p-1", []int{2, 2, 2, 1, 1, 1, 1, 1, 3}, make([]int, 7), "x", nil))
	require.NoError(t, err)

	f.svc.Close()
	require.Len(t, f.sink.explanations, 1)
	e := f.sink.explanations[0]
	assert.Equal(t, explain.KindRisk, e.Kind)
	assert.Equal(t, explain.SourceLLM, e.Source)
	assert.Equal(t, "Critical risk driven by the self-harm answer.", e.Text)
	assert.Equal(t, 1, mock.CallCount())
}

func TestExplanations_RulesWithoutProvider(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.svc.LoadRoster(roster()))
	_, err := f.svc.AutoAssign(context.Background(), matching.Patient{ID: "p-1", Level: risk.LevelModerate, Needs: []string{"trauma"}}, "system")
	require.NoError(t, err)

	require.Len(t, f.sink.explanations, 1)
	assert.Equal(t, explain.KindMatch, f.sink.explanations[0].Kind)
	assert.Equal(t, explain.SourceRules, f.sink.explanations[0].Source)
}

func TestMetrics_Recorded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.ScoreIntake(ctx, intake("p-1", []int{2, 2, 2, 1, 1, 1, 1, 1, 3}, make([]int, 7), "x", nil))
	require.NoError(t, err)
	_, _ = f.svc.ScoreIntake(ctx, intake("p-2", nil, nil, "x", nil))

	n, err := testutil.GatherAndCount(f.metrics.Gatherer(), "mindcare_risk_assessments_total", "mindcare_validation_errors_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestPatientFor(t *testing.T) {
	in := &screening.IntakeResponse{
		Text: screening.FreeText{PrimaryConcern: "panic attacks and flashbacks"},
		Preferences: screening.Preferences{
			Language:        "spanish",
			RequireLanguage: true,
			SessionFormat:   "telehealth",
			Specialties:     []string{"grief"},
		},
	}
	p := PatientFor(risk.Assessment{PatientID: "p-1", Level: risk.LevelHigh}, in)
	assert.Equal(t, "p-1", p.ID)
	assert.Equal(t, risk.LevelHigh, p.Level)
	assert.Contains(t, p.Needs, "grief")
	assert.True(t, p.RequireLanguage)
	assert.Equal(t, matching.FormatTelehealth, p.Format)
}

func TestRestore_FromStore(t *testing.T) {
	st, err := store.Open("file:triage_restore?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	ctx := context.Background()

	first := newFixture(t, WithSink(NewStoreSink(st)))
	require.NoError(t, first.svc.LoadRoster(roster()))
	auto, err := first.svc.AutoAssign(ctx, matching.Patient{ID: "p-1", Level: risk.LevelHigh, Needs: []string{"trauma"}}, "system")
	require.NoError(t, err)
	scored, err := first.svc.ScoreIntake(ctx, intake("p-1", []int{2, 2, 2, 1, 1, 1, 1, 1, 3}, make([]int, 7), "x", nil))
	require.NoError(t, err)
	require.NotNil(t, scored.Alert)

	state, err := LoadState(ctx, st, "p-1")
	require.NoError(t, err)
	require.Len(t, state.Assignments, 1)
	require.Len(t, state.Alerts, 1)
	require.Len(t, state.Assessments, 1)

	second := newFixture(t, WithSink(NewStoreSink(st)))
	require.NoError(t, second.svc.LoadRoster(roster()))
	require.NoError(t, second.svc.Restore(state))

	tid := auto.Assignment.TherapistID
	assert.Equal(t, 1, second.svc.Capacity()[tid].Current, "restored assignment holds its slot")
	_, ok := second.svc.ActiveAssignment("p-1")
	assert.True(t, ok)
	cur, ok := second.svc.CurrentAssessment("p-1")
	require.True(t, ok)
	assert.Equal(t, scored.Assessment.ID, cur.ID)

	acked, err := second.svc.AcknowledgeAlert(ctx, scored.Alert.ID, "dr.lee")
	require.NoError(t, err)
	stored, err := st.Alerts().Get(ctx, acked.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, alerting.StatusAcknowledged, stored.Status)
}
