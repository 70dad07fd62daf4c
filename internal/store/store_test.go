package store

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/dineshreddykolli/mindcare-ai/internal/alerting"
	"github.com/dineshreddykolli/mindcare-ai/internal/dropout"
	"github.com/dineshreddykolli/mindcare-ai/internal/matching"
	"github.com/dineshreddykolli/mindcare-ai/internal/risk"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	s, err := Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPragmasApplied(t *testing.T) {
	s := openTestStore(t)
	db := s.DB()

	tests := []struct {
		pragma string
		want   string
	}{
		// WAL mode falls back to "memory" for in-memory databases.
		{"foreign_keys", "1"},
		{"synchronous", "1"}, // NORMAL = 1
	}

	for _, tt := range tests {
		var got string
		err := db.QueryRow("PRAGMA " + tt.pragma).Scan(&got)
		if err != nil {
			t.Errorf("PRAGMA %s: %v", tt.pragma, err)
			continue
		}
		if got != tt.want {
			t.Errorf("PRAGMA %s = %q, want %q", tt.pragma, got, tt.want)
		}
	}
}

func TestMigrationCreatesTables(t *testing.T) {
	s := openTestStore(t)
	for _, table := range []string{"assessments", "predictions", "alerts", "assignments", "sessions", "explanations", "llm_request_events", "global_sequence"} {
		var name string
		err := s.DB().QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s: %v", table, err)
		}
	}
}

func TestSequenceCounter(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var seqs []int64
	for i := 0; i < 5; i++ {
		seq, err := s.seq.Next(ctx)
		if err != nil {
			t.Fatalf("next %d: %v", i, err)
		}
		seqs = append(seqs, seq)
	}

	for i, seq := range seqs {
		if want := int64(i + 1); seq != want {
			t.Errorf("seq[%d] = %d, want %d", i, seq, want)
		}
	}
}

func TestAssessmentRepo(t *testing.T) {
	s := openTestStore(t)
	repo := s.Assessments()
	ctx := context.Background()

	got, err := repo.Latest(ctx, "p1")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}

	t0 := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	for i, lvl := range []risk.Level{risk.LevelModerate, risk.LevelCritical} {
		a := risk.Assessment{
			ID:         fmt.Sprintf("a%d", i),
			PatientID:  "p1",
			Level:      lvl,
			Score:      float64(50 + i*40),
			Keywords:   []string{"hopeless"},
			AssessedAt: t0.Add(time.Duration(i) * time.Hour),
		}
		if err := repo.Save(ctx, a); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	if err := repo.Save(ctx, risk.Assessment{ID: "a0", PatientID: "p1"}); err == nil {
		t.Fatal("expected duplicate insert to fail")
	}

	got, err = repo.Latest(ctx, "p1")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if got == nil || got.ID != "a1" || got.Level != risk.LevelCritical {
		t.Fatalf("latest = %+v, want a1/critical", got)
	}
	if !got.AssessedAt.Equal(t0.Add(time.Hour)) {
		t.Errorf("assessed_at = %v", got.AssessedAt)
	}

	all, err := repo.ListByPatient(ctx, "p1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 || all[0].ID != "a0" {
		t.Fatalf("list = %+v", all)
	}
}

func TestPredictionRepo(t *testing.T) {
	s := openTestStore(t)
	repo := s.Predictions()
	ctx := context.Background()

	p := dropout.Prediction{ID: "pr1", PatientID: "p1", Probability: 72.5, ModelVersion: "v1.0.0", RiskFactors: []string{"declining sentiment"}}
	if err := repo.Append(ctx, p); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := repo.Append(ctx, p); err == nil {
		t.Fatal("predictions must be append-only")
	}
	list, err := repo.ListByPatient(ctx, "p1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ModelVersion != "v1.0.0" || list[0].RiskFactors[0] != "declining sentiment" {
		t.Fatalf("list = %+v", list)
	}
}

func TestAlertRepo_SaveUpdatesLifecycle(t *testing.T) {
	s := openTestStore(t)
	repo := s.Alerts()
	ctx := context.Background()

	created := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	a := alerting.Alert{
		ID: "al1", PatientID: "p1", Type: alerting.TypeHighRisk, Severity: alerting.SeverityHigh,
		SourceKind: alerting.SourceAssessment, SourceID: "a1", Status: alerting.StatusOpen, CreatedAt: created,
	}
	if err := repo.Save(ctx, a); err != nil {
		t.Fatalf("save: %v", err)
	}
	b := alerting.Alert{
		ID: "al2", PatientID: "p2", Type: alerting.TypeDropoutRisk, Severity: alerting.SeverityHigh,
		SourceKind: alerting.SourcePrediction, SourceID: "pr1", Status: alerting.StatusOpen, CreatedAt: created,
	}
	if err := repo.Save(ctx, b); err != nil {
		t.Fatalf("save: %v", err)
	}

	at := created.Add(time.Hour)
	a.Status = alerting.StatusAcknowledged
	a.AcknowledgedBy = "dr.lee"
	a.AcknowledgedAt = &at
	if err := repo.Save(ctx, a); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := repo.Get(ctx, "al1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != alerting.StatusAcknowledged || got.AcknowledgedBy != "dr.lee" {
		t.Fatalf("got %+v", got)
	}

	open, err := repo.List(ctx, AlertQuery{Status: alerting.StatusOpen})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(open) != 1 || open[0].ID != "al2" {
		t.Fatalf("open = %+v", open)
	}

	all, _ := repo.List(ctx, AlertQuery{})
	if len(all) != 2 || all[0].ID != "al2" {
		t.Fatalf("all = %+v, want creation order newest first", all)
	}

	dup := a
	dup.ID = "al3"
	if err := repo.Save(ctx, dup); err == nil {
		t.Fatal("expected unique (patient, source) violation")
	}

	missing, err := repo.Get(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("missing = %+v, %v", missing, err)
	}
}

func TestAssignmentRepo(t *testing.T) {
	s := openTestStore(t)
	repo := s.Assignments()
	ctx := context.Background()

	a := matching.Assignment{ID: "as1", PatientID: "p1", TherapistID: "t1", Status: matching.AssignmentActive, MatchScore: 67}
	if err := repo.Save(ctx, a); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := repo.Save(ctx, matching.Assignment{ID: "as2", PatientID: "p2", TherapistID: "t1", Status: matching.AssignmentActive}); err != nil {
		t.Fatalf("save: %v", err)
	}

	ended := time.Now().UTC()
	a.Status = matching.AssignmentEnded
	a.EndedAt = &ended
	if err := repo.Save(ctx, a); err != nil {
		t.Fatalf("update: %v", err)
	}

	active, err := repo.ListActive(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(active) != 1 || active[0].ID != "as2" {
		t.Fatalf("active = %+v", active)
	}

	got, _ := repo.Get(ctx, "as1")
	if got == nil || got.Status != matching.AssignmentEnded {
		t.Fatalf("got %+v", got)
	}
}

func TestSessionRepo(t *testing.T) {
	s := openTestStore(t)
	repo := s.Sessions()
	ctx := context.Background()

	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	recs := []dropout.SessionRecord{
		{ID: "s2", PatientID: "p1", ScheduledAt: t0.Add(7 * 24 * time.Hour), Status: dropout.SessionScheduled},
		{ID: "s1", PatientID: "p1", ScheduledAt: t0, Status: dropout.SessionCompleted},
	}
	for _, r := range recs {
		if err := repo.Save(ctx, r); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	recs[0].Status = dropout.SessionNoShow
	if err := repo.Save(ctx, recs[0]); err != nil {
		t.Fatalf("update: %v", err)
	}

	list, err := repo.ListByPatient(ctx, "p1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != "s1" || list[1].Status != dropout.SessionNoShow {
		t.Fatalf("list = %+v", list)
	}
}

func TestExplanationRepo(t *testing.T) {
	s := openTestStore(t)
	repo := s.Explanations()
	ctx := context.Background()

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	if err := repo.Save(ctx, Explanation{SubjectKind: "assessment", SubjectID: "a1", Source: "rules", Text: "first", CreatedAt: at}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := repo.Save(ctx, Explanation{SubjectKind: "assessment", SubjectID: "a1", Source: "llm", Text: "second", CreatedAt: at}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, err := repo.Get(ctx, "a1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.Text != "second" || got.Source != "llm" || !got.CreatedAt.Equal(at) {
		t.Fatalf("got %+v", got)
	}
	none, err := repo.Get(ctx, "zzz")
	if err != nil || none != nil {
		t.Fatalf("none = %+v, %v", none, err)
	}
}

func TestEventRepo(t *testing.T) {
	s := openTestStore(t)
	repo := s.EventRepo()
	ctx := context.Background()

	events := []LLMRequestEventData{
		{Provider: "mock", Model: "mock", Purpose: "risk-explanation", InputTokens: 10, OutputTokens: 5, LatencyMs: 100, Success: true, RequestBody: "[user]\nexplain"},
		{Provider: "mock", Model: "mock", Purpose: "risk-explanation", InputTokens: 20, OutputTokens: 15, LatencyMs: 300, Success: true},
		{Provider: "mock", Model: "other", Purpose: "match-explanation", LatencyMs: 50, Success: false, ErrorMessage: "timeout"},
	}
	for _, e := range events {
		if err := repo.AppendLLMRequest(ctx, e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	list, err := repo.QueryLLMEvents(ctx, QueryOpts{Limit: 2})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(list) != 2 || list[0].Purpose != "match-explanation" || list[0].Success {
		t.Fatalf("list = %+v", list)
	}

	first, err := repo.GetLLMEvent(ctx, list[1].ID)
	if err != nil || first == nil {
		t.Fatalf("get: %+v, %v", first, err)
	}
	if first.InputTokens != 20 {
		t.Errorf("input tokens = %d, want 20", first.InputTokens)
	}

	byPurpose, err := repo.LLMUsageByPurpose(ctx)
	if err != nil {
		t.Fatalf("usage: %v", err)
	}
	if len(byPurpose) != 2 {
		t.Fatalf("usage = %+v", byPurpose)
	}
	explained := byPurpose[1]
	if explained.Key != "risk-explanation" || explained.Calls != 2 || explained.InputTokens != 30 || explained.AvgLatencyMs != 200 {
		t.Errorf("risk usage = %+v", explained)
	}

	byModel, _ := repo.LLMUsageByModel(ctx)
	if len(byModel) != 2 || byModel[0].Key != "mock" {
		t.Errorf("model usage = %+v", byModel)
	}
}
