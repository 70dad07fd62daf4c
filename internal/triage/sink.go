package triage

import (
	"context"
	"fmt"

	"github.com/dineshreddykolli/mindcare-ai/internal/alerting"
	"github.com/dineshreddykolli/mindcare-ai/internal/dropout"
	"github.com/dineshreddykolli/mindcare-ai/internal/explain"
	"github.com/dineshreddykolli/mindcare-ai/internal/matching"
	"github.com/dineshreddykolli/mindcare-ai/internal/risk"
	"github.com/dineshreddykolli/mindcare-ai/internal/store"
)

// Sink persists pipeline outputs. The engines never see it; the service
// writes each decision once it is final.
type Sink interface {
	SaveAssessment(ctx context.Context, a risk.Assessment) error
	SaveAlert(ctx context.Context, a alerting.Alert) error
	SaveAssignment(ctx context.Context, a matching.Assignment) error
	AppendPrediction(ctx context.Context, p dropout.Prediction) error
	SaveSession(ctx context.Context, rec dropout.SessionRecord) error
	SaveExplanation(ctx context.Context, e explain.Explanation) error
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) SaveAssessment(context.Context, risk.Assessment) error { return nil }
func (NopSink) SaveAlert(context.Context, alerting.Alert) error { return nil }
func (NopSink) SaveAssignment(context.Context, matching.Assignment) error { return nil }
func (NopSink) AppendPrediction(context.Context, dropout.Prediction) error { return nil }
func (NopSink) SaveSession(context.Context, dropout.SessionRecord) error { return nil }
func (NopSink) SaveExplanation(context.Context, explain.Explanation) error { return nil }

// StoreSink writes to the SQLite store.
type StoreSink struct {
	st *store.Store
}

// NewStoreSink wraps st.
func NewStoreSink(st *store.Store) *StoreSink { return &StoreSink{st: st} }

func (s *StoreSink) SaveAssessment(ctx context.Context, a risk.Assessment) error {
	return s.st.Assessments().Save(ctx, a)
}

func (s *StoreSink) SaveAlert(ctx context.Context, a alerting.Alert) error {
	return s.st.Alerts().Save(ctx, a)
}

func (s *StoreSink) SaveAssignment(ctx context.Context, a matching.Assignment) error {
	return s.st.Assignments().Save(ctx, a)
}

func (s *StoreSink) AppendPrediction(ctx context.Context, p dropout.Prediction) error {
	return s.st.Predictions().Append(ctx, p)
}

func (s *StoreSink) SaveSession(ctx context.Context, rec dropout.SessionRecord) error {
	return s.st.Sessions().Save(ctx, rec)
}

func (s *StoreSink) SaveExplanation(ctx context.Context, e explain.Explanation) error {
	return s.st.Explanations().Save(ctx, store.Explanation{
		SubjectKind: string(e.Kind),
		SubjectID:   e.SubjectID,
		Source:      string(e.Source),
		Text:        e.Text,
		CreatedAt:   e.CreatedAt,
	})
}

// State is previously persisted data the service resumes from.
type State struct {
	Alerts      []alerting.Alert
	Assignments []matching.Assignment
	Sessions    []dropout.SessionRecord
	Predictions []dropout.Prediction
	Assessments []risk.Assessment
}

// LoadState reads every alert and active assignment, plus the assessment,
// session and prediction history of the given patients.
func LoadState(ctx context.Context, st *store.Store, patientIDs ...string) (State, error) {
	var state State
	var err error
	if state.Alerts, err = st.Alerts().List(ctx, store.AlertQuery{}); err != nil {
		return State{}, fmt.Errorf("load alerts: %w", err)
	}
	if state.Assignments, err = st.Assignments().ListActive(ctx); err != nil {
		return State{}, fmt.Errorf("load assignments: %w", err)
	}
	for _, id := range patientIDs {
		recs, err := st.Sessions().ListByPatient(ctx, id)
		if err != nil {
			return State{}, fmt.Errorf("load sessions for %s: %w", id, err)
		}
		state.Sessions = append(state.Sessions, recs...)

		preds, err := st.Predictions().ListByPatient(ctx, id)
		if err != nil {
			return State{}, fmt.Errorf("load predictions for %s: %w", id, err)
		}
		state.Predictions = append(state.Predictions, preds...)

		assessed, err := st.Assessments().ListByPatient(ctx, id)
		if err != nil {
			return State{}, fmt.Errorf("load assessments for %s: %w", id, err)
		}
		state.Assessments = append(state.Assessments, assessed...)
	}
	return state, nil
}
