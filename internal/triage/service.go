// Package triage wires the scoring, matching, dropout and alerting engines
// into the operations the dashboard and the CLI call. It owns the mutable
// state (capacity ledger, assignments, alerts, histories), persists results
// through a Sink and attaches explanations without delaying a decision.
package triage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dineshreddykolli/mindcare-ai/internal/alerting"
	"github.com/dineshreddykolli/mindcare-ai/internal/capacity"
	"github.com/dineshreddykolli/mindcare-ai/internal/config"
	"github.com/dineshreddykolli/mindcare-ai/internal/dropout"
	"github.com/dineshreddykolli/mindcare-ai/internal/explain"
	"github.com/dineshreddykolli/mindcare-ai/internal/fault"
	"github.com/dineshreddykolli/mindcare-ai/internal/llm"
	"github.com/dineshreddykolli/mindcare-ai/internal/matching"
	"github.com/dineshreddykolli/mindcare-ai/internal/metrics"
	"github.com/dineshreddykolli/mindcare-ai/internal/risk"
	"github.com/dineshreddykolli/mindcare-ai/internal/screening"
)

// sinkTimeout bounds persistence of background explanation results.
const sinkTimeout = 5 * time.Second

// Service is safe for concurrent use.
type Service struct {
	cfg       config.Config
	logger    zerolog.Logger
	metrics   *metrics.Metrics
	sink      Sink
	provider  llm.Provider
	models    *dropout.Registry
	now       func() time.Time
	newID     func() string
	explainer *explain.Service

	classifier *risk.Classifier
	ledger     *capacity.Ledger
	ranker     *matching.Ranker
	assigner   *matching.Assigner
	estimator  *dropout.Estimator
	deriver    *alerting.Deriver

	assessments *risk.History
	predictions *dropout.History
	sessions    *dropout.SessionLog

	mu     sync.RWMutex
	roster map[string]matching.Therapist
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the decision logger.
func WithLogger(l zerolog.Logger) Option { return func(s *Service) { s.logger = l } }

// WithMetrics records decisions on m.
func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

// WithSink persists results.
func WithSink(sink Sink) Option { return func(s *Service) { s.sink = sink } }

// WithProvider enables generated explanations. Without one the rule-based
// text is used.
func WithProvider(p llm.Provider) Option { return func(s *Service) { s.provider = p } }

// WithModels supplies the dropout model registry.
func WithModels(r *dropout.Registry) Option { return func(s *Service) { s.models = r } }

// WithClock overrides every timestamp source.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithIDs overrides every ID generator.
func WithIDs(newID func() string) Option { return func(s *Service) { s.newID = newID } }

// New builds the service from cfg.
func New(cfg config.Config, opts ...Option) (*Service, error) {
	s := &Service{
		cfg:         cfg,
		logger:      zerolog.Nop(),
		sink:        NopSink{},
		now:         time.Now,
		newID:       uuid.NewString,
		ledger:      capacity.NewLedger(),
		assessments: risk.NewHistory(),
		predictions: dropout.NewHistory(),
		sessions:    dropout.NewSessionLog(),
		roster:      make(map[string]matching.Therapist),
	}
	for _, o := range opts {
		o(s)
	}

	var err error
	if s.classifier, err = risk.NewClassifier(cfg.Risk, risk.WithClock(s.now), risk.WithIDs(s.newID)); err != nil {
		return nil, fmt.Errorf("risk classifier: %w", err)
	}
	if s.ranker, err = matching.NewRanker(cfg.Matching, s.ledger); err != nil {
		return nil, fmt.Errorf("match ranker: %w", err)
	}
	s.assigner = matching.NewAssigner(s.ledger, matching.NewReviewQueue(),
		matching.WithAssignerClock(s.now), matching.WithAssignmentIDs(s.newID))

	model, err := s.activeModel()
	if err != nil {
		return nil, err
	}
	if s.estimator, err = dropout.NewEstimator(model,
		dropout.WithThreshold(cfg.Dropout.InterventionThreshold),
		dropout.WithClock(s.now), dropout.WithIDs(s.newID)); err != nil {
		return nil, fmt.Errorf("dropout estimator: %w", err)
	}

	critical := cfg.Alerting.CriticalDropout
	if critical == 0 {
		critical = alerting.DefaultCriticalDropout
	}
	s.deriver = alerting.NewDeriver(alerting.WithClock(s.now), alerting.WithIDs(s.newID),
		alerting.WithCriticalDropout(critical))

	s.explainer = explain.New(s.provider, cfg.Explain,
		explain.WithLogger(s.logger),
		explain.WithClock(s.now),
		explain.WithDropHook(func(k explain.Kind) { s.metrics.ExplanationDropped(string(k)) }),
	)
	return s, nil
}

func (s *Service) activeModel() (dropout.Model, error) {
	if s.models == nil {
		s.models = dropout.NewRegistry()
	}
	if f := s.cfg.Dropout.ModelFile; f != "" {
		loaded, err := s.models.LoadFile(f)
		if err != nil {
			return dropout.Model{}, err
		}
		s.logger.Debug().Strs("versions", loaded).Str("file", f).Msg("dropout models loaded")
	}
	if v := s.cfg.Dropout.ModelVersion; v != "" {
		return s.models.Get(v)
	}
	return s.models.Latest(), nil
}

// Close waits for pending explanations.
func (s *Service) Close() { s.explainer.Close() }

// Model returns the active dropout model.
func (s *Service) Model() dropout.Model { return s.estimator.Model() }

// LoadRoster registers therapists and seeds their caseloads. Each
// therapist may be loaded once.
func (s *Service) LoadRoster(roster []matching.Therapist) error {
	for _, t := range roster {
		if err := t.Validate(); err != nil {
			return err
		}
		if err := s.ledger.Register(t.ID, t.MaxCaseload, t.CurrentCaseload); err != nil {
			return fmt.Errorf("register therapist %s: %w", t.ID, err)
		}
		s.mu.Lock()
		s.roster[t.ID] = t
		s.mu.Unlock()
	}
	s.logger.Debug().Int("therapists", len(roster)).Msg("roster loaded")
	return nil
}

// Roster returns the loaded therapists ordered by ID.
func (s *Service) Roster() []matching.Therapist {
	s.mu.RLock()
	out := make([]matching.Therapist, 0, len(s.roster))
	for _, t := range s.roster {
		out = append(out, t)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Service) therapist(id string) (matching.Therapist, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.roster[id]
	return t, ok
}

// Restore resumes from persisted state. Active assignments take their slot
// in the ledger again, so the roster must be loaded first.
func (s *Service) Restore(state State) error {
	for _, a := range state.Assessments {
		s.assessments.Add(a)
	}
	for _, p := range state.Predictions {
		if err := s.predictions.Append(p); err != nil {
			return err
		}
	}
	for _, rec := range state.Sessions {
		if err := s.sessions.Upsert(rec); err != nil {
			return fmt.Errorf("restore session %s: %w", rec.ID, err)
		}
	}
	if err := s.deriver.Restore(state.Alerts...); err != nil {
		return fmt.Errorf("restore alerts: %w", err)
	}
	for _, asg := range state.Assignments {
		if asg.Status == matching.AssignmentActive {
			if err := s.ledger.Reserve(asg.TherapistID); err != nil {
				return fmt.Errorf("restore assignment %s: %w", asg.ID, err)
			}
		}
		if err := s.assigner.Restore(asg); err != nil {
			return err
		}
	}
	return nil
}

// IntakeResult is the outcome of scoring one intake.
type IntakeResult struct {
	Intake     *screening.IntakeResponse `json:"-"`
	Assessment risk.Assessment           `json:"assessment"`
	Alert      *alerting.Alert           `json:"alert,omitempty"`
}

// ScoreIntake scores and classifies an intake, stores the snapshot and
// derives an alert when the level calls for one. A missing intake ID or
// submission time is filled in.
func (s *Service) ScoreIntake(ctx context.Context, in *screening.IntakeResponse) (*IntakeResult, error) {
	if in != nil {
		if in.ID == "" {
			in.ID = s.newID()
		}
		if in.SubmittedAt.IsZero() {
			in.SubmittedAt = s.now().UTC()
		}
	}
	a, err := s.classifier.Assess(in)
	if err != nil {
		s.metrics.Rejected("score_intake")
		return nil, err
	}

	if err := s.sink.SaveAssessment(ctx, *a); err != nil {
		return nil, fmt.Errorf("save assessment: %w", err)
	}
	s.assessments.Add(*a)
	s.metrics.Assessed(string(a.Level), a.Score)
	s.logger.Info().
		Str("patient_id", a.PatientID).
		Str("assessment_id", a.ID).
		Str("level", string(a.Level)).
		Float64("score", a.Score).
		Bool("self_harm", a.Scores.SelfHarm).
		Int("crisis_keywords", len(a.Keywords)).
		Msg("risk assessed")

	res := &IntakeResult{Intake: in, Assessment: *a}
	if alert, created := s.deriver.FromAssessment(*a); alert != nil {
		if created {
			if err := s.alertCreated(ctx, *alert); err != nil {
				return nil, err
			}
		}
		res.Alert = alert
	}

	s.explainer.AttachRisk(ctx, *a, s.saveExplanation)
	return res, nil
}

// BatchResult pairs one intake with its outcome.
type BatchResult struct {
	Index  int           `json:"index"`
	Result *IntakeResult `json:"result,omitempty"`
	Err    error         `json:"-"`
}

// ScoreBatch scores intakes concurrently. A failure only affects its own
// intake; results keep input order.
func (s *Service) ScoreBatch(ctx context.Context, intakes []*screening.IntakeResponse) []BatchResult {
	return runBatch(ctx, s.cfg.Batch.Concurrency, intakes, s.ScoreIntake)
}

// CurrentAssessment returns the patient's newest assessment.
func (s *Service) CurrentAssessment(patientID string) (risk.Assessment, bool) {
	return s.assessments.Current(patientID)
}

// PatientFor builds the ranking input from an assessment and the intake it
// came from.
func PatientFor(a risk.Assessment, in *screening.IntakeResponse) matching.Patient {
	p := matching.Patient{ID: a.PatientID, Level: a.Level}
	if in != nil {
		p.Needs = matching.InferNeeds(in.Text.Combined(), in.Preferences.Specialties)
		p.Language = in.Preferences.Language
		p.RequireLanguage = in.Preferences.RequireLanguage
		p.Format = matching.SessionFormat(in.Preferences.SessionFormat)
	}
	return p
}

// Rank ranks the loaded roster for p.
func (s *Service) Rank(ctx context.Context, p matching.Patient) (matching.Ranking, error) {
	start := time.Now()
	ranking, err := s.ranker.Rank(p, s.Roster())
	if err != nil {
		s.metrics.Rejected("rank")
		return matching.Ranking{}, err
	}
	s.metrics.Ranked(len(ranking.Candidates), time.Since(start))
	s.logger.Debug().
		Str("patient_id", p.ID).
		Int("candidates", len(ranking.Candidates)).
		Int("excluded", len(ranking.Excluded)).
		Msg("therapists ranked")
	return ranking, nil
}

// Assign creates a manual assignment to a named therapist. The therapist
// must be active, and a critical patient may only go to one who accepts
// high-risk patients. It fails with ErrCapacityExceeded when the therapist
// is full.
func (s *Service) Assign(ctx context.Context, req matching.Request) (*matching.Assignment, error) {
	if req.TherapistID != "" {
		t, ok := s.therapist(req.TherapistID)
		if !ok {
			return nil, &fault.ErrNotFound{Entity: "therapist", ID: req.TherapistID}
		}
		if err := s.eligible(req.PatientID, t); err != nil {
			s.metrics.Rejected("assign")
			return nil, err
		}
	}
	asg, err := s.assigner.Create(req)
	if err != nil {
		return nil, err
	}
	if err := s.assignmentCreated(ctx, *asg, 0); err != nil {
		return nil, err
	}
	return asg, nil
}

// AutoResult is the outcome of automatic assignment.
type AutoResult struct {
	Ranking    matching.Ranking     `json:"ranking"`
	Assignment *matching.Assignment `json:"assignment,omitempty"`
}

// AutoAssign ranks the roster for p and assigns the best candidate with a
// free slot. When nobody can take the patient it returns ErrNoCapacity and
// the patient waits on the review queue.
func (s *Service) AutoAssign(ctx context.Context, p matching.Patient, by string) (*AutoResult, error) {
	ranking, err := s.Rank(ctx, p)
	if err != nil {
		return nil, err
	}
	res := &AutoResult{Ranking: ranking}

	asg, err := s.assigner.Auto(p.ID, ranking.Candidates, by)
	var noCap *fault.ErrNoCapacity
	if errors.As(err, &noCap) {
		depth := s.assigner.Queue().Len()
		s.metrics.Queued(depth)
		s.logger.Warn().
			Str("patient_id", p.ID).
			Strs("tried", noCap.Tried).
			Int("queue_depth", depth).
			Msg("patient queued")
		return res, err
	}
	if err != nil {
		return nil, err
	}

	fallbacks := 0
	var chosen matching.Candidate
	for i, c := range ranking.Candidates {
		if c.TherapistID == asg.TherapistID {
			fallbacks, chosen = i, c
			break
		}
	}
	if err := s.assignmentCreated(ctx, *asg, fallbacks); err != nil {
		return nil, err
	}
	res.Assignment = asg

	t, _ := s.therapist(asg.TherapistID)
	s.explainer.AttachMatch(ctx, explain.MatchSubject{
		ID:        asg.ID,
		Patient:   p,
		Therapist: t,
		Candidate: chosen,
	}, s.saveExplanation)
	return res, nil
}

// eligible applies the ranker's hard rules to a manual pick.
func (s *Service) eligible(patientID string, t matching.Therapist) error {
	if !t.Active {
		return fault.Invalid("therapist_id", "therapist %s is not active", t.ID)
	}
	if a, ok := s.assessments.Current(patientID); ok && a.Level == risk.LevelCritical && !t.AcceptsHighRisk {
		return fault.Invalid("therapist_id", "therapist %s does not accept high-risk patients; patient %s is critical", t.ID, patientID)
	}
	return nil
}

// assignmentCreated persists a fresh assignment. When the save fails the
// assignment is discarded so memory and the store agree.
func (s *Service) assignmentCreated(ctx context.Context, asg matching.Assignment, fallbacks int) error {
	if err := s.sink.SaveAssignment(ctx, asg); err != nil {
		if derr := s.assigner.Discard(asg.ID); derr != nil {
			s.logger.Error().Err(derr).Str("assignment_id", asg.ID).Msg("discard unsaved assignment")
		}
		return fmt.Errorf("save assignment: %w", err)
	}
	s.metrics.AssignmentCreated(fallbacks)
	s.metrics.QueueDepth(s.assigner.Queue().Len())
	s.logger.Info().
		Str("patient_id", asg.PatientID).
		Str("therapist_id", asg.TherapistID).
		Str("assignment_id", asg.ID).
		Float64("match_score", asg.MatchScore).
		Int("fallbacks", fallbacks).
		Msg("assignment created")
	return nil
}

// EndAssignment ends an active assignment and frees its slot.
func (s *Service) EndAssignment(ctx context.Context, id, reason string) (*matching.Assignment, error) {
	asg, err := s.assigner.End(id, reason)
	if err != nil {
		var inv *fault.ErrInvariantViolation
		if errors.As(err, &inv) {
			s.logger.Error().Err(err).Str("assignment_id", id).Msg("capacity invariant violated")
		}
		return nil, err
	}
	if err := s.sink.SaveAssignment(ctx, *asg); err != nil {
		return nil, fmt.Errorf("save assignment: %w", err)
	}
	s.metrics.AssignmentEnded()
	s.logger.Info().
		Str("assignment_id", asg.ID).
		Str("therapist_id", asg.TherapistID).
		Msg("assignment ended")
	return asg, nil
}

// ActiveAssignment returns the patient's active assignment.
func (s *Service) ActiveAssignment(patientID string) (matching.Assignment, bool) {
	return s.assigner.Active(patientID)
}

// ReviewQueue lists patients waiting for manual assignment.
func (s *Service) ReviewQueue() []matching.ReviewItem { return s.assigner.Queue().List() }

// Capacity returns every therapist's caseload.
func (s *Service) Capacity() map[string]capacity.Usage { return s.ledger.Snapshot() }

// PredictionResult is the outcome of one dropout prediction.
type PredictionResult struct {
	Prediction dropout.Prediction `json:"prediction"`
	Alert      *alerting.Alert    `json:"alert,omitempty"`
}

// PredictDropout estimates dropout risk from a feature vector and derives
// an alert when intervention is recommended.
func (s *Service) PredictDropout(ctx context.Context, patientID string, fv dropout.FeatureVector) (*PredictionResult, error) {
	p, err := s.estimator.Predict(patientID, fv)
	if err != nil {
		s.metrics.Rejected("predict_dropout")
		return nil, err
	}
	if err := s.sink.AppendPrediction(ctx, *p); err != nil {
		return nil, fmt.Errorf("append prediction: %w", err)
	}
	if err := s.predictions.Append(*p); err != nil {
		return nil, err
	}
	s.metrics.Predicted(p.ModelVersion, p.InterventionRecommended)
	s.logger.Info().
		Str("patient_id", p.PatientID).
		Str("prediction_id", p.ID).
		Str("model_version", p.ModelVersion).
		Float64("probability", p.Probability).
		Bool("intervention", p.InterventionRecommended).
		Msg("dropout predicted")

	res := &PredictionResult{Prediction: *p}
	if alert, created := s.deriver.FromPrediction(*p); alert != nil {
		if created {
			if err := s.alertCreated(ctx, *alert); err != nil {
				return nil, err
			}
		}
		res.Alert = alert
	}
	return res, nil
}

// RecordSession stores a session record. When the session reached an
// outcome the patient's features are recomputed from history and a new
// prediction is returned; otherwise the result is nil.
func (s *Service) RecordSession(ctx context.Context, rec dropout.SessionRecord) (*PredictionResult, error) {
	if err := s.sessions.Upsert(rec); err != nil {
		s.metrics.Rejected("record_session")
		return nil, err
	}
	if err := s.sink.SaveSession(ctx, rec); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	if !rec.Status.Terminal() {
		return nil, nil
	}
	fv := dropout.FeaturesFrom(s.sessions.Patient(rec.PatientID), s.now())
	return s.PredictDropout(ctx, rec.PatientID, fv)
}

// Sessions returns a patient's recorded sessions.
func (s *Service) Sessions(patientID string) []dropout.SessionRecord {
	return s.sessions.Patient(patientID)
}

// Predictions returns every prediction for a patient, oldest first.
func (s *Service) Predictions(patientID string) []dropout.Prediction {
	return s.predictions.All(patientID)
}

func (s *Service) alertCreated(ctx context.Context, a alerting.Alert) error {
	if err := s.sink.SaveAlert(ctx, a); err != nil {
		return fmt.Errorf("save alert: %w", err)
	}
	s.metrics.AlertDerived(string(a.Type), string(a.Severity))
	s.logger.Warn().
		Str("patient_id", a.PatientID).
		Str("alert_id", a.ID).
		Str("type", string(a.Type)).
		Str("severity", string(a.Severity)).
		Str("source_id", a.SourceID).
		Msg("alert derived")
	return nil
}

// AcknowledgeAlert moves an open alert to acknowledged.
func (s *Service) AcknowledgeAlert(ctx context.Context, id, by string) (*alerting.Alert, error) {
	a, err := s.deriver.Acknowledge(id, by)
	if err != nil {
		return nil, err
	}
	return a, s.alertChanged(ctx, *a)
}

// ResolveAlert closes an open or acknowledged alert.
func (s *Service) ResolveAlert(ctx context.Context, id, notes string) (*alerting.Alert, error) {
	a, err := s.deriver.Resolve(id, notes)
	if err != nil {
		return nil, err
	}
	return a, s.alertChanged(ctx, *a)
}

func (s *Service) alertChanged(ctx context.Context, a alerting.Alert) error {
	if err := s.sink.SaveAlert(ctx, a); err != nil {
		return fmt.Errorf("save alert: %w", err)
	}
	s.metrics.AlertTransition(string(a.Status))
	s.logger.Info().
		Str("alert_id", a.ID).
		Str("status", string(a.Status)).
		Msg("alert updated")
	return nil
}

// Alerts lists alerts matching f, newest first.
func (s *Service) Alerts(f alerting.Filter) []alerting.Alert { return s.deriver.List(f) }

// Alert returns one alert.
func (s *Service) Alert(id string) (alerting.Alert, error) { return s.deriver.Get(id) }

func (s *Service) saveExplanation(e explain.Explanation) {
	s.metrics.Explained(string(e.Kind), string(e.Source))
	ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
	defer cancel()
	if err := s.sink.SaveExplanation(ctx, e); err != nil {
		s.logger.Warn().Err(err).Str("subject_id", e.SubjectID).Msg("failed to save explanation")
	}
}
