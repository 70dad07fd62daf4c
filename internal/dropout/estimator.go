// Package dropout estimates how likely a patient is to disengage from care
// using a versioned linear model over session engagement features.
package dropout

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dineshreddykolli/mindcare-ai/internal/fault"
)

// DefaultInterventionThreshold is the probability at or above which an
// intervention is recommended.
const DefaultInterventionThreshold = 70

// Prediction is an append-only dropout estimate.
type Prediction struct {
	ID                      string        `json:"id"`
	PatientID               string        `json:"patient_id"`
	Probability             float64       `json:"probability"`
	ModelVersion            string        `json:"model_version"`
	Features                FeatureVector `json:"features"`
	RiskFactors             []string      `json:"risk_factors"`
	Confidence              float64       `json:"confidence"`
	InterventionRecommended bool          `json:"intervention_recommended"`
	PredictedAt             time.Time     `json:"predicted_at"`
}

// Estimator applies one model. It is safe for concurrent use.
type Estimator struct {
	model     Model
	threshold float64
	now       func() time.Time
	newID     func() string
}

// Option configures an Estimator.
type Option func(*Estimator)

// WithThreshold overrides the intervention threshold.
func WithThreshold(p float64) Option { return func(e *Estimator) { e.threshold = p } }

// WithClock overrides the prediction timestamp source.
func WithClock(now func() time.Time) Option { return func(e *Estimator) { e.now = now } }

// WithIDs overrides prediction ID generation.
func WithIDs(newID func() string) Option { return func(e *Estimator) { e.newID = newID } }

// NewEstimator builds an estimator for model.
func NewEstimator(model Model, opts ...Option) (*Estimator, error) {
	if err := model.Validate(); err != nil {
		return nil, err
	}
	e := &Estimator{
		model:     model,
		threshold: DefaultInterventionThreshold,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, o := range opts {
		o(e)
	}
	if e.threshold < 0 || e.threshold > 100 {
		return nil, fault.Invalid("dropout.intervention_threshold", "%v outside [0,100]", e.threshold)
	}
	return e, nil
}

// Model returns the estimator's model.
func (e *Estimator) Model() Model { return e.model }

// Probability evaluates the model. A missing sentiment trend contributes 0.
func (e *Estimator) Probability(fv FeatureVector) float64 {
	noShow, cancel, attendance := fv.Rates()
	trend := 0.0
	if fv.SentimentTrend != nil {
		trend = *fv.SentimentTrend
	}
	w := e.model.Weights
	p := e.model.Base +
		w.NoShowRate*noShow +
		w.CancelRate*cancel +
		w.DaysSinceLast*math.Log1p(float64(fv.DaysSinceLastSession)) -
		w.SentimentTrend*trend -
		w.AttendanceRate*attendance
	return math.Max(0, math.Min(100, p))
}

// Predict produces a new prediction for the patient.
func (e *Estimator) Predict(patientID string, fv FeatureVector) (*Prediction, error) {
	if patientID == "" {
		return nil, fault.Invalid("patient_id", "is required")
	}
	if err := fv.Validate(); err != nil {
		return nil, err
	}
	p := e.Probability(fv)
	return &Prediction{
		ID:                      e.newID(),
		PatientID:               patientID,
		Probability:             p,
		ModelVersion:            e.model.Version,
		Features:                fv,
		RiskFactors:             RiskFactors(fv),
		Confidence:              Confidence(fv),
		InterventionRecommended: p >= e.threshold,
		PredictedAt:             e.now().UTC(),
	}, nil
}

// RiskFactors lists the human-readable engagement concerns in fv.
func RiskFactors(fv FeatureVector) []string {
	factors := []string{}
	total := fv.Total()
	noShow, _, attendance := fv.Rates()

	if total > 0 {
		switch {
		case attendance < 0.5:
			factors = append(factors, "low attendance rate (<50%)")
		case attendance < 0.75:
			factors = append(factors, "moderate attendance rate")
		}
	}
	switch {
	case noShow > 0.3:
		factors = append(factors, "high no-show rate (>30%)")
	case noShow > 0.1:
		factors = append(factors, "some no-shows")
	}
	switch {
	case fv.DaysSinceLastSession > 30:
		factors = append(factors, fmt.Sprintf("no session in %d days", fv.DaysSinceLastSession))
	case fv.DaysSinceLastSession > 14:
		factors = append(factors, "session gap over 2 weeks")
	}
	if fv.SentimentTrend != nil && *fv.SentimentTrend < -0.3 {
		factors = append(factors, "declining sentiment")
	}
	if fv.AvgResponseTimeHours != nil && *fv.AvgResponseTimeHours > 72 {
		factors = append(factors, "slow response to communications")
	}
	if total > 0 && total <= 3 && fv.SessionsCancelled > 0 {
		factors = append(factors, "early cancellation pattern")
	}
	if total > 0 && fv.SessionsAttended == 0 {
		factors = append(factors, "never attended a session")
	}
	return factors
}

// Confidence reflects how complete the features are, on 20-100.
func Confidence(fv FeatureVector) float64 {
	c := 100.0
	switch total := fv.Total(); {
	case total == 0:
		c -= 40
	case total < 3:
		c -= 20
	}
	if fv.SentimentTrend == nil {
		c -= 10
	}
	if fv.AvgResponseTimeHours == nil {
		c -= 10
	}
	return math.Max(20, c)
}

// History keeps every prediction per patient, oldest first, and never
// changes one once added.
type History struct {
	mu        sync.RWMutex
	byPatient map[string][]Prediction
}

// NewHistory returns an empty history.
func NewHistory() *History {
	return &History{byPatient: make(map[string][]Prediction)}
}

// Append adds a prediction; an ID seen before is rejected.
func (h *History) Append(p Prediction) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, prev := range h.byPatient[p.PatientID] {
		if prev.ID == p.ID {
			return &fault.ErrInvariantViolation{Component: "dropout", Detail: "prediction " + p.ID + " appended twice"}
		}
	}
	p.RiskFactors = append([]string(nil), p.RiskFactors...)
	h.byPatient[p.PatientID] = append(h.byPatient[p.PatientID], p)
	return nil
}

// Latest returns the newest prediction for the patient.
func (h *History) Latest(patientID string) (Prediction, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	list := h.byPatient[patientID]
	if len(list) == 0 {
		return Prediction{}, false
	}
	return list[len(list)-1], true
}

// All returns every prediction for the patient.
func (h *History) All(patientID string) []Prediction {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]Prediction(nil), h.byPatient[patientID]...)
}
