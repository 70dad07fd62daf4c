// Package alerting derives alerts from risk assessments and dropout
// predictions and tracks their acknowledgment lifecycle.
package alerting

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dineshreddykolli/mindcare-ai/internal/dropout"
	"github.com/dineshreddykolli/mindcare-ai/internal/fault"
	"github.com/dineshreddykolli/mindcare-ai/internal/risk"
)

// DefaultCriticalDropout is the dropout probability at or above which a
// dropout alert is critical rather than high.
const DefaultCriticalDropout = 85

type sourceKey struct {
	patientID string
	kind      SourceKind
	sourceID  string
}

// Deriver owns every alert. Creation is idempotent per patient and source
// snapshot; the check and the insert happen under one lock.
type Deriver struct {
	criticalDropout float64
	now             func() time.Time
	newID           func() string

	mu       sync.Mutex
	byID     map[string]*Alert
	bySource map[sourceKey]string
}

// Option configures a Deriver.
type Option func(*Deriver)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option { return func(d *Deriver) { d.now = now } }

// WithIDs overrides alert ID generation.
func WithIDs(newID func() string) Option { return func(d *Deriver) { d.newID = newID } }

// WithCriticalDropout sets the probability at which dropout alerts turn
// critical.
func WithCriticalDropout(p float64) Option { return func(d *Deriver) { d.criticalDropout = p } }

// NewDeriver returns an empty deriver.
func NewDeriver(opts ...Option) *Deriver {
	d := &Deriver{
		criticalDropout: DefaultCriticalDropout,
		now:             time.Now,
		newID:           uuid.NewString,
		byID:            make(map[string]*Alert),
		bySource:        make(map[sourceKey]string),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// FromAssessment derives the alert for an assessment. Crisis language or
// a positive self-harm item always raises a critical crisis alert whatever
// the level; otherwise only high and critical assessments alert. One
// snapshot yields at most one alert. It returns the alert and whether it
// was newly created.
func (d *Deriver) FromAssessment(a risk.Assessment) (*Alert, bool) {
	crisis := len(a.Keywords) > 0 || a.Scores.SelfHarm
	if !crisis && !a.Alerting() {
		return nil, false
	}

	alert := Alert{
		PatientID:  a.PatientID,
		SourceKind: SourceAssessment,
		SourceID:   a.ID,
	}
	switch {
	case crisis:
		alert.Type = TypeCrisisKeyword
		alert.Severity = SeverityCritical
		alert.Title = "Crisis indicators detected"
		var signals []string
		if a.Scores.SelfHarm {
			signals = append(signals, fmt.Sprintf("self-harm item answered %d", a.Scores.SelfHarmAnswer))
		}
		if len(a.Keywords) > 0 {
			signals = append(signals, "crisis language: "+strings.Join(a.Keywords, ", "))
		}
		alert.Description = fmt.Sprintf("Risk %s (%.1f/100); %s. Urgency: %s.",
			a.Level, a.Score, strings.Join(signals, "; "), a.Urgency)
	default:
		alert.Type = TypeHighRisk
		alert.Severity = Severity(a.Level)
		alert.Title = fmt.Sprintf("%s risk assessment", titleCase(string(a.Level)))
		alert.Description = fmt.Sprintf("Risk %s (%.1f/100), PHQ-9 %d, GAD-7 %d. Urgency: %s.",
			a.Level, a.Score, a.Scores.Depression, a.Scores.Anxiety, a.Urgency)
	}
	return d.derive(alert)
}

// FromPrediction derives the alert for a prediction that recommends
// intervention.
func (d *Deriver) FromPrediction(p dropout.Prediction) (*Alert, bool) {
	if !p.InterventionRecommended {
		return nil, false
	}
	sev := SeverityHigh
	if p.Probability >= d.criticalDropout {
		sev = SeverityCritical
	}
	desc := fmt.Sprintf("Dropout probability %.1f%% (model %s).", p.Probability, p.ModelVersion)
	if len(p.RiskFactors) > 0 {
		desc += " Factors: " + strings.Join(p.RiskFactors, "; ") + "."
	}
	return d.derive(Alert{
		PatientID:   p.PatientID,
		Type:        TypeDropoutRisk,
		Severity:    sev,
		Title:       "Dropout risk: intervention recommended",
		Description: desc,
		SourceKind:  SourcePrediction,
		SourceID:    p.ID,
	})
}

func (d *Deriver) derive(a Alert) (*Alert, bool) {
	key := sourceKey{patientID: a.PatientID, kind: a.SourceKind, sourceID: a.SourceID}

	d.mu.Lock()
	defer d.mu.Unlock()
	if id, ok := d.bySource[key]; ok {
		out := d.byID[id].clone()
		return &out, false
	}

	a.ID = d.newID()
	a.Status = StatusOpen
	a.CreatedAt = d.now().UTC()
	stored := a
	d.byID[a.ID] = &stored
	d.bySource[key] = a.ID
	return &a, true
}

// Acknowledge moves an open alert to acknowledged.
func (d *Deriver) Acknowledge(id, by string) (*Alert, error) {
	if strings.TrimSpace(by) == "" {
		return nil, fault.Invalid("acknowledged_by", "is required")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.byID[id]
	if !ok {
		return nil, &fault.ErrNotFound{Entity: "alert", ID: id}
	}
	if a.Status != StatusOpen {
		return nil, &fault.ErrInvalidTransition{Entity: "alert", ID: id, From: string(a.Status), Action: "acknowledge"}
	}
	at := d.now().UTC()
	a.Status = StatusAcknowledged
	a.AcknowledgedBy = by
	a.AcknowledgedAt = &at
	out := a.clone()
	return &out, nil
}

// Resolve closes an open or acknowledged alert.
func (d *Deriver) Resolve(id, notes string) (*Alert, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.byID[id]
	if !ok {
		return nil, &fault.ErrNotFound{Entity: "alert", ID: id}
	}
	if a.Status == StatusResolved {
		return nil, &fault.ErrInvalidTransition{Entity: "alert", ID: id, From: string(a.Status), Action: "resolve"}
	}
	at := d.now().UTC()
	a.Status = StatusResolved
	a.ResolvedAt = &at
	a.ResolutionNotes = notes
	out := a.clone()
	return &out, nil
}

// Restore loads previously persisted alerts so their lifecycle and the
// idempotency index survive a restart.
func (d *Deriver) Restore(alerts ...Alert) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, a := range alerts {
		if a.ID == "" {
			return fault.Invalid("alert.id", "is required")
		}
		switch a.Status {
		case StatusOpen, StatusAcknowledged, StatusResolved:
		default:
			return fault.Invalid("alert.status", "unknown status %q", a.Status)
		}
		if _, dup := d.byID[a.ID]; dup {
			continue
		}
		stored := a.clone()
		d.byID[a.ID] = &stored
		d.bySource[sourceKey{patientID: a.PatientID, kind: a.SourceKind, sourceID: a.SourceID}] = a.ID
	}
	return nil
}

// Get returns one alert.
func (d *Deriver) Get(id string) (Alert, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.byID[id]
	if !ok {
		return Alert{}, &fault.ErrNotFound{Entity: "alert", ID: id}
	}
	return a.clone(), nil
}

// List returns matching alerts, newest first.
func (d *Deriver) List(f Filter) []Alert {
	d.mu.Lock()
	out := make([]Alert, 0, len(d.byID))
	for _, a := range d.byID {
		if f.match(a) {
			out = append(out, a.clone())
		}
	}
	d.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
