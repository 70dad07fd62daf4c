package alerting

import "time"

// Status is the alert lifecycle state: open, then acknowledged, then
// resolved. Resolved is terminal.
type Status string

const (
	StatusOpen         Status = "open"
	StatusAcknowledged Status = "acknowledged"
	StatusResolved     Status = "resolved"
)

// Type classifies what raised the alert.
type Type string

const (
	TypeHighRisk      Type = "high_risk"
	TypeCrisisKeyword Type = "crisis_keyword"
	TypeDropoutRisk   Type = "dropout_risk"
)

// Severity of an alert.
type Severity string

const (
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// SourceKind names the snapshot an alert was derived from.
type SourceKind string

const (
	SourceAssessment SourceKind = "assessment"
	SourcePrediction SourceKind = "prediction"
)

// Alert is an actionable notification.
type Alert struct {
	ID              string     `json:"id"`
	PatientID       string     `json:"patient_id"`
	Type            Type       `json:"alert_type"`
	Severity        Severity   `json:"severity"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	SourceKind      SourceKind `json:"source_kind"`
	SourceID        string     `json:"source_id"`
	Status          Status     `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	AcknowledgedBy  string     `json:"acknowledged_by,omitempty"`
	AcknowledgedAt  *time.Time `json:"acknowledged_at,omitempty"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
	ResolutionNotes string     `json:"resolution_notes,omitempty"`
}

func (a Alert) clone() Alert {
	out := a
	if a.AcknowledgedAt != nil {
		t := *a.AcknowledgedAt
		out.AcknowledgedAt = &t
	}
	if a.ResolvedAt != nil {
		t := *a.ResolvedAt
		out.ResolvedAt = &t
	}
	return out
}

// Filter narrows List results. Zero fields match everything.
type Filter struct {
	Status    Status
	PatientID string
	Type      Type
}

func (f Filter) match(a *Alert) bool {
	return (f.Status == "" || a.Status == f.Status) &&
		(f.PatientID == "" || a.PatientID == f.PatientID) &&
		(f.Type == "" || a.Type == f.Type)
}
