package matching

import (
	"strings"
	"time"

	"github.com/dineshreddykolli/mindcare-ai/internal/fault"
	"github.com/dineshreddykolli/mindcare-ai/internal/risk"
)

// SessionFormat is a delivery mode for therapy sessions.
type SessionFormat string

const (
	FormatInPerson   SessionFormat = "in_person"
	FormatTelehealth SessionFormat = "telehealth"
	FormatEither     SessionFormat = "either"
)

// Compatible reports whether a patient preference and a therapist offering
// overlap. An empty value means no constraint.
func (f SessionFormat) Compatible(other SessionFormat) bool {
	if f == "" || other == "" || f == FormatEither || other == FormatEither {
		return true
	}
	return f == other
}

// Therapist is one roster entry. CurrentCaseload and MaxCaseload seed the
// capacity ledger; after that the ledger is authoritative.
type Therapist struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Specialties     []string        `json:"specialties"`
	Languages       []string        `json:"languages"`
	Formats         []SessionFormat `json:"session_formats,omitempty"`
	MaxCaseload     int             `json:"max_caseload"`
	CurrentCaseload int             `json:"current_caseload"`
	AcceptsHighRisk bool            `json:"accepts_high_risk"`
	Active          bool            `json:"active"`
	SuccessRate     float64         `json:"success_rate"`
	YearsExperience int             `json:"years_experience"`
}

// Validate checks the roster entry.
func (t Therapist) Validate() error {
	if t.ID == "" {
		return fault.Invalid("therapist.id", "is required")
	}
	if t.MaxCaseload < 1 {
		return fault.Invalid("therapist.max_caseload", "must be at least 1, got %d", t.MaxCaseload)
	}
	if t.CurrentCaseload < 0 || t.CurrentCaseload > t.MaxCaseload {
		return fault.Invalid("therapist.current_caseload", "%d outside [0,%d]", t.CurrentCaseload, t.MaxCaseload)
	}
	if len(t.Specialties) == 0 {
		return fault.Invalid("therapist.specialties", "must not be empty")
	}
	if len(t.Languages) == 0 {
		return fault.Invalid("therapist.languages", "must not be empty")
	}
	if t.SuccessRate < 0 || t.SuccessRate > 100 {
		return fault.Invalid("therapist.success_rate", "%v outside [0,100]", t.SuccessRate)
	}
	return nil
}

func (t Therapist) offers(f SessionFormat) bool {
	if len(t.Formats) == 0 {
		return true
	}
	for _, tf := range t.Formats {
		if tf.Compatible(f) {
			return true
		}
	}
	return false
}

// Patient is everything the ranker needs to know about a patient.
type Patient struct {
	ID              string        `json:"patient_id"`
	Level           risk.Level    `json:"risk_level"`
	Needs           []string      `json:"needs"`
	Language        string        `json:"language,omitempty"`
	RequireLanguage bool          `json:"require_language,omitempty"`
	Format          SessionFormat `json:"session_format,omitempty"`
}

// RuleResult records one scoring rule's evaluation.
type RuleResult struct {
	Rule   string  `json:"rule"`
	Fired  bool    `json:"fired"`
	Points float64 `json:"points"`
	Detail string  `json:"detail,omitempty"`
}

// Rule names.
const (
	RuleSpecialty  = "specialty"
	RuleLanguage   = "language"
	RuleHighRisk   = "high_risk"
	RuleSuccess    = "success_rate"
	RuleFormat     = "session_format"
	RuleExperience = "experience"
)

// Candidate is a ranked therapist.
type Candidate struct {
	TherapistID       string       `json:"therapist_id"`
	Score             float64      `json:"score"`
	CapacityRemaining int          `json:"capacity_remaining"`
	CurrentCaseload   int          `json:"current_caseload"`
	Reasoning         []RuleResult `json:"reasoning"`
}

// Fired returns the names of the rules that contributed points.
func (c Candidate) Fired() []string {
	var out []string
	for _, r := range c.Reasoning {
		if r.Fired {
			out = append(out, r.Rule)
		}
	}
	return out
}

// Exclusion explains why a therapist was left out of a ranking.
type Exclusion struct {
	TherapistID string `json:"therapist_id"`
	Reason      string `json:"reason"`
}

// Ranking is the outcome of one ranking call.
type Ranking struct {
	PatientID  string      `json:"patient_id"`
	Candidates []Candidate `json:"candidates"`
	Excluded   []Exclusion `json:"excluded,omitempty"`
}

// AssignmentStatus is the lifecycle state of an assignment.
type AssignmentStatus string

const (
	AssignmentActive AssignmentStatus = "active"
	AssignmentEnded  AssignmentStatus = "ended"
)

// Assignment links a patient to a therapist. At most one assignment per
// patient is active at a time.
type Assignment struct {
	ID          string           `json:"id"`
	PatientID   string           `json:"patient_id"`
	TherapistID string           `json:"therapist_id"`
	MatchScore  float64          `json:"match_score"`
	Reasoning   []RuleResult     `json:"match_reasoning,omitempty"`
	Status      AssignmentStatus `json:"status"`
	AssignedBy  string           `json:"assigned_by"`
	AssignedAt  time.Time        `json:"assigned_at"`
	EndedAt     *time.Time       `json:"ended_at,omitempty"`
	EndReason   string           `json:"end_reason,omitempty"`
}

func normalize(values []string) map[string]bool {
	out := make(map[string]bool, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			out[v] = true
		}
	}
	return out
}
