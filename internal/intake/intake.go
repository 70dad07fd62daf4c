// Package intake decodes the JSON documents the triage core accepts:
// intake submissions, therapist rosters, session histories and raw dropout
// features. Every document is checked against an embedded JSON Schema
// before it is decoded, and loosely formatted fields are normalized.
package intake

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dineshreddykolli/mindcare-ai/internal/dropout"
	"github.com/dineshreddykolli/mindcare-ai/internal/fault"
	"github.com/dineshreddykolli/mindcare-ai/internal/matching"
	"github.com/dineshreddykolli/mindcare-ai/internal/screening"
)

// answers holds questionnaire answers given either in instrument order or
// keyed by item name.
type answers struct {
	list  []int
	named map[string]int
}

func (a *answers) UnmarshalJSON(b []byte) error {
	if err := json.Unmarshal(b, &a.list); err == nil {
		return nil
	}
	a.list = nil
	return json.Unmarshal(b, &a.named)
}

func (a answers) ordered(inst screening.Instrument) ([]int, error) {
	if a.named != nil {
		return screening.Ordered(inst, a.named)
	}
	return a.list, nil
}

type preferencesDoc struct {
	Language          string    `json:"language"`
	PreferredLanguage string    `json:"preferred_language"`
	RequireLanguage   bool      `json:"require_language"`
	SessionFormat     string    `json:"session_format"`
	TherapistGender   string    `json:"therapist_gender"`
	Specialties       LooseList `json:"specialties"`
}

type intakeDoc struct {
	ID          string             `json:"id"`
	PatientID   string             `json:"patient_id"`
	PHQ9        answers            `json:"phq9_responses"`
	GAD7        answers            `json:"gad7_responses"`
	Text        screening.FreeText `json:"text_responses"`
	Preferences preferencesDoc     `json:"preferences"`
	Sentiment   *float64           `json:"sentiment"`
	SubmittedAt *time.Time         `json:"submitted_at"`
}

// ParseIntake decodes an intake submission. A missing submitted_at is left
// zero for the caller to stamp.
func ParseIntake(raw []byte) (*screening.IntakeResponse, error) {
	if err := Validate(KindIntake, raw); err != nil {
		return nil, err
	}
	var doc intakeDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fault.Invalid("intake", "decode: %v", err)
	}

	dep, err := doc.PHQ9.ordered(screening.PHQ9)
	if err != nil {
		return nil, err
	}
	anx, err := doc.GAD7.ordered(screening.GAD7)
	if err != nil {
		return nil, err
	}
	if doc.Sentiment != nil && (*doc.Sentiment < -1 || *doc.Sentiment > 1) {
		return nil, fault.Invalid("intake.sentiment", "%v outside [-1,1]", *doc.Sentiment)
	}

	lang := doc.Preferences.Language
	if lang == "" {
		lang = doc.Preferences.PreferredLanguage
	}
	in := &screening.IntakeResponse{
		ID:         doc.ID,
		PatientID:  doc.PatientID,
		Depression: dep,
		Anxiety:    anx,
		Text:       doc.Text,
		Preferences: screening.Preferences{
			Language:        token(lang),
			RequireLanguage: doc.Preferences.RequireLanguage,
			SessionFormat:   sessionFormat(doc.Preferences.SessionFormat),
			TherapistGender: gender(doc.Preferences.TherapistGender),
			Specialties:     doc.Preferences.Specialties,
		},
		Sentiment: doc.Sentiment,
	}
	if doc.SubmittedAt != nil {
		in.SubmittedAt = doc.SubmittedAt.UTC()
	}
	return in, nil
}

func sessionFormat(s string) string {
	switch t := token(s); t {
	case "", "no_preference", "any":
		return ""
	case "hybrid", "both":
		return string(matching.FormatEither)
	case "in_person", "inperson", "office":
		return string(matching.FormatInPerson)
	case "telehealth", "virtual", "online", "video":
		return string(matching.FormatTelehealth)
	default:
		return t
	}
}

func gender(s string) string {
	if t := token(s); t != "no_preference" {
		return t
	}
	return ""
}

type therapistDoc struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Specialties     LooseList `json:"specialties"`
	Languages       LooseList `json:"languages"`
	Formats         LooseList `json:"session_formats"`
	MaxCaseload     int       `json:"max_caseload"`
	CurrentCaseload int       `json:"current_caseload"`
	AcceptsHighRisk bool      `json:"accepts_high_risk"`
	Active          *bool     `json:"active"`
	SuccessRate     float64   `json:"success_rate"`
	YearsExperience int       `json:"years_experience"`
}

// ParseRoster decodes a therapist roster. Therapists are active unless the
// document says otherwise. Specialties and languages must be non-empty
// after normalization.
func ParseRoster(raw []byte) ([]matching.Therapist, error) {
	if err := Validate(KindRoster, raw); err != nil {
		return nil, err
	}
	var doc struct {
		Therapists []therapistDoc `json:"therapists"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fault.Invalid("roster", "decode: %v", err)
	}

	seen := make(map[string]bool, len(doc.Therapists))
	out := make([]matching.Therapist, 0, len(doc.Therapists))
	for i, d := range doc.Therapists {
		field := fmt.Sprintf("roster/therapists/%d", i)
		if seen[d.ID] {
			return nil, fault.Invalid(field+"/id", "duplicate therapist %q", d.ID)
		}
		seen[d.ID] = true
		if len(d.Specialties) == 0 {
			return nil, fault.Invalid(field+"/specialties", "must not be empty")
		}
		if len(d.Languages) == 0 {
			return nil, fault.Invalid(field+"/languages", "must not be empty")
		}

		t := matching.Therapist{
			ID:              d.ID,
			Name:            d.Name,
			Specialties:     d.Specialties,
			Languages:       d.Languages,
			MaxCaseload:     d.MaxCaseload,
			CurrentCaseload: d.CurrentCaseload,
			AcceptsHighRisk: d.AcceptsHighRisk,
			Active:          d.Active == nil || *d.Active,
			SuccessRate:     d.SuccessRate,
			YearsExperience: d.YearsExperience,
		}
		for _, f := range d.Formats {
			if sf := sessionFormat(f); sf != "" {
				t.Formats = append(t.Formats, matching.SessionFormat(sf))
			}
		}
		if err := t.Validate(); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

type sessionDoc struct {
	ID                string    `json:"id"`
	PatientID         string    `json:"patient_id"`
	TherapistID       string    `json:"therapist_id"`
	ScheduledAt       time.Time `json:"scheduled_at"`
	Status            string    `json:"status"`
	Sentiment         *float64  `json:"sentiment"`
	ResponseTimeHours *float64  `json:"response_time_hours"`
	ClinicalNotes     string    `json:"clinical_notes"`
}

// ParseSessions decodes a session history.
func ParseSessions(raw []byte) ([]dropout.SessionRecord, error) {
	if err := Validate(KindSessions, raw); err != nil {
		return nil, err
	}
	var doc struct {
		Sessions []sessionDoc `json:"sessions"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fault.Invalid("sessions", "decode: %v", err)
	}

	out := make([]dropout.SessionRecord, 0, len(doc.Sessions))
	for i, d := range doc.Sessions {
		status, ok := sessionStatus(d.Status)
		if !ok {
			return nil, fault.Invalid(fmt.Sprintf("sessions/sessions/%d/status", i), "unknown status %q", d.Status)
		}
		out = append(out, dropout.SessionRecord{
			ID:                d.ID,
			PatientID:         d.PatientID,
			TherapistID:       d.TherapistID,
			ScheduledAt:       d.ScheduledAt.UTC(),
			Status:            status,
			Sentiment:         d.Sentiment,
			ResponseTimeHours: d.ResponseTimeHours,
			ClinicalNotes:     d.ClinicalNotes,
		})
	}
	return out, nil
}

func sessionStatus(s string) (dropout.SessionStatus, bool) {
	switch token(s) {
	case "scheduled", "booked":
		return dropout.SessionScheduled, true
	case "completed", "attended":
		return dropout.SessionCompleted, true
	case "cancelled", "canceled":
		return dropout.SessionCancelled, true
	case "no_show", "noshow", "missed":
		return dropout.SessionNoShow, true
	}
	return "", false
}

// ParseFeatures decodes a raw dropout feature vector for one patient.
func ParseFeatures(raw []byte) (string, dropout.FeatureVector, error) {
	if err := Validate(KindFeatures, raw); err != nil {
		return "", dropout.FeatureVector{}, err
	}
	var doc struct {
		PatientID string                `json:"patient_id"`
		Features  dropout.FeatureVector `json:"features"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return "", dropout.FeatureVector{}, fault.Invalid("features", "decode: %v", err)
	}
	if err := doc.Features.Validate(); err != nil {
		return "", dropout.FeatureVector{}, err
	}
	return doc.PatientID, doc.Features, nil
}
