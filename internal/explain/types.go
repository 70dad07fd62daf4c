package explain

import (
	"time"

	"github.com/dineshreddykolli/mindcare-ai/internal/matching"
	"github.com/dineshreddykolli/mindcare-ai/internal/risk"
)

// Kind names what an explanation is about.
type Kind string

const (
	KindRisk  Kind = "assessment"
	KindMatch Kind = "match"
)

// Source records which path produced the text.
type Source string

const (
	SourceRules Source = "rules"
	SourceLLM   Source = "llm"
)

// Explanation is human-readable text attached to a decision.
type Explanation struct {
	Kind      Kind      `json:"kind"`
	SubjectID string    `json:"subject_id"`
	Source    Source    `json:"source"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// MatchSubject is one ranked candidate together with the patient it was
// ranked for.
type MatchSubject struct {
	// ID identifies the explanation subject, usually the assignment ID.
	// Empty means "<patient>:<therapist>".
	ID        string
	Patient   matching.Patient
	Therapist matching.Therapist
	Candidate matching.Candidate
}

func (m MatchSubject) subjectID() string {
	if m.ID != "" {
		return m.ID
	}
	return m.Patient.ID + ":" + m.Candidate.TherapistID
}

// riskView is the prompt input for a risk explanation.
type riskView struct {
	Level      risk.Level
	Score      float64
	Urgency    string
	Depression int
	DepBand    string
	Anxiety    int
	AnxBand    string
	SelfHarm   bool
	Keywords   []string
	Components risk.Components
}
