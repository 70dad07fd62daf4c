package risk

import (
	"time"

	"github.com/dineshreddykolli/mindcare-ai/internal/screening"
)

// Level is the categorical risk level.
type Level string

const (
	LevelLow      Level = "low"
	LevelModerate Level = "moderate"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

// Rank orders levels from low (0) to critical (3). Unknown levels rank -1.
func (l Level) Rank() int {
	switch l {
	case LevelLow:
		return 0
	case LevelModerate:
		return 1
	case LevelHigh:
		return 2
	case LevelCritical:
		return 3
	default:
		return -1
	}
}

// AtLeast reports whether l is as severe as other.
func (l Level) AtLeast(other Level) bool { return l.Rank() >= other.Rank() }

// ParseLevel validates a level string.
func ParseLevel(s string) (Level, bool) {
	l := Level(s)
	return l, l.Rank() >= 0
}

// Input is everything the classifier reads.
type Input struct {
	Depression int
	Anxiety    int
	SelfHarm   bool

	// Sentiment in [-1,1]; nil when unavailable.
	Sentiment *float64
	Text      string
}

// Components are the normalized inputs of the weighted blend, each on 0-100.
type Components struct {
	Depression float64 `json:"depression_norm"`
	Anxiety    float64 `json:"anxiety_norm"`
	Sentiment  float64 `json:"sentiment_component"`
	Crisis     float64 `json:"crisis_component"`
}

// Result is the outcome of a classification.
type Result struct {
	Components Components `json:"components"`
	Score      float64    `json:"overall_score"`
	Level      Level      `json:"risk_level"`
	Urgency    string     `json:"recommended_urgency"`
	Keywords   []string   `json:"crisis_keywords"`
	Thresholds Thresholds `json:"thresholds"`
}

// Assessment is an immutable risk snapshot. A re-assessment creates a new
// snapshot; the previous one is superseded but kept.
type Assessment struct {
	ID         string           `json:"id"`
	PatientID  string           `json:"patient_id"`
	IntakeID   string           `json:"intake_id"`
	Scores     screening.Scores `json:"scores"`
	Sentiment  *float64         `json:"sentiment,omitempty"`
	Keywords   []string         `json:"crisis_keywords"`
	Components Components       `json:"components"`
	Score      float64          `json:"overall_score"`
	Level      Level            `json:"risk_level"`
	Urgency    string           `json:"recommended_urgency"`
	Thresholds Thresholds       `json:"thresholds"`
	AssessedAt time.Time        `json:"assessed_at"`
}

// Clone returns a deep copy.
func (a Assessment) Clone() Assessment {
	out := a
	out.Keywords = append([]string(nil), a.Keywords...)
	if a.Sentiment != nil {
		s := *a.Sentiment
		out.Sentiment = &s
	}
	return out
}

// Alerting reports whether the snapshot should raise an alert.
func (a Assessment) Alerting() bool { return a.Level.AtLeast(LevelHigh) }
