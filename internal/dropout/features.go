package dropout

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/dineshreddykolli/mindcare-ai/internal/fault"
)

// rateEpsilon keeps the rates defined for patients with no sessions.
const rateEpsilon = 1e-9

// FeatureVector is the engagement summary of one patient.
type FeatureVector struct {
	SessionsAttended     int      `json:"sessions_attended"`
	SessionsCancelled    int      `json:"sessions_cancelled"`
	SessionsNoShow       int      `json:"sessions_no_show"`
	AvgResponseTimeHours *float64 `json:"avg_response_time_hours,omitempty"`
	SentimentTrend       *float64 `json:"sentiment_trend,omitempty"`
	DaysSinceLastSession int      `json:"days_since_last_session"`
}

// Validate rejects negative counts and non-finite values.
func (f FeatureVector) Validate() error {
	if f.SessionsAttended < 0 || f.SessionsCancelled < 0 || f.SessionsNoShow < 0 {
		return fault.Invalid("sessions", "counts must be non-negative")
	}
	if f.DaysSinceLastSession < 0 {
		return fault.Invalid("days_since_last_session", "must be non-negative, got %d", f.DaysSinceLastSession)
	}
	if f.AvgResponseTimeHours != nil {
		v := *f.AvgResponseTimeHours
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fault.Invalid("avg_response_time_hours", "must be a non-negative number, got %v", v)
		}
	}
	if f.SentimentTrend != nil {
		v := *f.SentimentTrend
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fault.Invalid("sentiment_trend", "must be finite")
		}
	}
	return nil
}

// Total is the number of scheduled sessions that reached an outcome.
func (f FeatureVector) Total() int {
	return f.SessionsAttended + f.SessionsCancelled + f.SessionsNoShow
}

// Rates returns the no-show, cancellation and attendance rates.
func (f FeatureVector) Rates() (noShow, cancel, attendance float64) {
	total := float64(f.Total()) + rateEpsilon
	return float64(f.SessionsNoShow) / total,
		float64(f.SessionsCancelled) / total,
		float64(f.SessionsAttended) / total
}

// SessionStatus is the lifecycle state of a therapy session.
type SessionStatus string

const (
	SessionScheduled SessionStatus = "scheduled"
	SessionCompleted SessionStatus = "completed"
	SessionCancelled SessionStatus = "cancelled"
	SessionNoShow    SessionStatus = "no_show"
)

// Terminal reports whether the session reached an outcome.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionCancelled || s == SessionNoShow
}

// SessionRecord is one scheduled session and its outcome.
type SessionRecord struct {
	ID                string        `json:"id"`
	PatientID         string        `json:"patient_id"`
	TherapistID       string        `json:"therapist_id,omitempty"`
	ScheduledAt       time.Time     `json:"scheduled_at"`
	Status            SessionStatus `json:"status"`
	Sentiment         *float64      `json:"sentiment,omitempty"`
	ResponseTimeHours *float64      `json:"response_time_hours,omitempty"`
	ClinicalNotes     string        `json:"clinical_notes,omitempty"`
}

// FeaturesFrom summarizes a patient's session history as of now.
// The sentiment trend is the last minus the first sentiment of attended
// sessions, and needs at least two of them.
func FeaturesFrom(records []SessionRecord, now time.Time) FeatureVector {
	sorted := append([]SessionRecord(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ScheduledAt.Before(sorted[j].ScheduledAt) })

	var (
		fv         FeatureVector
		last       time.Time
		sentiments []float64
		respSum    float64
		respN      int
	)
	for _, r := range sorted {
		switch r.Status {
		case SessionCompleted:
			fv.SessionsAttended++
			if r.ScheduledAt.After(last) {
				last = r.ScheduledAt
			}
			if r.Sentiment != nil {
				sentiments = append(sentiments, *r.Sentiment)
			}
		case SessionCancelled:
			fv.SessionsCancelled++
		case SessionNoShow:
			fv.SessionsNoShow++
		}
		if r.ResponseTimeHours != nil {
			respSum += *r.ResponseTimeHours
			respN++
		}
	}

	if last.IsZero() && len(sorted) > 0 {
		last = sorted[0].ScheduledAt
	}
	if !last.IsZero() && now.After(last) {
		fv.DaysSinceLastSession = int(now.Sub(last).Hours() / 24)
	}
	if respN > 0 {
		avg := respSum / float64(respN)
		fv.AvgResponseTimeHours = &avg
	}
	if len(sentiments) >= 2 {
		trend := sentiments[len(sentiments)-1] - sentiments[0]
		fv.SentimentTrend = &trend
	}
	return fv
}

// SessionLog stores session records. A record that reached an outcome is
// frozen except for its clinical notes.
type SessionLog struct {
	mu      sync.RWMutex
	records map[string]SessionRecord
}

// NewSessionLog returns an empty log.
func NewSessionLog() *SessionLog {
	return &SessionLog{records: make(map[string]SessionRecord)}
}

// Upsert records a new session or a status change.
func (l *SessionLog) Upsert(rec SessionRecord) error {
	if rec.ID == "" || rec.PatientID == "" {
		return fault.Invalid("session", "id and patient_id are required")
	}
	switch rec.Status {
	case SessionScheduled, SessionCompleted, SessionCancelled, SessionNoShow:
	default:
		return fault.Invalid("session.status", "unknown status %q", rec.Status)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	prev, ok := l.records[rec.ID]
	if ok && prev.Status.Terminal() {
		notes := rec.ClinicalNotes
		rec.ClinicalNotes = prev.ClinicalNotes
		if !sameRecord(prev, rec) {
			return &fault.ErrInvalidTransition{Entity: "session", ID: rec.ID, From: string(prev.Status), Action: "modify"}
		}
		rec.ClinicalNotes = notes
	}
	if ok && prev.PatientID != rec.PatientID {
		return &fault.ErrInvalidTransition{Entity: "session", ID: rec.ID, From: "owned by " + prev.PatientID, Action: "reassign"}
	}
	l.records[rec.ID] = rec
	return nil
}

// Patient returns the patient's records ordered by schedule time.
func (l *SessionLog) Patient(patientID string) []SessionRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []SessionRecord
	for _, r := range l.records {
		if r.PatientID == patientID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ScheduledAt.Equal(out[j].ScheduledAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].ScheduledAt.Before(out[j].ScheduledAt)
	})
	return out
}

func sameRecord(a, b SessionRecord) bool {
	return a.ID == b.ID &&
		a.PatientID == b.PatientID &&
		a.TherapistID == b.TherapistID &&
		a.ScheduledAt.Equal(b.ScheduledAt) &&
		a.Status == b.Status &&
		sameFloat(a.Sentiment, b.Sentiment) &&
		sameFloat(a.ResponseTimeHours, b.ResponseTimeHours)
}

func sameFloat(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
