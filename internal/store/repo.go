package store

import (
	"context"
	"time"

	"github.com/dineshreddykolli/mindcare-ai/internal/alerting"
	"github.com/dineshreddykolli/mindcare-ai/internal/dropout"
	"github.com/dineshreddykolli/mindcare-ai/internal/matching"
	"github.com/dineshreddykolli/mindcare-ai/internal/risk"
)

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit  int   // max results (0 = unlimited)
	After  int64 // sequence > After
	Before int64 // sequence < Before
}

// AssessmentRepo persists risk assessment snapshots. Snapshots are only
// ever inserted.
type AssessmentRepo interface {
	Save(ctx context.Context, a risk.Assessment) error
	// Latest returns the newest snapshot for the patient, or nil.
	Latest(ctx context.Context, patientID string) (*risk.Assessment, error)
	ListByPatient(ctx context.Context, patientID string) ([]risk.Assessment, error)
}

// PredictionRepo persists dropout predictions append-only.
type PredictionRepo interface {
	Append(ctx context.Context, p dropout.Prediction) error
	ListByPatient(ctx context.Context, patientID string) ([]dropout.Prediction, error)
}

// AlertQuery filters alert listings. Zero fields match everything.
type AlertQuery struct {
	Status    alerting.Status
	PatientID string
	Limit     int
}

// AlertRepo persists alerts and their lifecycle changes.
type AlertRepo interface {
	// Save inserts the alert or updates its lifecycle fields.
	Save(ctx context.Context, a alerting.Alert) error
	// Get returns the alert, or nil if it does not exist.
	Get(ctx context.Context, id string) (*alerting.Alert, error)
	List(ctx context.Context, q AlertQuery) ([]alerting.Alert, error)
}

// AssignmentRepo persists assignments.
type AssignmentRepo interface {
	Save(ctx context.Context, a matching.Assignment) error
	Get(ctx context.Context, id string) (*matching.Assignment, error)
	ListActive(ctx context.Context) ([]matching.Assignment, error)
}

// SessionRepo persists session records.
type SessionRepo interface {
	Save(ctx context.Context, rec dropout.SessionRecord) error
	ListByPatient(ctx context.Context, patientID string) ([]dropout.SessionRecord, error)
}

// Explanation is generated narrative text attached to a decision.
type Explanation struct {
	SubjectKind string
	SubjectID   string
	Source      string
	Text        string
	CreatedAt   time.Time
}

// ExplanationRepo persists explanation text by subject.
type ExplanationRepo interface {
	Save(ctx context.Context, e Explanation) error
	// Get returns the explanation for a subject, or nil.
	Get(ctx context.Context, subjectID string) (*Explanation, error)
}

// LLMRequestEventData captures the data for a single LLM request event.
type LLMRequestEventData struct {
	Provider     string
	Model        string
	Purpose      string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
}

// LLMEventRecord is a stored LLM request event.
type LLMEventRecord struct {
	ID        int64
	Timestamp time.Time
	LLMRequestEventData
}

// LLMUsage aggregates token usage for one group of events.
type LLMUsage struct {
	Key          string
	Calls        int
	InputTokens  int
	OutputTokens int
	AvgLatencyMs int64
}

// EventRepo provides append and query access to LLM request events.
type EventRepo interface {
	// AppendLLMRequest records an LLM API call event.
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error
	// QueryLLMEvents returns events newest first.
	QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMEventRecord, error)
	// GetLLMEvent returns one event, or nil.
	GetLLMEvent(ctx context.Context, id int64) (*LLMEventRecord, error)
	// LLMUsageByPurpose aggregates usage per purpose label.
	LLMUsageByPurpose(ctx context.Context) ([]LLMUsage, error)
	// LLMUsageByModel aggregates usage per model.
	LLMUsageByModel(ctx context.Context) ([]LLMUsage, error)
}
