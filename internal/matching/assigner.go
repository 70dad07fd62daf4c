package matching

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dineshreddykolli/mindcare-ai/internal/fault"
)

// Reserver is the write side of the capacity ledger.
type Reserver interface {
	Reserve(therapistID string) error
	Release(therapistID string) error
}

// Request asks for one specific assignment.
type Request struct {
	PatientID   string
	TherapistID string
	MatchScore  float64
	Reasoning   []RuleResult
	AssignedBy  string
}

// Assigner creates and ends assignments. Capacity is only ever changed
// through the ledger; the assigner itself guards the one-active-assignment
// per patient rule.
type Assigner struct {
	ledger Reserver
	queue  *ReviewQueue
	now    func() time.Time
	newID  func() string

	mu        sync.Mutex
	byID      map[string]*Assignment
	byPatient map[string]string
	pending   map[string]bool
}

// AssignerOption configures an Assigner.
type AssignerOption func(*Assigner)

// WithAssignerClock overrides the timestamp source.
func WithAssignerClock(now func() time.Time) AssignerOption {
	return func(a *Assigner) { a.now = now }
}

// WithAssignmentIDs overrides assignment ID generation.
func WithAssignmentIDs(newID func() string) AssignerOption {
	return func(a *Assigner) { a.newID = newID }
}

// NewAssigner builds an assigner over ledger. Exhausted automatic
// assignments are pushed onto queue.
func NewAssigner(ledger Reserver, queue *ReviewQueue, opts ...AssignerOption) *Assigner {
	if queue == nil {
		queue = NewReviewQueue()
	}
	a := &Assigner{
		ledger:    ledger,
		queue:     queue,
		now:       time.Now,
		newID:     uuid.NewString,
		byID:      make(map[string]*Assignment),
		byPatient: make(map[string]string),
		pending:   make(map[string]bool),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Queue returns the manual review queue.
func (a *Assigner) Queue() *ReviewQueue { return a.queue }

// Create assigns the patient to the requested therapist. It fails with
// ErrCapacityExceeded when the therapist is full.
func (a *Assigner) Create(req Request) (*Assignment, error) {
	if req.PatientID == "" {
		return nil, fault.Invalid("patient_id", "is required")
	}
	if req.TherapistID == "" {
		return nil, fault.Invalid("therapist_id", "is required")
	}
	if err := a.claim(req.PatientID); err != nil {
		return nil, err
	}
	if err := a.ledger.Reserve(req.TherapistID); err != nil {
		a.unclaim(req.PatientID)
		return nil, err
	}
	return a.commit(req), nil
}

// Auto walks candidates in rank order, reserving the first therapist with
// a free slot. A lost race for a slot moves on to the next candidate. When
// every candidate is exhausted the patient is queued for manual review and
// ErrNoCapacity is returned.
func (a *Assigner) Auto(patientID string, candidates []Candidate, by string) (*Assignment, error) {
	if patientID == "" {
		return nil, fault.Invalid("patient_id", "is required")
	}
	if err := a.claim(patientID); err != nil {
		return nil, err
	}

	tried := make([]string, 0, len(candidates))
	for _, c := range candidates {
		tried = append(tried, c.TherapistID)
		err := a.ledger.Reserve(c.TherapistID)
		if err == nil {
			return a.commit(Request{
				PatientID:   patientID,
				TherapistID: c.TherapistID,
				MatchScore:  c.Score,
				Reasoning:   c.Reasoning,
				AssignedBy:  by,
			}), nil
		}

		var capErr *fault.ErrCapacityExceeded
		var nf *fault.ErrNotFound
		if errors.As(err, &capErr) || errors.As(err, &nf) {
			continue
		}
		a.unclaim(patientID)
		return nil, err
	}

	a.unclaim(patientID)
	a.queue.Push(ReviewItem{
		PatientID: patientID,
		Reason:    "no capacity available",
		Tried:     tried,
		QueuedAt:  a.now().UTC(),
	})
	return nil, &fault.ErrNoCapacity{PatientID: patientID, Tried: tried}
}

// End closes an active assignment and releases its slot.
func (a *Assigner) End(assignmentID, reason string) (*Assignment, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	asg, ok := a.byID[assignmentID]
	if !ok {
		return nil, &fault.ErrNotFound{Entity: "assignment", ID: assignmentID}
	}
	if asg.Status != AssignmentActive {
		return nil, &fault.ErrInvalidTransition{Entity: "assignment", ID: assignmentID, From: string(asg.Status), Action: "end"}
	}
	if err := a.ledger.Release(asg.TherapistID); err != nil {
		return nil, err
	}

	at := a.now().UTC()
	asg.Status = AssignmentEnded
	asg.EndedAt = &at
	asg.EndReason = reason
	delete(a.byPatient, asg.PatientID)

	out := *asg
	return &out, nil
}

// Discard drops an active assignment that never took effect, such as one
// that could not be persisted, and releases its slot. Unlike End it leaves
// no record behind.
func (a *Assigner) Discard(assignmentID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	asg, ok := a.byID[assignmentID]
	if !ok {
		return &fault.ErrNotFound{Entity: "assignment", ID: assignmentID}
	}
	if asg.Status != AssignmentActive {
		return &fault.ErrInvalidTransition{Entity: "assignment", ID: assignmentID, From: string(asg.Status), Action: "discard"}
	}
	if err := a.ledger.Release(asg.TherapistID); err != nil {
		return err
	}
	delete(a.byID, assignmentID)
	if a.byPatient[asg.PatientID] == assignmentID {
		delete(a.byPatient, asg.PatientID)
	}
	return nil
}

// Restore registers an already persisted assignment. The ledger is left
// alone; the caller accounts for the slot.
func (a *Assigner) Restore(asg Assignment) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, dup := a.byID[asg.ID]; dup {
		return &fault.ErrInvariantViolation{Component: "matching", Detail: "assignment " + asg.ID + " restored twice"}
	}
	if asg.Status == AssignmentActive {
		if _, busy := a.byPatient[asg.PatientID]; busy {
			return &fault.ErrInvariantViolation{Component: "matching", Detail: "patient " + asg.PatientID + " has two active assignments"}
		}
		a.byPatient[asg.PatientID] = asg.ID
	}
	cp := asg
	a.byID[asg.ID] = &cp
	return nil
}

// Active returns the patient's active assignment.
func (a *Assigner) Active(patientID string) (Assignment, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id, ok := a.byPatient[patientID]
	if !ok {
		return Assignment{}, false
	}
	return *a.byID[id], true
}

// Get returns an assignment by ID.
func (a *Assigner) Get(id string) (Assignment, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	asg, ok := a.byID[id]
	if !ok {
		return Assignment{}, &fault.ErrNotFound{Entity: "assignment", ID: id}
	}
	return *asg, nil
}

// claim marks the patient as being assigned so two concurrent attempts for
// the same patient cannot both reserve capacity.
func (a *Assigner) claim(patientID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.byPatient[patientID]; ok {
		return &fault.ErrInvalidTransition{Entity: "patient", ID: patientID, From: "assigned", Action: "assign"}
	}
	if a.pending[patientID] {
		return &fault.ErrInvalidTransition{Entity: "patient", ID: patientID, From: "assignment in progress", Action: "assign"}
	}
	a.pending[patientID] = true
	return nil
}

func (a *Assigner) unclaim(patientID string) {
	a.mu.Lock()
	delete(a.pending, patientID)
	a.mu.Unlock()
}

func (a *Assigner) commit(req Request) *Assignment {
	asg := &Assignment{
		ID:          a.newID(),
		PatientID:   req.PatientID,
		TherapistID: req.TherapistID,
		MatchScore:  req.MatchScore,
		Reasoning:   req.Reasoning,
		Status:      AssignmentActive,
		AssignedBy:  req.AssignedBy,
		AssignedAt:  a.now().UTC(),
	}

	a.mu.Lock()
	delete(a.pending, req.PatientID)
	a.byID[asg.ID] = asg
	a.byPatient[req.PatientID] = asg.ID
	a.mu.Unlock()

	a.queue.Remove(req.PatientID)
	out := *asg
	return &out
}
