// Package capacity owns each therapist's current caseload. The caseload
// changes only through Reserve and Release, each atomic per therapist.
package capacity

import (
	"sort"
	"sync"

	"github.com/dineshreddykolli/mindcare-ai/internal/fault"
)

// Usage is a point-in-time view of one therapist's caseload.
type Usage struct {
	Current int `json:"current_caseload"`
	Max     int `json:"max_caseload"`
}

// Remaining is max minus current.
func (u Usage) Remaining() int { return u.Max - u.Current }

// Utilization is the used share of capacity, 0-100.
func (u Usage) Utilization() float64 {
	if u.Max == 0 {
		return 100
	}
	return float64(u.Current) / float64(u.Max) * 100
}

type slot struct {
	mu      sync.Mutex
	current int
	max     int
}

// Ledger is the single authoritative caseload counter. The map lock only
// guards registration; reserve and release contend per therapist.
type Ledger struct {
	mu    sync.RWMutex
	slots map[string]*slot
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{slots: make(map[string]*slot)}
}

// Register seeds a therapist's counter. It is called once per therapist
// when the roster is loaded.
func (l *Ledger) Register(therapistID string, max, current int) error {
	if therapistID == "" {
		return fault.Invalid("therapist_id", "is required")
	}
	if max < 0 {
		return fault.Invalid("max_caseload", "must be non-negative, got %d", max)
	}
	if current < 0 || current > max {
		return fault.Invalid("current_caseload", "%d outside [0,%d]", current, max)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.slots[therapistID]; ok {
		return &fault.ErrInvariantViolation{Component: "capacity", Detail: "therapist " + therapistID + " registered twice"}
	}
	l.slots[therapistID] = &slot{current: current, max: max}
	return nil
}

func (l *Ledger) slot(therapistID string) (*slot, error) {
	l.mu.RLock()
	s, ok := l.slots[therapistID]
	l.mu.RUnlock()
	if !ok {
		return nil, &fault.ErrNotFound{Entity: "therapist", ID: therapistID}
	}
	return s, nil
}

// Reserve takes one slot. It fails with ErrCapacityExceeded when the
// therapist is full.
func (l *Ledger) Reserve(therapistID string) error {
	s, err := l.slot(therapistID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current >= s.max {
		return &fault.ErrCapacityExceeded{TherapistID: therapistID, Max: s.max}
	}
	s.current++
	return nil
}

// Release frees one slot. Releasing at zero is a programming error.
func (l *Ledger) Release(therapistID string) error {
	s, err := l.slot(therapistID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == 0 {
		return &fault.ErrInvariantViolation{Component: "capacity", Detail: "release without reservation for therapist " + therapistID}
	}
	s.current--
	return nil
}

// Usage returns the therapist's current counters.
func (l *Ledger) Usage(therapistID string) (Usage, error) {
	s, err := l.slot(therapistID)
	if err != nil {
		return Usage{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return Usage{Current: s.current, Max: s.max}, nil
}

// Snapshot returns the usage of every registered therapist.
func (l *Ledger) Snapshot() map[string]Usage {
	l.mu.RLock()
	ids := make([]string, 0, len(l.slots))
	slots := make([]*slot, 0, len(l.slots))
	for id, s := range l.slots {
		ids = append(ids, id)
		slots = append(slots, s)
	}
	l.mu.RUnlock()

	out := make(map[string]Usage, len(ids))
	for i, s := range slots {
		s.mu.Lock()
		out[ids[i]] = Usage{Current: s.current, Max: s.max}
		s.mu.Unlock()
	}
	return out
}

// Therapists returns the registered IDs in sorted order.
func (l *Ledger) Therapists() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ids := make([]string, 0, len(l.slots))
	for id := range l.slots {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
