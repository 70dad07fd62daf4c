package risk

import (
	"sort"
	"sync"
)

// History keeps every assessment snapshot per patient. Snapshots are
// copied in and out, so callers can never mutate a stored assessment.
type History struct {
	mu        sync.RWMutex
	byPatient map[string][]Assessment
}

// NewHistory returns an empty history.
func NewHistory() *History {
	return &History{byPatient: make(map[string][]Assessment)}
}

// Add records a snapshot. Snapshots are kept ordered by AssessedAt.
func (h *History) Add(a Assessment) {
	h.mu.Lock()
	defer h.mu.Unlock()
	list := append(h.byPatient[a.PatientID], a.Clone())
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].AssessedAt.Before(list[j].AssessedAt)
	})
	h.byPatient[a.PatientID] = list
}

// Current returns the newest snapshot for a patient.
func (h *History) Current(patientID string) (Assessment, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	list := h.byPatient[patientID]
	if len(list) == 0 {
		return Assessment{}, false
	}
	return list[len(list)-1].Clone(), true
}

// All returns every snapshot for a patient, oldest first.
func (h *History) All(patientID string) []Assessment {
	h.mu.RLock()
	defer h.mu.RUnlock()
	list := h.byPatient[patientID]
	out := make([]Assessment, len(list))
	for i, a := range list {
		out[i] = a.Clone()
	}
	return out
}
