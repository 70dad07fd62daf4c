package matching

import (
	"sync"
	"time"
)

// ReviewItem is a patient waiting for a manual assignment.
type ReviewItem struct {
	PatientID string    `json:"patient_id"`
	Reason    string    `json:"reason"`
	Tried     []string  `json:"tried,omitempty"`
	QueuedAt  time.Time `json:"queued_at"`
}

// ReviewQueue is a FIFO of patients that automatic assignment could not
// place. A patient appears at most once.
type ReviewQueue struct {
	mu    sync.Mutex
	items []ReviewItem
}

// NewReviewQueue returns an empty queue.
func NewReviewQueue() *ReviewQueue { return &ReviewQueue{} }

// Push enqueues item and reports whether it was added.
func (q *ReviewQueue) Push(item ReviewItem) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, it := range q.items {
		if it.PatientID == item.PatientID {
			return false
		}
	}
	q.items = append(q.items, item)
	return true
}

// Pop removes and returns the oldest item.
func (q *ReviewQueue) Pop() (ReviewItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return ReviewItem{}, false
	}
	it := q.items[0]
	q.items = q.items[1:]
	return it, true
}

// Remove drops the patient from the queue, if present.
func (q *ReviewQueue) Remove(patientID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, it := range q.items {
		if it.PatientID == patientID {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the queue length.
func (q *ReviewQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// List returns a copy of the queue, oldest first.
func (q *ReviewQueue) List() []ReviewItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]ReviewItem(nil), q.items...)
}
