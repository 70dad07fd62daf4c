package matching

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dineshreddykolli/mindcare-ai/internal/capacity"
	"github.com/dineshreddykolli/mindcare-ai/internal/fault"
)

var fixedNow = func() time.Time { return time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC) }

func ledgerWith(t *testing.T, slots map[string]int) *capacity.Ledger {
	t.Helper()
	l := capacity.NewLedger()
	for id, max := range slots {
		require.NoError(t, l.Register(id, max, 0))
	}
	return l
}

func TestAssigner_CreateAndEnd(t *testing.T) {
	l := ledgerWith(t, map[string]int{"t1": 1})
	a := NewAssigner(l, nil, WithAssignerClock(fixedNow))

	asg, err := a.Create(Request{PatientID: "p1", TherapistID: "t1", AssignedBy: "admin"})
	require.NoError(t, err)
	assert.Equal(t, AssignmentActive, asg.Status)
	assert.Equal(t, "admin", asg.AssignedBy)
	assert.Equal(t, fixedNow(), asg.AssignedAt)

	u, _ := l.Usage("t1")
	assert.Equal(t, 1, u.Current)

	_, err = a.Create(Request{PatientID: "p2", TherapistID: "t1"})
	var capErr *fault.ErrCapacityExceeded
	require.True(t, errors.As(err, &capErr), "got %v", err)

	ended, err := a.End(asg.ID, "completed treatment")
	require.NoError(t, err)
	assert.Equal(t, AssignmentEnded, ended.Status)
	require.NotNil(t, ended.EndedAt)
	assert.Equal(t, "completed treatment", ended.EndReason)

	u, _ = l.Usage("t1")
	assert.Equal(t, 0, u.Current)

	_, err = a.End(asg.ID, "again")
	var tr *fault.ErrInvalidTransition
	assert.True(t, errors.As(err, &tr))

	_, ok := a.Active("p1")
	assert.False(t, ok)
}

func TestAssigner_OneActivePerPatient(t *testing.T) {
	l := ledgerWith(t, map[string]int{"t1": 5, "t2": 5})
	a := NewAssigner(l, nil)

	_, err := a.Create(Request{PatientID: "p1", TherapistID: "t1"})
	require.NoError(t, err)

	_, err = a.Create(Request{PatientID: "p1", TherapistID: "t2"})
	var tr *fault.ErrInvalidTransition
	require.True(t, errors.As(err, &tr), "got %v", err)

	u, _ := l.Usage("t2")
	assert.Equal(t, 0, u.Current, "failed assignment must not hold capacity")
}

func TestAssigner_AutoFallsBack(t *testing.T) {
	l := ledgerWith(t, map[string]int{"full": 0, "open": 2})
	a := NewAssigner(l, nil)

	asg, err := a.Auto("p1", []Candidate{{TherapistID: "full", Score: 90}, {TherapistID: "open", Score: 70}}, "auto")
	require.NoError(t, err)
	assert.Equal(t, "open", asg.TherapistID)
	assert.InDelta(t, 70, asg.MatchScore, 1e-9)
}

func TestAssigner_AutoExhaustedQueuesPatient(t *testing.T) {
	l := ledgerWith(t, map[string]int{"t1": 0})
	q := NewReviewQueue()
	a := NewAssigner(l, q, WithAssignerClock(fixedNow))

	_, err := a.Auto("p1", []Candidate{{TherapistID: "t1"}, {TherapistID: "ghost"}}, "auto")
	var nc *fault.ErrNoCapacity
	require.True(t, errors.As(err, &nc), "got %v", err)
	assert.Equal(t, "no capacity available — queued for manual review", err.Error())
	assert.Equal(t, []string{"t1", "ghost"}, nc.Tried)

	require.Equal(t, 1, q.Len())
	item := q.List()[0]
	assert.Equal(t, "p1", item.PatientID)
	assert.Equal(t, fixedNow(), item.QueuedAt)

	// An empty candidate list queues as well, without duplicating the entry.
	_, err = a.Auto("p1", nil, "auto")
	require.Error(t, err)
	assert.Equal(t, 1, q.Len())

	// A later manual assignment takes the patient off the queue.
	require.NoError(t, l.Register("t2", 1, 0))
	_, err = a.Create(Request{PatientID: "p1", TherapistID: "t2", AssignedBy: "admin"})
	require.NoError(t, err)
	assert.Equal(t, 0, q.Len())
}

func TestAssigner_ConcurrentLastSlot(t *testing.T) {
	for round := 0; round < 100; round++ {
		l := ledgerWith(t, map[string]int{"last": 1, "next": 5})
		a := NewAssigner(l, nil)
		candidates := []Candidate{{TherapistID: "last", Score: 80}, {TherapistID: "next", Score: 60}}

		results := make([]*Assignment, 2)
		errs := make([]error, 2)
		var wg sync.WaitGroup
		for i, p := range []string{"p1", "p2"} {
			wg.Add(1)
			go func(i int, p string) {
				defer wg.Done()
				results[i], errs[i] = a.Auto(p, candidates, "auto")
			}(i, p)
		}
		wg.Wait()

		require.NoError(t, errs[0])
		require.NoError(t, errs[1])
		got := map[string]int{}
		for _, r := range results {
			got[r.TherapistID]++
		}
		require.Equal(t, map[string]int{"last": 1, "next": 1}, got, "round %d", round)

		u, _ := l.Usage("last")
		require.Equal(t, 1, u.Current)
	}
}

func TestAssigner_ConcurrentCreateSameSlot(t *testing.T) {
	l := ledgerWith(t, map[string]int{"last": 1})
	a := NewAssigner(l, nil)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i, p := range []string{"p1", "p2"} {
		wg.Add(1)
		go func(i int, p string) {
			defer wg.Done()
			_, errs[i] = a.Create(Request{PatientID: p, TherapistID: "last"})
		}(i, p)
	}
	wg.Wait()

	var ok, exceeded int
	for _, err := range errs {
		var capErr *fault.ErrCapacityExceeded
		switch {
		case err == nil:
			ok++
		case errors.As(err, &capErr):
			exceeded++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, exceeded)
}

func TestAssigner_Discard(t *testing.T) {
	l := ledgerWith(t, map[string]int{"t1": 1})
	a := NewAssigner(l, nil)

	asg, err := a.Create(Request{PatientID: "p1", TherapistID: "t1"})
	require.NoError(t, err)
	require.NoError(t, a.Discard(asg.ID))

	u, _ := l.Usage("t1")
	assert.Equal(t, 0, u.Current, "discarded assignment must give its slot back")
	_, ok := a.Active("p1")
	assert.False(t, ok)
	_, err = a.Get(asg.ID)
	var nf *fault.ErrNotFound
	assert.True(t, errors.As(err, &nf))

	assert.True(t, errors.As(a.Discard(asg.ID), &nf))

	again, err := a.Create(Request{PatientID: "p1", TherapistID: "t1"})
	require.NoError(t, err)
	_, err = a.End(again.ID, "done")
	require.NoError(t, err)
	var tr *fault.ErrInvalidTransition
	assert.True(t, errors.As(a.Discard(again.ID), &tr), "ended assignments are kept")
}

func TestAssigner_Restore(t *testing.T) {
	l := ledgerWith(t, map[string]int{"t1": 2})
	a := NewAssigner(l, nil)
	require.NoError(t, a.Restore(Assignment{ID: "a1", PatientID: "p1", TherapistID: "t1", Status: AssignmentActive}))
	require.Error(t, a.Restore(Assignment{ID: "a1", PatientID: "p1", TherapistID: "t1", Status: AssignmentActive}))

	active, ok := a.Active("p1")
	require.True(t, ok)
	assert.Equal(t, "a1", active.ID)

	_, err := a.Create(Request{PatientID: "p1", TherapistID: "t1"})
	assert.Error(t, err)
}

func TestReviewQueue_FIFO(t *testing.T) {
	q := NewReviewQueue()
	assert.True(t, q.Push(ReviewItem{PatientID: "a"}))
	assert.True(t, q.Push(ReviewItem{PatientID: "b"}))
	assert.False(t, q.Push(ReviewItem{PatientID: "a"}))

	it, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "a", it.PatientID)
	it, _ = q.Pop()
	assert.Equal(t, "b", it.PatientID)
	_, ok = q.Pop()
	assert.False(t, ok)
}
