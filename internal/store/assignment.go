package store

import (
	"context"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/dineshreddykolli/mindcare-ai/internal/matching"
)

type assignmentRepo struct {
	drv *entsql.Driver
	seq *sequenceCounter
}

func (r *assignmentRepo) Save(ctx context.Context, a matching.Assignment) error {
	seqNum, err := r.seq.Next(ctx)
	if err != nil {
		return err
	}
	data, err := encode(a)
	if err != nil {
		return err
	}
	query, args := builder().Insert("assignments").
		Columns("id", "sequence", "patient_id", "therapist_id", "status", "assigned_at", "data").
		Values(a.ID, seqNum, a.PatientID, a.TherapistID, string(a.Status), formatTime(a.AssignedAt), data).
		OnConflict(
			entsql.ConflictColumns("id"),
			entsql.ResolveWith(func(u *entsql.UpdateSet) {
				u.SetExcluded("status")
				u.SetExcluded("data")
			}),
		).
		Query()
	if err := exec(ctx, r.drv, query, args); err != nil {
		return fmt.Errorf("save assignment %s: %w", a.ID, err)
	}
	return nil
}

func (r *assignmentRepo) Get(ctx context.Context, id string) (*matching.Assignment, error) {
	sel := builder().Select("data").From(entsql.Table("assignments")).Where(entsql.EQ("id", id))
	a, err := first[matching.Assignment](ctx, r.drv, sel)
	if err != nil {
		return nil, fmt.Errorf("get assignment %s: %w", id, err)
	}
	return a, nil
}

func (r *assignmentRepo) ListActive(ctx context.Context) ([]matching.Assignment, error) {
	sel := builder().Select("data").From(entsql.Table("assignments")).
		Where(entsql.EQ("status", string(matching.AssignmentActive))).
		OrderBy("sequence")
	list, err := queryData[matching.Assignment](ctx, r.drv, sel)
	if err != nil {
		return nil, fmt.Errorf("list active assignments: %w", err)
	}
	return list, nil
}
