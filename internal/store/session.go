package store

import (
	"context"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/dineshreddykolli/mindcare-ai/internal/dropout"
)

type sessionRepo struct {
	drv *entsql.Driver
	seq *sequenceCounter
}

func (r *sessionRepo) Save(ctx context.Context, rec dropout.SessionRecord) error {
	seqNum, err := r.seq.Next(ctx)
	if err != nil {
		return err
	}
	data, err := encode(rec)
	if err != nil {
		return err
	}
	query, args := builder().Insert("sessions").
		Columns("id", "sequence", "patient_id", "status", "scheduled_at", "data").
		Values(rec.ID, seqNum, rec.PatientID, string(rec.Status), formatTime(rec.ScheduledAt), data).
		OnConflict(entsql.ConflictColumns("id"), entsql.ResolveWithNewValues()).
		Query()
	if err := exec(ctx, r.drv, query, args); err != nil {
		return fmt.Errorf("save session %s: %w", rec.ID, err)
	}
	return nil
}

func (r *sessionRepo) ListByPatient(ctx context.Context, patientID string) ([]dropout.SessionRecord, error) {
	sel := builder().Select("data").From(entsql.Table("sessions")).
		Where(entsql.EQ("patient_id", patientID)).
		OrderBy("scheduled_at", "id")
	list, err := queryData[dropout.SessionRecord](ctx, r.drv, sel)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return list, nil
}
