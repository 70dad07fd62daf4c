package store

import (
	"context"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/dineshreddykolli/mindcare-ai/internal/alerting"
)

type alertRepo struct {
	drv *entsql.Driver
	seq *sequenceCounter
}

// Save keeps the original sequence on update so listings stay in creation
// order; only the lifecycle columns change.
func (r *alertRepo) Save(ctx context.Context, a alerting.Alert) error {
	seqNum, err := r.seq.Next(ctx)
	if err != nil {
		return err
	}
	data, err := encode(a)
	if err != nil {
		return err
	}
	query, args := builder().Insert("alerts").
		Columns("id", "sequence", "patient_id", "alert_type", "severity", "status", "source_kind", "source_id", "created_at", "data").
		Values(a.ID, seqNum, a.PatientID, string(a.Type), string(a.Severity), string(a.Status),
			string(a.SourceKind), a.SourceID, formatTime(a.CreatedAt), data).
		OnConflict(
			entsql.ConflictColumns("id"),
			entsql.ResolveWith(func(u *entsql.UpdateSet) {
				u.SetExcluded("status")
				u.SetExcluded("data")
			}),
		).
		Query()
	if err := exec(ctx, r.drv, query, args); err != nil {
		return fmt.Errorf("save alert %s: %w", a.ID, err)
	}
	return nil
}

func (r *alertRepo) Get(ctx context.Context, id string) (*alerting.Alert, error) {
	sel := builder().Select("data").From(entsql.Table("alerts")).Where(entsql.EQ("id", id))
	a, err := first[alerting.Alert](ctx, r.drv, sel)
	if err != nil {
		return nil, fmt.Errorf("get alert %s: %w", id, err)
	}
	return a, nil
}

func (r *alertRepo) List(ctx context.Context, q AlertQuery) ([]alerting.Alert, error) {
	sel := builder().Select("data").From(entsql.Table("alerts"))
	var preds []*entsql.Predicate
	if q.Status != "" {
		preds = append(preds, entsql.EQ("status", string(q.Status)))
	}
	if q.PatientID != "" {
		preds = append(preds, entsql.EQ("patient_id", q.PatientID))
	}
	if len(preds) > 0 {
		sel.Where(entsql.And(preds...))
	}
	sel.OrderBy(entsql.Desc("sequence"))
	if q.Limit > 0 {
		sel.Limit(q.Limit)
	}
	list, err := queryData[alerting.Alert](ctx, r.drv, sel)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	return list, nil
}
