package store

import (
	"context"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/dineshreddykolli/mindcare-ai/internal/risk"
)

type assessmentRepo struct {
	drv *entsql.Driver
	seq *sequenceCounter
}

func (r *assessmentRepo) Save(ctx context.Context, a risk.Assessment) error {
	seqNum, err := r.seq.Next(ctx)
	if err != nil {
		return err
	}
	data, err := encode(a)
	if err != nil {
		return err
	}
	query, args := builder().Insert("assessments").
		Columns("id", "sequence", "patient_id", "risk_level", "overall_score", "assessed_at", "data").
		Values(a.ID, seqNum, a.PatientID, string(a.Level), a.Score, formatTime(a.AssessedAt), data).
		Query()
	if err := exec(ctx, r.drv, query, args); err != nil {
		return fmt.Errorf("save assessment %s: %w", a.ID, err)
	}
	return nil
}

func (r *assessmentRepo) Latest(ctx context.Context, patientID string) (*risk.Assessment, error) {
	sel := builder().Select("data").From(entsql.Table("assessments")).
		Where(entsql.EQ("patient_id", patientID)).
		OrderBy(entsql.Desc("sequence"))
	a, err := first[risk.Assessment](ctx, r.drv, sel)
	if err != nil {
		return nil, fmt.Errorf("query latest assessment: %w", err)
	}
	return a, nil
}

func (r *assessmentRepo) ListByPatient(ctx context.Context, patientID string) ([]risk.Assessment, error) {
	sel := builder().Select("data").From(entsql.Table("assessments")).
		Where(entsql.EQ("patient_id", patientID)).
		OrderBy("sequence")
	list, err := queryData[risk.Assessment](ctx, r.drv, sel)
	if err != nil {
		return nil, fmt.Errorf("query assessments: %w", err)
	}
	return list, nil
}
