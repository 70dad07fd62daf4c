package store

import (
	"context"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/dineshreddykolli/mindcare-ai/internal/dropout"
)

type predictionRepo struct {
	drv *entsql.Driver
	seq *sequenceCounter
}

func (r *predictionRepo) Append(ctx context.Context, p dropout.Prediction) error {
	seqNum, err := r.seq.Next(ctx)
	if err != nil {
		return err
	}
	data, err := encode(p)
	if err != nil {
		return err
	}
	query, args := builder().Insert("predictions").
		Columns("id", "sequence", "patient_id", "model_version", "probability", "predicted_at", "data").
		Values(p.ID, seqNum, p.PatientID, p.ModelVersion, p.Probability, formatTime(p.PredictedAt), data).
		Query()
	if err := exec(ctx, r.drv, query, args); err != nil {
		return fmt.Errorf("append prediction %s: %w", p.ID, err)
	}
	return nil
}

func (r *predictionRepo) ListByPatient(ctx context.Context, patientID string) ([]dropout.Prediction, error) {
	sel := builder().Select("data").From(entsql.Table("predictions")).
		Where(entsql.EQ("patient_id", patientID)).
		OrderBy("sequence")
	list, err := queryData[dropout.Prediction](ctx, r.drv, sel)
	if err != nil {
		return nil, fmt.Errorf("query predictions: %w", err)
	}
	return list, nil
}
