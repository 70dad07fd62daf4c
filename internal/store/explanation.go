package store

import (
	"context"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
)

type explanationRepo struct {
	drv *entsql.Driver
	seq *sequenceCounter
}

func (r *explanationRepo) Save(ctx context.Context, e Explanation) error {
	seqNum, err := r.seq.Next(ctx)
	if err != nil {
		return err
	}
	query, args := builder().Insert("explanations").
		Columns("subject_id", "sequence", "subject_kind", "source", "text", "created_at").
		Values(e.SubjectID, seqNum, e.SubjectKind, e.Source, e.Text, formatTime(e.CreatedAt)).
		OnConflict(entsql.ConflictColumns("subject_id"), entsql.ResolveWithNewValues()).
		Query()
	if err := exec(ctx, r.drv, query, args); err != nil {
		return fmt.Errorf("save explanation for %s: %w", e.SubjectID, err)
	}
	return nil
}

func (r *explanationRepo) Get(ctx context.Context, subjectID string) (*Explanation, error) {
	query, args := builder().Select("subject_kind", "source", "text", "created_at").
		From(entsql.Table("explanations")).
		Where(entsql.EQ("subject_id", subjectID)).
		Query()
	rows := &entsql.Rows{}
	if err := r.drv.Query(ctx, query, args, rows); err != nil {
		return nil, fmt.Errorf("get explanation for %s: %w", subjectID, err)
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	e := Explanation{SubjectID: subjectID}
	var created string
	if err := rows.Scan(&e.SubjectKind, &e.Source, &e.Text, &created); err != nil {
		return nil, fmt.Errorf("scan explanation: %w", err)
	}
	t, err := parseTime(created)
	if err != nil {
		return nil, fmt.Errorf("parse explanation time: %w", err)
	}
	e.CreatedAt = t
	return &e, nil
}
