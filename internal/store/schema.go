package store

import (
	"context"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
)

// Every record table keeps the full domain value as JSON in data, plus the
// columns needed for filtering and ordering. sequence comes from the
// global counter and orders rows across tables.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS assessments (
		id TEXT PRIMARY KEY,
		sequence INTEGER NOT NULL,
		patient_id TEXT NOT NULL,
		risk_level TEXT NOT NULL,
		overall_score REAL NOT NULL,
		assessed_at TEXT NOT NULL,
		data TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS assessments_patient ON assessments (patient_id, sequence)`,

	`CREATE TABLE IF NOT EXISTS predictions (
		id TEXT PRIMARY KEY,
		sequence INTEGER NOT NULL,
		patient_id TEXT NOT NULL,
		model_version TEXT NOT NULL,
		probability REAL NOT NULL,
		predicted_at TEXT NOT NULL,
		data TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS predictions_patient ON predictions (patient_id, sequence)`,

	`CREATE TABLE IF NOT EXISTS alerts (
		id TEXT PRIMARY KEY,
		sequence INTEGER NOT NULL,
		patient_id TEXT NOT NULL,
		alert_type TEXT NOT NULL,
		severity TEXT NOT NULL,
		status TEXT NOT NULL,
		source_kind TEXT NOT NULL,
		source_id TEXT NOT NULL,
		created_at TEXT NOT NULL,
		data TEXT NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS alerts_source ON alerts (patient_id, source_kind, source_id)`,
	`CREATE INDEX IF NOT EXISTS alerts_status ON alerts (status, sequence)`,

	`CREATE TABLE IF NOT EXISTS assignments (
		id TEXT PRIMARY KEY,
		sequence INTEGER NOT NULL,
		patient_id TEXT NOT NULL,
		therapist_id TEXT NOT NULL,
		status TEXT NOT NULL,
		assigned_at TEXT NOT NULL,
		data TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS assignments_status ON assignments (status, sequence)`,

	`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		sequence INTEGER NOT NULL,
		patient_id TEXT NOT NULL,
		status TEXT NOT NULL,
		scheduled_at TEXT NOT NULL,
		data TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS sessions_patient ON sessions (patient_id, scheduled_at)`,

	`CREATE TABLE IF NOT EXISTS explanations (
		subject_id TEXT PRIMARY KEY,
		sequence INTEGER NOT NULL,
		subject_kind TEXT NOT NULL,
		source TEXT NOT NULL,
		text TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS llm_request_events (
		sequence INTEGER PRIMARY KEY,
		timestamp TEXT NOT NULL,
		provider TEXT NOT NULL,
		model TEXT NOT NULL,
		purpose TEXT NOT NULL,
		input_tokens INTEGER NOT NULL DEFAULT 0,
		output_tokens INTEGER NOT NULL DEFAULT 0,
		latency_ms INTEGER NOT NULL DEFAULT 0,
		success INTEGER NOT NULL,
		error_message TEXT NOT NULL DEFAULT '',
		request_body TEXT NOT NULL DEFAULT '',
		response_body TEXT NOT NULL DEFAULT ''
	)`,
}

func migrate(ctx context.Context, drv *entsql.Driver) error {
	for _, stmt := range schema {
		if err := drv.Exec(ctx, stmt, []any{}, nil); err != nil {
			return fmt.Errorf("exec %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' || r == '(' {
			return s[:i]
		}
	}
	return s
}
