package record

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// PostgresSink archives records in Postgres. The unique index on
// (student_id, subject_id, date, period) makes Append idempotent, which
// is what lets the queue deliver at-least-once.
type PostgresSink struct {
	db *sql.DB
}

// NewPostgresSink wraps an open connection.
func NewPostgresSink(db *sql.DB) *PostgresSink {
	return &PostgresSink{db: db}
}

// EnsureSchema creates the attendance table if missing.
func (s *PostgresSink) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS attendance_records (
			id TEXT PRIMARY KEY,
			student_id TEXT NOT NULL,
			subject_id TEXT NOT NULL,
			date TEXT NOT NULL,
			period INT NOT NULL,
			present BOOLEAN NOT NULL,
			scan_timestamp TIMESTAMPTZ NOT NULL,
			device_id TEXT NOT NULL DEFAULT '',
			network_verified BOOLEAN NOT NULL DEFAULT FALSE,
			session_id TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (student_id, subject_id, date, period)
		)
	`)
	return err
}

// Append inserts a record; duplicate deliveries are dropped silently.
func (s *PostgresSink) Append(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attendance_records
			(id, student_id, subject_id, date, period, present, scan_timestamp, device_id, network_verified, session_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (student_id, subject_id, date, period) DO NOTHING
	`, rec.ID, rec.StudentID, rec.SubjectID, rec.Date, rec.Period, rec.Present,
		rec.ScanTimestamp, rec.DeviceID, rec.NetworkVerifiedAtScan, rec.SessionID)
	return err
}

// List returns records matching the filter, newest first.
func (s *PostgresSink) List(ctx context.Context, f Filter) ([]Record, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	query := `SELECT id, student_id, subject_id, date, period, present, scan_timestamp, device_id, network_verified, session_id
		FROM attendance_records`
	args := []any{}
	clauses := []string{}
	if f.StudentID != "" {
		args = append(args, f.StudentID)
		clauses = append(clauses, fmt.Sprintf("student_id = $%d", len(args)))
	}
	if f.SubjectID != "" {
		args = append(args, f.SubjectID)
		clauses = append(clauses, fmt.Sprintf("subject_id = $%d", len(args)))
	}
	if f.Date != "" {
		args = append(args, f.Date)
		clauses = append(clauses, fmt.Sprintf("date = $%d", len(args)))
	}
	for i, c := range clauses {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += fmt.Sprintf(" ORDER BY scan_timestamp DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.StudentID, &r.SubjectID, &r.Date, &r.Period, &r.Present,
			&r.ScanTimestamp, &r.DeviceID, &r.NetworkVerifiedAtScan, &r.SessionID); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
