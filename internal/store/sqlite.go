package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"fairplay/internal/session"
)

// Schema for the report store. The full report is kept as a JSON document;
// the indexed columns exist for listing and retention queries only.
const schema = `
CREATE TABLE IF NOT EXISTS reports (
    session_id  TEXT PRIMARY KEY,
    exercise    TEXT NOT NULL,
    athlete     TEXT,
    created_ns  INTEGER NOT NULL,
    validity    TEXT NOT NULL,
    risk_score  REAL NOT NULL,
    rep_count   INTEGER NOT NULL,
    report_json TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_reports_created ON reports(created_ns);
CREATE INDEX IF NOT EXISTS idx_reports_validity ON reports(validity, created_ns);
CREATE INDEX IF NOT EXISTS idx_reports_exercise ON reports(exercise, created_ns);
`

// SQLite is the durable report store.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path and applies the schema.
func OpenSQLite(path string, busyTimeoutMs int) (*SQLite, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	if busyTimeoutMs <= 0 {
		busyTimeoutMs = 5000
	}
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d", path, busyTimeoutMs)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Save inserts a report, replacing any previous report for the session id.
func (s *SQLite) Save(r *session.Report) error {
	doc, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO reports
		(session_id, exercise, athlete, created_ns, validity, risk_score, rep_count, report_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.SessionID, r.Exercise, r.Athlete, r.CreatedAt.UnixNano(),
		string(r.Summary.FinalValidity), r.Security.Risk.RiskScore,
		r.Performance.RepCount, string(doc),
	)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// Get returns the full report for a session id.
func (s *SQLite) Get(sessionID string) (*session.Report, error) {
	var doc string
	err := s.db.QueryRow(
		`SELECT report_json FROM reports WHERE session_id = ?`, sessionID,
	).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query report: %w", err)
	}

	var r session.Report
	if err := json.Unmarshal([]byte(doc), &r); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &r, nil
}

// List returns report summaries newest first.
func (s *SQLite) List(limit int) ([]Summary, error) {
	return s.listWhere("", nil, limit)
}

// ListByValidity returns summaries with the given verdict, newest first.
func (s *SQLite) ListByValidity(v session.Validity, limit int) ([]Summary, error) {
	return s.listWhere("WHERE validity = ?", []any{string(v)}, limit)
}

func (s *SQLite) listWhere(where string, args []any, limit int) ([]Summary, error) {
	q := `SELECT session_id, exercise, athlete, created_ns, validity, risk_score, rep_count
		FROM reports ` + where + ` ORDER BY created_ns DESC`
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sm Summary
		var athlete sql.NullString
		var createdNs int64
		if err := rows.Scan(&sm.SessionID, &sm.Exercise, &athlete,
			&createdNs, &sm.Validity, &sm.RiskScore, &sm.RepCount); err != nil {
			return nil, fmt.Errorf("scan report row: %w", err)
		}
		sm.Athlete = athlete.String
		sm.CreatedAt = time.Unix(0, createdNs).UTC()
		out = append(out, sm)
	}
	return out, rows.Err()
}

// Count returns the number of stored reports.
func (s *SQLite) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM reports`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count reports: %w", err)
	}
	return n, nil
}

// Prune deletes all but the newest n reports and returns how many were
// removed.
func (s *SQLite) Prune(n int) (int, error) {
	if n <= 0 {
		return 0, nil
	}
	res, err := s.db.Exec(`
		DELETE FROM reports WHERE session_id NOT IN (
			SELECT session_id FROM reports ORDER BY created_ns DESC LIMIT ?
		)`, n)
	if err != nil {
		return 0, fmt.Errorf("prune reports: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(deleted), nil
}
