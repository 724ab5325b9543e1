// Package store persists completed session reports. The SQLite backend is
// the default; the memory backend serves tests and ephemeral deployments.
package store

import (
	"errors"
	"fmt"
	"time"

	"fairplay/internal/config"
	"fairplay/internal/session"
)

// ErrNotFound is returned when no report exists for a session id.
var ErrNotFound = errors.New("report not found")

// Summary is one row of a report listing: the fields queries filter and
// sort on, without the full report document.
type Summary struct {
	SessionID string           `json:"session_id"`
	Exercise  string           `json:"exercise"`
	Athlete   string           `json:"athlete,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	Validity  session.Validity `json:"validity"`
	RiskScore float64          `json:"risk_score"`
	RepCount  int              `json:"rep_count"`
}

// ReportStore is the persistence surface the daemon and CLI share.
type ReportStore interface {
	// Save inserts a report, replacing any previous report for the same
	// session id.
	Save(r *session.Report) error

	// Get returns the full report for a session id, or ErrNotFound.
	Get(sessionID string) (*session.Report, error)

	// List returns report summaries newest first. A non-positive limit
	// returns all.
	List(limit int) ([]Summary, error)

	// ListByValidity returns summaries with the given verdict, newest first.
	ListByValidity(v session.Validity, limit int) ([]Summary, error)

	// Count returns the number of stored reports.
	Count() (int, error)

	// Prune deletes all but the newest n reports. Non-positive n is a no-op.
	Prune(n int) (int, error)

	Close() error
}

// Open creates the backend named by the storage configuration.
func Open(cfg config.StorageConfig) (ReportStore, error) {
	switch cfg.Type {
	case "", "sqlite":
		return OpenSQLite(cfg.Path, cfg.BusyTimeoutMs)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}
