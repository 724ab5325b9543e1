package store

import (
	"sort"
	"sync"

	"fairplay/internal/session"
)

// Memory is an in-process report store for tests and ephemeral runs.
type Memory struct {
	mu      sync.RWMutex
	reports map[string]*session.Report
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{reports: make(map[string]*session.Report)}
}

func (m *Memory) Save(r *session.Report) error {
	cp := *r
	m.mu.Lock()
	m.reports[r.SessionID] = &cp
	m.mu.Unlock()
	return nil
}

func (m *Memory) Get(sessionID string) (*session.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.reports[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *Memory) List(limit int) ([]Summary, error) {
	return m.list(limit, func(*session.Report) bool { return true })
}

func (m *Memory) ListByValidity(v session.Validity, limit int) ([]Summary, error) {
	return m.list(limit, func(r *session.Report) bool {
		return r.Summary.FinalValidity == v
	})
}

func (m *Memory) list(limit int, keep func(*session.Report) bool) ([]Summary, error) {
	m.mu.RLock()
	var out []Summary
	for _, r := range m.reports {
		if !keep(r) {
			continue
		}
		out = append(out, Summary{
			SessionID: r.SessionID,
			Exercise:  r.Exercise,
			Athlete:   r.Athlete,
			CreatedAt: r.CreatedAt,
			Validity:  r.Summary.FinalValidity,
			RiskScore: r.Security.Risk.RiskScore,
			RepCount:  r.Performance.RepCount,
		})
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) Count() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.reports), nil
}

func (m *Memory) Prune(n int) (int, error) {
	if n <= 0 {
		return 0, nil
	}
	keep, err := m.List(n)
	if err != nil {
		return 0, err
	}
	keepSet := make(map[string]bool, len(keep))
	for _, sm := range keep {
		keepSet[sm.SessionID] = true
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	deleted := 0
	for id := range m.reports {
		if !keepSet[id] {
			delete(m.reports, id)
			deleted++
		}
	}
	return deleted, nil
}

func (m *Memory) Close() error { return nil }
