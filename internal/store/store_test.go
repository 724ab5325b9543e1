package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"fairplay/internal/config"
	"fairplay/internal/risk"
	"fairplay/internal/session"
)

func testReport(id string, createdAt time.Time, validity session.Validity, riskScore float64, reps int) *session.Report {
	return &session.Report{
		SessionID: id,
		Exercise:  "pushups",
		Athlete:   "athlete-1",
		CreatedAt: createdAt,
		Summary: session.Summary{
			FinalValidity:          validity,
			AuthenticityConfidence: 100 - riskScore,
			PerformanceDetected:    reps > 0,
		},
		Performance: session.Performance{
			Exercise: "pushups",
			RepCount: reps,
		},
		Security: session.Security{
			Risk: risk.Assessment{RiskScore: riskScore},
		},
	}
}

// openBackends returns one store of each backend type, both empty.
func openBackends(t *testing.T) map[string]ReportStore {
	t.Helper()

	sq, err := OpenSQLite(filepath.Join(t.TempDir(), "reports.db"), 0)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { sq.Close() })

	return map[string]ReportStore{
		"sqlite": sq,
		"memory": NewMemory(),
	}
}

func TestSaveAndGet(t *testing.T) {
	for name, st := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			want := testReport("s-1", time.Now().UTC().Truncate(time.Second),
				session.ValidityValid, 12.5, 8)
			if err := st.Save(want); err != nil {
				t.Fatalf("Save: %v", err)
			}

			got, err := st.Get("s-1")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got.SessionID != want.SessionID ||
				got.Exercise != want.Exercise ||
				got.Performance.RepCount != want.Performance.RepCount {
				t.Errorf("Get = %+v, want %+v", got, want)
			}
			if got.Summary.FinalValidity != session.ValidityValid {
				t.Errorf("validity = %q", got.Summary.FinalValidity)
			}
		})
	}
}

func TestGetNotFound(t *testing.T) {
	for name, st := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := st.Get("missing"); !errors.Is(err, ErrNotFound) {
				t.Errorf("Get(missing) err = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestSaveReplacesExisting(t *testing.T) {
	for name, st := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			base := time.Now().UTC()
			if err := st.Save(testReport("s-1", base, session.ValidityQuestionable, 60, 3)); err != nil {
				t.Fatal(err)
			}
			if err := st.Save(testReport("s-1", base, session.ValidityValid, 10, 5)); err != nil {
				t.Fatal(err)
			}

			n, err := st.Count()
			if err != nil {
				t.Fatal(err)
			}
			if n != 1 {
				t.Errorf("Count = %d, want 1", n)
			}

			got, err := st.Get("s-1")
			if err != nil {
				t.Fatal(err)
			}
			if got.Performance.RepCount != 5 {
				t.Errorf("RepCount = %d, want 5", got.Performance.RepCount)
			}
		})
	}
}

func TestListNewestFirst(t *testing.T) {
	for name, st := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			base := time.Now().UTC()
			for i, id := range []string{"old", "mid", "new"} {
				r := testReport(id, base.Add(time.Duration(i)*time.Minute),
					session.ValidityValid, 10, i)
				if err := st.Save(r); err != nil {
					t.Fatal(err)
				}
			}

			got, err := st.List(0)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != 3 {
				t.Fatalf("List = %d rows, want 3", len(got))
			}
			for i, want := range []string{"new", "mid", "old"} {
				if got[i].SessionID != want {
					t.Errorf("List[%d] = %q, want %q", i, got[i].SessionID, want)
				}
			}

			limited, err := st.List(2)
			if err != nil {
				t.Fatal(err)
			}
			if len(limited) != 2 || limited[0].SessionID != "new" {
				t.Errorf("List(2) = %+v", limited)
			}
		})
	}
}

func TestListByValidity(t *testing.T) {
	for name, st := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			base := time.Now().UTC()
			st.Save(testReport("a", base, session.ValidityValid, 10, 5))
			st.Save(testReport("b", base.Add(time.Minute), session.ValidityInvalid, 90, 0))
			st.Save(testReport("c", base.Add(2*time.Minute), session.ValidityInvalid, 85, 0))

			got, err := st.ListByValidity(session.ValidityInvalid, 0)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != 2 {
				t.Fatalf("ListByValidity = %d rows, want 2", len(got))
			}
			if got[0].SessionID != "c" || got[1].SessionID != "b" {
				t.Errorf("order = %q, %q", got[0].SessionID, got[1].SessionID)
			}
		})
	}
}

func TestPrune(t *testing.T) {
	for name, st := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			base := time.Now().UTC()
			for i := 0; i < 5; i++ {
				id := string(rune('a' + i))
				st.Save(testReport(id, base.Add(time.Duration(i)*time.Minute),
					session.ValidityValid, 10, i))
			}

			deleted, err := st.Prune(2)
			if err != nil {
				t.Fatal(err)
			}
			if deleted != 3 {
				t.Errorf("Prune deleted %d, want 3", deleted)
			}

			got, err := st.List(0)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != 2 || got[0].SessionID != "e" || got[1].SessionID != "d" {
				t.Errorf("after prune: %+v", got)
			}

			// Non-positive retention is a no-op, never delete-everything.
			deleted, err = st.Prune(0)
			if err != nil {
				t.Fatal(err)
			}
			if deleted != 0 {
				t.Errorf("Prune(0) deleted %d", deleted)
			}
		})
	}
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports.db")

	st, err := OpenSQLite(path, 1000)
	if err != nil {
		t.Fatal(err)
	}
	if err := st.Save(testReport("s-1", time.Now().UTC(), session.ValidityValid, 5, 10)); err != nil {
		t.Fatal(err)
	}
	if err := st.Close(); err != nil {
		t.Fatal(err)
	}

	st2, err := OpenSQLite(path, 1000)
	if err != nil {
		t.Fatal(err)
	}
	defer st2.Close()

	got, err := st2.Get("s-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Performance.RepCount != 10 {
		t.Errorf("RepCount = %d, want 10", got.Performance.RepCount)
	}
}

func TestOpenByConfig(t *testing.T) {
	mem, err := Open(config.StorageConfig{Type: "memory"})
	if err != nil {
		t.Fatal(err)
	}
	defer mem.Close()
	if _, ok := mem.(*Memory); !ok {
		t.Errorf("Open(memory) = %T", mem)
	}

	sq, err := Open(config.StorageConfig{
		Type: "sqlite",
		Path: filepath.Join(t.TempDir(), "reports.db"),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer sq.Close()
	if _, ok := sq.(*SQLite); !ok {
		t.Errorf("Open(sqlite) = %T", sq)
	}

	if _, err := Open(config.StorageConfig{Type: "postgres"}); err == nil {
		t.Error("Open(postgres) succeeded, want error")
	}
}
