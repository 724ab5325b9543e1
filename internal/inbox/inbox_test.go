package inbox

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"fairplay/internal/config"
)

func testWatcher(t *testing.T, dir string) *Watcher {
	t.Helper()
	w, err := New(config.InboxConfig{
		Path:       dir,
		Patterns:   []string{"*.json"},
		DebounceMs: 100,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return w
}

func waitForEvent(t *testing.T, w *Watcher) Event {
	t.Helper()
	select {
	case ev := <-w.Events():
		return ev
	case err := <-w.Errors():
		t.Fatalf("watcher error: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for inbox event")
	}
	return Event{}
}

func TestNewRequiresPath(t *testing.T) {
	if _, err := New(config.InboxConfig{}); err == nil {
		t.Error("New with empty path succeeded, want error")
	}
}

func TestEmitsStableFile(t *testing.T) {
	dir := t.TempDir()
	w := testWatcher(t, dir)
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	path := filepath.Join(dir, "session.json")
	if err := os.WriteFile(path, []byte(`{"exercise":"pushups"}`), 0600); err != nil {
		t.Fatalf("write session file: %v", err)
	}

	ev := waitForEvent(t, w)
	if ev.Path != path {
		t.Errorf("event path = %q, want %q", ev.Path, path)
	}
	if ev.Size == 0 {
		t.Error("event size is zero")
	}
}

func TestEmitsExactlyOnce(t *testing.T) {
	dir := t.TempDir()
	w := testWatcher(t, dir)
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	path := filepath.Join(dir, "session.json")
	if err := os.WriteFile(path, []byte(`{}`), 0600); err != nil {
		t.Fatal(err)
	}

	waitForEvent(t, w)

	select {
	case ev := <-w.Events():
		t.Errorf("unexpected second event for %q", ev.Path)
	case <-time.After(400 * time.Millisecond):
	}
}

func TestIgnoresNonMatchingFiles(t *testing.T) {
	dir := t.TempDir()
	w := testWatcher(t, dir)
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-w.Events():
		t.Errorf("unexpected event for %q", ev.Path)
	case <-time.After(400 * time.Millisecond):
	}
}

func TestPicksUpPreexistingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pending.json")
	if err := os.WriteFile(path, []byte(`{}`), 0600); err != nil {
		t.Fatal(err)
	}

	w := testWatcher(t, dir)
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	ev := waitForEvent(t, w)
	if ev.Path != path {
		t.Errorf("event path = %q, want %q", ev.Path, path)
	}
}

func TestRewrittenFileEmitsAgain(t *testing.T) {
	dir := t.TempDir()
	w := testWatcher(t, dir)
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	path := filepath.Join(dir, "session.json")
	if err := os.WriteFile(path, []byte(`{"v":1}`), 0600); err != nil {
		t.Fatal(err)
	}
	waitForEvent(t, w)

	if err := os.WriteFile(path, []byte(`{"v":2}`), 0600); err != nil {
		t.Fatal(err)
	}
	ev := waitForEvent(t, w)
	if ev.Path != path {
		t.Errorf("event path = %q, want %q", ev.Path, path)
	}
}

func TestArchive(t *testing.T) {
	dir := t.TempDir()
	archiveDir := filepath.Join(dir, "archive")

	path := filepath.Join(dir, "done.json")
	if err := os.WriteFile(path, []byte(`{}`), 0600); err != nil {
		t.Fatal(err)
	}

	dest, err := Archive(path, archiveDir)
	if err != nil {
		t.Fatalf("Archive failed: %v", err)
	}
	if filepath.Dir(dest) != archiveDir {
		t.Errorf("archived to %q", dest)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("source file still exists after archive")
	}
	if _, err := os.Stat(dest); err != nil {
		t.Errorf("archived file missing: %v", err)
	}
}

func TestArchiveCollisionGetsSuffix(t *testing.T) {
	dir := t.TempDir()
	archiveDir := filepath.Join(dir, "archive")

	for i := 0; i < 2; i++ {
		path := filepath.Join(dir, "same.json")
		if err := os.WriteFile(path, []byte(`{}`), 0600); err != nil {
			t.Fatal(err)
		}
		if _, err := Archive(path, archiveDir); err != nil {
			t.Fatalf("Archive %d failed: %v", i, err)
		}
	}

	entries, err := os.ReadDir(archiveDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("archive holds %d files, want 2", len(entries))
	}
}

func TestMatchesPatterns(t *testing.T) {
	w := testWatcher(t, t.TempDir())

	tests := []struct {
		name string
		want bool
	}{
		{"session.json", true},
		{"a.json", true},
		{"session.json.tmp", false},
		{"notes.txt", false},
	}
	for _, tt := range tests {
		if got := w.matches(tt.name); got != tt.want {
			t.Errorf("matches(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
