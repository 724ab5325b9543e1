// Package inbox watches the session intake directory. Uploaded session
// files land here; a file is handed to the pipeline once its contents have
// been stable for the configured debounce, so partially written uploads
// are never processed.
package inbox

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"fairplay/internal/config"
)

// Event is one session file ready for processing.
type Event struct {
	Path      string
	Size      int64
	Timestamp time.Time
}

// Watcher monitors the inbox directory for stable session files.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	dir       string
	patterns  []string
	debounce  time.Duration

	// State tracking: path -> last modification time
	state   map[string]time.Time
	stateMu sync.RWMutex

	events chan Event
	errors chan error

	done chan struct{}
	wg   sync.WaitGroup
}

// New creates an inbox watcher from the intake configuration.
func New(cfg config.InboxConfig) (*Watcher, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("inbox: no path configured")
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	patterns := cfg.Patterns
	if len(patterns) == 0 {
		patterns = []string{"*.json"}
	}
	debounce := time.Duration(cfg.DebounceMs) * time.Millisecond
	if debounce <= 0 {
		debounce = 2 * time.Second
	}

	return &Watcher{
		fsWatcher: fsWatcher,
		dir:       cfg.Path,
		patterns:  patterns,
		debounce:  debounce,
		state:     make(map[string]time.Time),
		events:    make(chan Event, 100),
		errors:    make(chan error, 10),
		done:      make(chan struct{}),
	}, nil
}

// Events returns the channel of stable session files.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Errors returns the channel of watch errors.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Start begins watching. Files already sitting in the inbox are picked up
// as if they had just arrived.
func (w *Watcher) Start() error {
	absDir, err := filepath.Abs(w.dir)
	if err != nil {
		return err
	}
	w.dir = absDir

	if err := w.fsWatcher.Add(absDir); err != nil {
		return err
	}

	entries, err := os.ReadDir(absDir)
	if err != nil {
		return err
	}
	now := time.Now()
	for _, entry := range entries {
		if entry.IsDir() || !w.matches(entry.Name()) {
			continue
		}
		w.stateMu.Lock()
		w.state[filepath.Join(absDir, entry.Name())] = now
		w.stateMu.Unlock()
	}

	w.wg.Add(2)
	go w.eventLoop()
	go w.debounceLoop()
	return nil
}

// Stop gracefully shuts down the watcher.
func (w *Watcher) Stop() error {
	close(w.done)
	w.wg.Wait()
	close(w.events)
	close(w.errors)
	return w.fsWatcher.Close()
}

// matches reports whether a file name matches any accept pattern.
func (w *Watcher) matches(name string) bool {
	for _, p := range w.patterns {
		if ok, err := filepath.Match(p, name); err == nil && ok {
			return true
		}
	}
	return false
}

// eventLoop tracks writes and creates in the inbox.
func (w *Watcher) eventLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !w.matches(filepath.Base(event.Name)) {
				continue
			}
			info, err := os.Stat(event.Name)
			if err != nil || info.IsDir() {
				continue
			}
			w.stateMu.Lock()
			w.state[event.Name] = time.Now()
			w.stateMu.Unlock()

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			default:
			}
		}
	}
}

// debounceLoop emits files whose last write is older than the debounce.
func (w *Watcher) debounceLoop() {
	defer w.wg.Done()

	interval := w.debounce / 4
	if interval < 20*time.Millisecond {
		interval = 20 * time.Millisecond
	}
	if interval > time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case now := <-ticker.C:
			w.emitStable(now)
		}
	}
}

// emitStable hands over every tracked file that has settled. Each file is
// emitted exactly once; a later rewrite of the same path re-tracks it.
func (w *Watcher) emitStable(now time.Time) {
	threshold := now.Add(-w.debounce)

	var ready []string
	w.stateMu.RLock()
	for path, lastMod := range w.state {
		if lastMod.Before(threshold) {
			ready = append(ready, path)
		}
	}
	w.stateMu.RUnlock()

	for _, path := range ready {
		info, err := os.Stat(path)
		if err != nil {
			// Deleted or moved while settling; forget it.
			w.stateMu.Lock()
			delete(w.state, path)
			w.stateMu.Unlock()
			continue
		}

		w.stateMu.Lock()
		delete(w.state, path)
		w.stateMu.Unlock()

		select {
		case w.events <- Event{Path: path, Size: info.Size(), Timestamp: now}:
		case <-w.done:
			return
		}
	}
}

// Archive moves a processed session file into the archive directory,
// returning the new path. A name collision gets a timestamp suffix.
func Archive(path, archiveDir string) (string, error) {
	if err := os.MkdirAll(archiveDir, 0755); err != nil {
		return "", fmt.Errorf("create archive directory: %w", err)
	}

	dest := filepath.Join(archiveDir, filepath.Base(path))
	if _, err := os.Stat(dest); err == nil {
		ext := filepath.Ext(dest)
		dest = fmt.Sprintf("%s.%d%s", dest[:len(dest)-len(ext)], time.Now().UnixNano(), ext)
	}

	if err := os.Rename(path, dest); err != nil {
		return "", fmt.Errorf("archive %s: %w", path, err)
	}
	return dest, nil
}
