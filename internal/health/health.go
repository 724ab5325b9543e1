// Package health exposes liveness and readiness probes for the assessment
// daemon. Components register check functions; the checker runs them in
// parallel with per-component timeouts and aggregates an overall status.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Status is the health state of a component or of the whole daemon.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
	StatusUnknown   Status = "unknown"
)

// CheckFunc probes a single component. A nil error means healthy.
type CheckFunc func(ctx context.Context) error

// Component is a registered health check.
type Component struct {
	Name string
	// Critical components take the whole daemon unhealthy when they fail.
	// Non-critical failures only degrade it.
	Critical bool
	Check    CheckFunc
	Timeout  time.Duration
}

// Result is the outcome of one component check.
type Result struct {
	Name      string        `json:"name"`
	Status    Status        `json:"status"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration_ns"`
	CheckedAt time.Time     `json:"checked_at"`
}

// Response is the aggregate health document served over HTTP.
type Response struct {
	Status     Status            `json:"status"`
	Ready      bool              `json:"ready"`
	Components map[string]Result `json:"components,omitempty"`
	CheckedAt  time.Time         `json:"checked_at"`
}

// Checker runs registered component checks.
type Checker struct {
	mu         sync.RWMutex
	components map[string]Component
	results    map[string]Result
	ready      bool
}

// NewChecker creates an empty Checker. The daemon is not ready until
// SetReady(true) is called.
func NewChecker() *Checker {
	return &Checker{
		components: make(map[string]Component),
		results:    make(map[string]Result),
	}
}

// Register adds or replaces a component check.
func (c *Checker) Register(comp Component) {
	if comp.Timeout <= 0 {
		comp.Timeout = 5 * time.Second
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.components[comp.Name] = comp
}

// SetReady marks the daemon ready (or not) to accept work.
func (c *Checker) SetReady(ready bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ready = ready
}

// Ready reports whether the daemon has been marked ready.
func (c *Checker) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ready
}

// Check runs all registered checks in parallel and stores the results.
func (c *Checker) Check(ctx context.Context) Response {
	c.mu.RLock()
	comps := make([]Component, 0, len(c.components))
	for _, comp := range c.components {
		comps = append(comps, comp)
	}
	ready := c.ready
	c.mu.RUnlock()

	results := make(map[string]Result, len(comps))
	var resultsMu sync.Mutex
	var wg sync.WaitGroup

	for _, comp := range comps {
		wg.Add(1)
		go func(comp Component) {
			defer wg.Done()
			res := runCheck(ctx, comp)
			resultsMu.Lock()
			results[comp.Name] = res
			resultsMu.Unlock()
		}(comp)
	}
	wg.Wait()

	c.mu.Lock()
	for name, res := range results {
		c.results[name] = res
	}
	c.mu.Unlock()

	return Response{
		Status:     overallStatus(comps, results),
		Ready:      ready,
		Components: results,
		CheckedAt:  time.Now().UTC(),
	}
}

func runCheck(ctx context.Context, comp Component) Result {
	ctx, cancel := context.WithTimeout(ctx, comp.Timeout)
	defer cancel()

	start := time.Now()
	errCh := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				errCh <- fmt.Errorf("check panicked: %v", r)
			}
		}()
		errCh <- comp.Check(ctx)
	}()

	res := Result{
		Name:      comp.Name,
		Status:    StatusHealthy,
		CheckedAt: start.UTC(),
	}
	select {
	case err := <-errCh:
		res.Duration = time.Since(start)
		if err != nil {
			res.Status = StatusUnhealthy
			res.Error = err.Error()
		}
	case <-ctx.Done():
		res.Duration = time.Since(start)
		res.Status = StatusUnhealthy
		res.Error = "check timed out"
	}
	return res
}

func overallStatus(comps []Component, results map[string]Result) Status {
	if len(comps) == 0 {
		return StatusHealthy
	}
	status := StatusHealthy
	for _, comp := range comps {
		res, ok := results[comp.Name]
		if !ok {
			return StatusUnknown
		}
		if res.Status != StatusUnhealthy {
			continue
		}
		if comp.Critical {
			return StatusUnhealthy
		}
		status = StatusDegraded
	}
	return status
}

// LivenessHandler answers 200 as long as the process is running.
func (c *Checker) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprintln(w, "ok")
	})
}

// ReadinessHandler answers 200 once SetReady(true) has been called and
// 503 before that.
func (c *Checker) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		if !c.Ready() {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprintln(w, "ready")
	})
}

// Handler runs all checks and serves the aggregate document. Unhealthy
// maps to 503, everything else to 200. Pass ?full=true to include the
// per-component results.
func (c *Checker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := c.Check(r.Context())
		if r.URL.Query().Get("full") != "true" {
			resp.Components = nil
		}

		w.Header().Set("Content-Type", "application/json")
		if resp.Status == StatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.Encode(resp)
	})
}

// DirWritableCheck verifies the daemon can create files in dir.
func DirWritableCheck(dir string) CheckFunc {
	return func(ctx context.Context) error {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("stat %s: %w", dir, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("%s is not a directory", dir)
		}
		probe := filepath.Join(dir, ".health-probe")
		if err := os.WriteFile(probe, nil, 0600); err != nil {
			return fmt.Errorf("write probe: %w", err)
		}
		os.Remove(probe)
		return nil
	}
}

// PingCheck adapts any ping-style function into a CheckFunc.
func PingCheck(ping func() error) CheckFunc {
	return func(ctx context.Context) error {
		return ping()
	}
}
