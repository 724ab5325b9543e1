package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCounter(t *testing.T) {
	r := NewRegistry("test")
	c := r.Counter("requests_total", "Total requests", nil)

	c.Inc()
	c.Add(4)
	if got := c.Value(); got != 5 {
		t.Errorf("Value() = %d, want 5", got)
	}

	// Same name returns the same counter.
	again := r.Counter("requests_total", "Total requests", nil)
	if again != c {
		t.Error("re-registration returned a different counter")
	}
}

func TestCounterLabels(t *testing.T) {
	r := NewRegistry("test")
	a := r.Counter("hits_total", "Hits", Labels{"verdict": "valid"})
	b := r.Counter("hits_total", "Hits", Labels{"verdict": "invalid"})
	if a == b {
		t.Fatal("distinct labels must yield distinct counters")
	}
	a.Inc()
	if b.Value() != 0 {
		t.Error("labeled counters must not share state")
	}
}

func TestGauge(t *testing.T) {
	r := NewRegistry("test")
	g := r.Gauge("pending", "Pending items", nil)

	g.Set(10)
	g.Inc()
	g.Dec()
	g.Dec()
	if got := g.Value(); got != 9 {
		t.Errorf("Value() = %d, want 9", got)
	}
}

func TestHistogram(t *testing.T) {
	r := NewRegistry("test")
	h := r.Histogram("latency", "Latency", nil, []float64{1, 5, 10})

	for _, v := range []float64{0.5, 2, 7, 100} {
		h.Observe(v)
	}
	if got := h.Count(); got != 4 {
		t.Errorf("Count() = %d, want 4", got)
	}
	want := (0.5 + 2 + 7 + 100) / 4
	if got := h.Mean(); got != want {
		t.Errorf("Mean() = %f, want %f", got, want)
	}
}

func TestHistogramObserveDuration(t *testing.T) {
	r := NewRegistry("test")
	h := r.Histogram("duration", "Duration", nil, nil)

	h.ObserveDuration(250 * time.Millisecond)
	if got := h.Mean(); got != 0.25 {
		t.Errorf("Mean() = %f, want 0.25", got)
	}
}

func TestWritePrometheus(t *testing.T) {
	r := NewRegistry("app")
	r.Counter("ops_total", "Operations", nil).Add(3)
	r.Gauge("depth", "Queue depth", nil).Set(7)
	h := r.Histogram("elapsed", "Elapsed", nil, []float64{1, 10})
	h.Observe(0.5)
	h.Observe(5)
	h.Observe(50)

	var sb strings.Builder
	if err := r.WritePrometheus(&sb); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	out := sb.String()

	for _, want := range []string{
		"# TYPE app_ops_total counter",
		"app_ops_total 3",
		"# TYPE app_depth gauge",
		"app_depth 7",
		"# TYPE app_elapsed histogram",
		`app_elapsed_bucket{le="1"} 1`,
		`app_elapsed_bucket{le="10"} 2`,
		`app_elapsed_bucket{le="+Inf"} 3`,
		"app_elapsed_count 3",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n%s", want, out)
		}
	}
}

func TestHTTPHandler(t *testing.T) {
	r := NewRegistry("app")
	r.Counter("ops_total", "Operations", nil).Inc()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	r.HTTPHandler().ServeHTTP(rec, req)
	if !strings.Contains(rec.Body.String(), "app_ops_total 1") {
		t.Errorf("text exposition missing counter: %s", rec.Body.String())
	}

	req = httptest.NewRequest("GET", "/metrics", nil)
	req.Header.Set("Accept", "application/json")
	rec = httptest.NewRecorder()
	r.HTTPHandler().ServeHTTP(rec, req)
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	if !strings.Contains(rec.Body.String(), "app_ops_total") {
		t.Errorf("JSON snapshot missing counter: %s", rec.Body.String())
	}
}

func TestDaemonMetrics(t *testing.T) {
	d := NewDaemon(NewRegistry("fairplay"))

	d.SessionsProcessed.Inc()
	d.RecordVerdict("valid")
	d.RecordVerdict("valid")
	d.RecordVerdict("unknown_verdict")

	if got := d.Verdicts["valid"].Value(); got != 2 {
		t.Errorf("valid verdict count = %d, want 2", got)
	}
	if got := d.Verdicts["invalid"].Value(); got != 0 {
		t.Errorf("invalid verdict count = %d, want 0", got)
	}
}
