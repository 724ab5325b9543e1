package metrics

import "sync"

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the process-wide registry.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry("fairplay")
	})
	return defaultRegistry
}

// Daemon bundles the metrics the assessment daemon records while draining
// its inbox.
type Daemon struct {
	SessionsProcessed *Counter
	SessionsFailed    *Counter
	Verdicts          map[string]*Counter
	FramesProcessed   *Counter
	FlagsRaised       *Counter
	StoredReports     *Gauge
	AnalysisDuration  *Histogram
	RiskScore         *Histogram
}

// NewDaemon registers the daemon metric set on the given registry.
func NewDaemon(r *Registry) *Daemon {
	if r == nil {
		r = Default()
	}
	verdicts := make(map[string]*Counter)
	for _, v := range []string{
		"valid", "low_confidence", "identity_unverified",
		"questionable", "invalid", "insufficient_data",
	} {
		verdicts[v] = r.Counter("sessions_by_verdict_total",
			"Completed sessions by final verdict", Labels{"verdict": v})
	}
	return &Daemon{
		SessionsProcessed: r.Counter("sessions_processed_total",
			"Session documents analyzed", nil),
		SessionsFailed: r.Counter("sessions_failed_total",
			"Session documents that could not be analyzed", nil),
		Verdicts: verdicts,
		FramesProcessed: r.Counter("frames_processed_total",
			"Pose frames pushed through the pipeline", nil),
		FlagsRaised: r.Counter("anomaly_flags_total",
			"Anomaly flags raised across all sessions", nil),
		StoredReports: r.Gauge("stored_reports",
			"Reports held in the report store", nil),
		AnalysisDuration: r.Histogram("analysis_duration_seconds",
			"End to end session analysis time", nil, nil),
		RiskScore: r.Histogram("risk_score",
			"Overall risk score per session", nil,
			[]float64{10, 20, 35, 55, 75, 90, 100}),
	}
}

// RecordVerdict increments the per-verdict counter if the verdict is known.
func (d *Daemon) RecordVerdict(verdict string) {
	if c, ok := d.Verdicts[verdict]; ok {
		c.Inc()
	}
}
