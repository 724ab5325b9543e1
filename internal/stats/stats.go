// Package stats computes descriptive statistics across stored session
// reports: validity and risk distributions, per-exercise performance,
// verification reliability, and processing-time behavior.
package stats

import (
	"math"
	"sort"

	"fairplay/internal/anomaly"
	"fairplay/internal/session"
)

// Distribution summarizes one numeric series.
type Distribution struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	StdDev float64 `json:"std_dev"`
	Count  int     `json:"count"`
}

// ValidityStats breaks sessions down by final verdict.
type ValidityStats struct {
	Counts       map[session.Validity]int `json:"counts"`
	PassRate     float64                  `json:"pass_rate"`
	RejectRate   float64                  `json:"reject_rate"`
	ReviewRate   float64                  `json:"review_rate"`
	Inconclusive int                      `json:"inconclusive_sessions"`
}

// RiskStats buckets sessions by fused risk score.
type RiskStats struct {
	Scores   Distribution   `json:"scores"`
	Critical int            `json:"critical"` // >= 80
	High     int            `json:"high"`     // 60-80
	Medium   int            `json:"medium"`   // 40-60
	Low      int            `json:"low"`      // < 40
	ByStatus map[string]int `json:"authenticity_status_distribution"`
}

// VerificationStats summarizes face verification outcomes.
type VerificationStats struct {
	VerifiedRate float64      `json:"verified_rate"`
	Failed       int          `json:"failed_verifications"`
	Confidence   Distribution `json:"confidence"`

	// Reliability rates how consistent verification confidence is:
	// "highly_consistent", "moderately_consistent" or "inconsistent".
	Reliability string `json:"reliability"`
}

// ExerciseStats summarizes counted performance for one exercise.
type ExerciseStats struct {
	Sessions       int          `json:"sessions"`
	CompletionRate float64      `json:"completion_rate"`
	Reps           Distribution `json:"reps,omitempty"`
	TotalReps      int          `json:"total_reps,omitempty"`
	JumpHeightCM   Distribution `json:"jump_height_cm,omitempty"`
	JumpDistanceCM Distribution `json:"jump_distance_cm,omitempty"`
}

// TimingStats summarizes processing durations in seconds.
type TimingStats struct {
	Total          Distribution `json:"total_processing_time"`
	CheatDetection Distribution `json:"cheat_detection_time"`
	SportsAnalysis Distribution `json:"sports_analysis_time"`
}

// Analysis is the full cross-session report.
type Analysis struct {
	TotalSessions int                      `json:"total_sessions"`
	Validity      ValidityStats            `json:"validity"`
	Authenticity  Distribution             `json:"authenticity_confidence"`
	Risk          RiskStats                `json:"risk"`
	Verification  VerificationStats        `json:"face_verification"`
	Performance   map[string]ExerciseStats `json:"performance"`
	CommonFlags   map[anomaly.Type]int     `json:"common_flags"`
	Timing        TimingStats              `json:"timing"`
}

// Analyze computes descriptive statistics over the given reports. An empty
// input yields a zero Analysis with TotalSessions 0.
func Analyze(reports []*session.Report) Analysis {
	a := Analysis{
		TotalSessions: len(reports),
		Performance:   make(map[string]ExerciseStats),
		CommonFlags:   make(map[anomaly.Type]int),
	}
	if len(reports) == 0 {
		return a
	}

	a.Validity = validityStats(reports)
	a.Risk = riskStats(reports)
	a.Verification = verificationStats(reports)
	a.Timing = timingStats(reports)

	var authConf []float64
	for _, r := range reports {
		authConf = append(authConf, r.Summary.AuthenticityConfidence)
		for flagType, n := range r.Security.FlagSummary.ByType {
			a.CommonFlags[flagType] += n
		}
	}
	a.Authenticity = Describe(authConf)

	a.Performance = performanceStats(reports)
	return a
}

func validityStats(reports []*session.Report) ValidityStats {
	vs := ValidityStats{Counts: make(map[session.Validity]int)}
	for _, r := range reports {
		vs.Counts[r.Summary.FinalValidity]++
	}
	n := float64(len(reports))
	vs.PassRate = round2(float64(vs.Counts[session.ValidityValid]) / n * 100)
	vs.RejectRate = round2(float64(vs.Counts[session.ValidityInvalid]) / n * 100)
	review := vs.Counts[session.ValidityQuestionable] +
		vs.Counts[session.ValidityLowConfidence] +
		vs.Counts[session.ValidityIdentityUnverified]
	vs.ReviewRate = round2(float64(review) / n * 100)
	vs.Inconclusive = vs.Counts[session.ValidityInsufficientData]
	return vs
}

func riskStats(reports []*session.Report) RiskStats {
	rs := RiskStats{ByStatus: make(map[string]int)}
	var scores []float64
	for _, r := range reports {
		score := r.Security.Risk.RiskScore
		scores = append(scores, score)
		rs.ByStatus[string(r.Security.Risk.Authenticity)]++
		switch {
		case score >= 80:
			rs.Critical++
		case score >= 60:
			rs.High++
		case score >= 40:
			rs.Medium++
		default:
			rs.Low++
		}
	}
	rs.Scores = Describe(scores)
	return rs
}

func verificationStats(reports []*session.Report) VerificationStats {
	var confidences []float64
	verified := 0
	for _, r := range reports {
		confidences = append(confidences, r.Security.Face.Confidence)
		if r.Security.Face.Verified {
			verified++
		}
	}

	vs := VerificationStats{
		VerifiedRate: round2(float64(verified) / float64(len(reports)) * 100),
		Failed:       len(reports) - verified,
		Confidence:   Describe(confidences),
	}
	switch sd := vs.Confidence.StdDev; {
	case sd < 10:
		vs.Reliability = "highly_consistent"
	case sd < 20:
		vs.Reliability = "moderately_consistent"
	default:
		vs.Reliability = "inconsistent"
	}
	return vs
}

func performanceStats(reports []*session.Report) map[string]ExerciseStats {
	type acc struct {
		sessions  int
		detected  int
		reps      []float64
		totalReps int
		heights   []float64
		distances []float64
	}
	byExercise := make(map[string]*acc)

	for _, r := range reports {
		name := r.Performance.Exercise
		if name == "" {
			name = r.Exercise
		}
		e := byExercise[name]
		if e == nil {
			e = &acc{}
			byExercise[name] = e
		}
		e.sessions++
		if r.Summary.PerformanceDetected {
			e.detected++
		}

		switch {
		case r.Performance.VerticalJumps != nil:
			for _, j := range r.Performance.VerticalJumps.Jumps {
				e.heights = append(e.heights, j.HeightCM)
			}
		case r.Performance.LongJump != nil:
			e.distances = append(e.distances, r.Performance.LongJump.DistanceCM)
		default:
			e.reps = append(e.reps, float64(r.Performance.RepCount))
			e.totalReps += r.Performance.RepCount
		}
	}

	out := make(map[string]ExerciseStats, len(byExercise))
	for name, e := range byExercise {
		out[name] = ExerciseStats{
			Sessions:       e.sessions,
			CompletionRate: round2(float64(e.detected) / float64(e.sessions) * 100),
			Reps:           Describe(e.reps),
			TotalReps:      e.totalReps,
			JumpHeightCM:   Describe(e.heights),
			JumpDistanceCM: Describe(e.distances),
		}
	}
	return out
}

func timingStats(reports []*session.Report) TimingStats {
	var total, cheat, sports []float64
	for _, r := range reports {
		total = append(total, r.Timing.Total)
		cheat = append(cheat, r.Timing.CheatDetection)
		sports = append(sports, r.Timing.SportsAnalysis)
	}
	return TimingStats{
		Total:          Describe(total),
		CheatDetection: Describe(cheat),
		SportsAnalysis: Describe(sports),
	}
}

// Describe computes the distribution of one series. An empty series yields
// the zero Distribution.
func Describe(values []float64) Distribution {
	if len(values) == 0 {
		return Distribution{}
	}

	d := Distribution{Count: len(values), Min: values[0], Max: values[0]}
	sum := 0.0
	for _, v := range values {
		sum += v
		if v < d.Min {
			d.Min = v
		}
		if v > d.Max {
			d.Max = v
		}
	}
	d.Mean = round2(sum / float64(len(values)))
	d.Median = round2(Percentile(values, 50))
	d.StdDev = round2(stdDev(values, sum/float64(len(values))))
	return d
}

// Percentile returns the p-th percentile (0-100) of the series using
// linear interpolation between closest ranks.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}

	rank := p / 100 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}
	frac := rank - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// stdDev is the population standard deviation around the given mean.
func stdDev(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		dv := v - mean
		sum += dv * dv
	}
	return math.Sqrt(sum / float64(len(values)))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
