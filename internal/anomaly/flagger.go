package anomaly

import (
	"fairplay/internal/pose"
	"fairplay/internal/window"
)

// Thresholds configures the per-frame checks. All values are independently
// tunable through the configuration surface.
type Thresholds struct {
	// MeanConfidenceMin flags frames whose mean positive landmark
	// confidence falls below this value.
	MeanConfidenceMin float64

	// DuplicateCount flags when more than this many identical hashes sit
	// in the hash window.
	DuplicateCount int

	// VelocityMax is the per-landmark displacement (in source pixels per
	// sampled frame) above which a movement counts as large.
	VelocityMax float64

	// VelocityMinConfidence excludes landmarks below this confidence in
	// either frame from the velocity check.
	VelocityMinConfidence float64

	// VelocityOutlierCount flags when more than this many landmarks moved
	// beyond VelocityMax in one step.
	VelocityOutlierCount int

	// MinFrames is the window depth required before any check runs.
	MinFrames int
}

// DefaultThresholds mirrors the balanced tuning of the production engine.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MeanConfidenceMin:     0.2,
		DuplicateCount:        3,
		VelocityMax:           120,
		VelocityMinConfidence: 0.3,
		VelocityOutlierCount:  2,
		MinFrames:             3,
	}
}

// Flagger performs per-frame anomaly checks against the rolling window.
// It is stateless beyond its thresholds; all history lives in the Store.
type Flagger struct {
	thresholds Thresholds
}

// NewFlagger creates a Flagger with the given thresholds.
func NewFlagger(t Thresholds) *Flagger {
	return &Flagger{thresholds: t}
}

// Analyze inspects the newest frame (already pushed into the store, along
// with its hash) and returns zero or more flags for it. A frame where pose
// extraction failed (Detected=false) yields at most a low_confidence flag;
// no displacement can be computed from zeros.
func (fl *Flagger) Analyze(st *window.Store, hash window.FrameHash, timestamp float64) []Flag {
	if st.FrameCount() < fl.thresholds.MinFrames {
		return nil
	}

	var flags []Flag

	newest, ok := st.LastFrame()
	if !ok {
		return nil
	}

	if f, flagged := fl.checkConfidence(&newest, timestamp); flagged {
		flags = append(flags, f)
	}
	if f, flagged := fl.checkDuplicates(st, hash, timestamp); flagged {
		flags = append(flags, f)
	}
	if newest.Detected {
		if f, flagged := fl.checkVelocity(st, &newest, timestamp); flagged {
			flags = append(flags, f)
		}
	}

	return flags
}

// checkConfidence flags frames whose mean positive confidence is below the
// configured floor. Failed extractions flag with confidence 0.
func (fl *Flagger) checkConfidence(f *pose.Frame, timestamp float64) (Flag, bool) {
	mean := f.MeanConfidence()
	if mean >= fl.thresholds.MeanConfidenceMin {
		return Flag{}, false
	}
	return Flag{
		Type:       TypeLowConfidence,
		Severity:   SeverityMedium,
		Timestamp:  timestamp,
		Confidence: mean,
	}, true
}

// checkDuplicates flags exactly once when the newest hash's occurrence count
// first exceeds the threshold. Later frames of the same run do not re-flag:
// the count only equals threshold+1 at the crossing point.
func (fl *Flagger) checkDuplicates(st *window.Store, hash window.FrameHash, timestamp float64) (Flag, bool) {
	count := st.CountHash(hash)
	if count != fl.thresholds.DuplicateCount+1 {
		return Flag{}, false
	}
	return Flag{
		Type:           TypeDuplicateFrames,
		Severity:       SeverityHigh,
		Timestamp:      timestamp,
		DuplicateCount: count,
	}, true
}

// checkVelocity counts shoulder/hip landmarks whose displacement from the
// previous frame exceeds the velocity threshold. Landmarks below the minimum
// confidence in either frame are excluded: an uncertain position is not
// evidence of movement.
func (fl *Flagger) checkVelocity(st *window.Store, newest *pose.Frame, timestamp float64) (Flag, bool) {
	prev, ok := st.PrevFrame()
	if !ok {
		return Flag{}, false
	}

	large := 0
	maxVelocity := 0.0
	minConf := fl.thresholds.VelocityMinConfidence

	for _, i := range velocityLandmarks {
		cur := newest.Keypoints[i]
		old := prev.Keypoints[i]
		if cur.Confidence <= minConf || old.Confidence <= minConf {
			continue
		}
		v := pose.Displacement(cur, old)
		if v > maxVelocity {
			maxVelocity = v
		}
		if v > fl.thresholds.VelocityMax {
			large++
		}
	}

	if large <= fl.thresholds.VelocityOutlierCount {
		return Flag{}, false
	}
	return Flag{
		Type:           TypeVelocityOutlier,
		Severity:       SeverityMedium,
		Timestamp:      timestamp,
		LargeMovements: large,
		MaxVelocity:    maxVelocity,
	}, true
}
