// Package exercise converts continuous pose geometry into discrete
// performance counts: angle-based repetition counting and displacement-based
// jump detection.
package exercise

import (
	"math"

	"fairplay/internal/pose"
)

// RepState is the discrete phase of a repetition cycle.
type RepState string

const (
	StateUp   RepState = "up"
	StateDown RepState = "down"
)

// RepConfig parameterizes one repetition counter. The same state machine
// serves every rep-based exercise; only the joint triplet and thresholds
// differ.
type RepConfig struct {
	// Name identifies the exercise (e.g. "pushups").
	Name string `toml:"name" json:"name"`

	// Triplet is the (proximal, middle, distal) landmark triplet whose
	// joint angle at the middle landmark drives the state machine.
	Triplet [3]int `toml:"triplet" json:"triplet"`

	// AltTriplet is the mirrored limb, tried when any primary landmark is
	// below MinConfidence.
	AltTriplet [3]int `toml:"alt_triplet" json:"alt_triplet"`

	// JointNames are the anatomical names of the triplet, for reports.
	JointNames [3]string `toml:"joint_names" json:"joint_names"`

	// UpAngle and DownAngle are the state thresholds in degrees.
	UpAngle   float64 `toml:"up_angle" json:"up_angle"`
	DownAngle float64 `toml:"down_angle" json:"down_angle"`

	// Tolerance widens both thresholds to absorb pose jitter.
	Tolerance float64 `toml:"tolerance" json:"tolerance"`

	// MinConfidence is the per-landmark confidence floor for using a
	// triplet's angle.
	MinConfidence float64 `toml:"min_confidence" json:"min_confidence"`

	// DebounceSec is the minimum elapsed time between two consecutive
	// state transitions, rejecting jitter-induced double counts.
	DebounceSec float64 `toml:"debounce_sec" json:"debounce_sec"`
}

// RepCounter counts repetitions for one exercise within one session.
// rep_count is monotonic: it only ever increments, by exactly one per
// qualifying down-to-up transition.
type RepCounter struct {
	cfg            RepConfig
	state          RepState
	count          int
	lastTransition float64
	timestamps     []float64
}

// NewRepCounter creates a counter in the initial "up" state.
func NewRepCounter(cfg RepConfig) *RepCounter {
	return &RepCounter{
		cfg:            cfg,
		state:          StateUp,
		lastTransition: math.Inf(-1),
	}
}

// Update processes one frame. It returns true when this frame completed a
// repetition. Frames whose triplets are all below the confidence floor, or
// whose angle is undefined, produce no transition.
func (r *RepCounter) Update(f *pose.Frame, timestamp float64) bool {
	angle, ok := r.jointAngle(f)
	if !ok {
		return false
	}

	debounced := timestamp-r.lastTransition >= r.cfg.DebounceSec

	switch r.state {
	case StateUp:
		if angle <= r.cfg.DownAngle+r.cfg.Tolerance && debounced {
			r.state = StateDown
			r.lastTransition = timestamp
		}
	case StateDown:
		if angle >= r.cfg.UpAngle-r.cfg.Tolerance && debounced {
			r.state = StateUp
			r.lastTransition = timestamp
			r.count++
			r.timestamps = append(r.timestamps, timestamp)
			return true
		}
	}
	return false
}

// jointAngle computes the triplet angle, falling back to the mirrored limb
// when the primary triplet is not confidently visible.
func (r *RepCounter) jointAngle(f *pose.Frame) (float64, bool) {
	if deg, ok := tripletAngle(f, r.cfg.Triplet, r.cfg.MinConfidence); ok {
		return deg, true
	}
	return tripletAngle(f, r.cfg.AltTriplet, r.cfg.MinConfidence)
}

func tripletAngle(f *pose.Frame, triplet [3]int, minConfidence float64) (float64, bool) {
	p1 := f.Keypoints[triplet[0]]
	p2 := f.Keypoints[triplet[1]]
	p3 := f.Keypoints[triplet[2]]
	if p1.Confidence < minConfidence || p2.Confidence < minConfidence || p3.Confidence < minConfidence {
		return 0, false
	}
	return pose.Angle(p1, p2, p3)
}

// Count returns the repetitions counted so far.
func (r *RepCounter) Count() int { return r.count }

// State returns the current phase.
func (r *RepCounter) State() RepState { return r.state }

// Timestamps returns when each counted rep completed.
func (r *RepCounter) Timestamps() []float64 { return r.timestamps }

// Config returns the counter's configuration.
func (r *RepCounter) Config() RepConfig { return r.cfg }
