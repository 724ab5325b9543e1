// Package anomaly flags suspicious frame-level patterns in a pose stream:
// low-confidence detections, duplicated/static frames, and implausible joint
// velocities. Flags are append-only within a session and are later fused
// with face verification into the authenticity verdict.
package anomaly

import "fairplay/internal/pose"

// Type categorizes the kind of anomaly detected.
type Type string

const (
	TypeLowConfidence   Type = "low_confidence"
	TypeDuplicateFrames Type = "duplicate_frames"
	TypeVelocityOutlier Type = "velocity_outlier"
)

// Severity indicates the importance level of a flag.
type Severity string

const (
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Flag is one detected anomaly. Payload fields are populated per type:
// Confidence for low_confidence, DuplicateCount for duplicate_frames,
// LargeMovements/MaxVelocity for velocity_outlier.
type Flag struct {
	Type      Type     `json:"type"`
	Severity  Severity `json:"severity"`
	Timestamp float64  `json:"timestamp"`

	Confidence     float64 `json:"confidence,omitempty"`
	DuplicateCount int     `json:"duplicate_count,omitempty"`
	LargeMovements int     `json:"large_movements,omitempty"`
	MaxVelocity    float64 `json:"max_velocity,omitempty"`
}

// Summary tallies flags by type for risk fusion.
type Summary struct {
	Total  int          `json:"total_flags"`
	ByType map[Type]int `json:"flag_categories"`
}

// Summarize counts flags overall and per type.
func Summarize(flags []Flag) Summary {
	s := Summary{ByType: make(map[Type]int)}
	for _, f := range flags {
		s.Total++
		s.ByType[f.Type]++
	}
	return s
}

// velocityLandmarks are the structurally meaningful landmarks checked for
// implausible per-frame displacement: shoulders and hips.
var velocityLandmarks = []int{
	pose.LeftShoulder, pose.RightShoulder, pose.LeftHip, pose.RightHip,
}
