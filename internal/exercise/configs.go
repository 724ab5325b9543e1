package exercise

import (
	"fmt"

	"fairplay/internal/pose"
)

// Exercise names accepted by the engine.
const (
	Pushups      = "pushups"
	Situps       = "situps"
	Squats       = "squats"
	VerticalJump = "vertical_jump"
	LongJump     = "long_jump"
)

// RepExercises lists the angle-based exercises in canonical order.
func RepExercises() []string { return []string{Pushups, Situps, Squats} }

// JumpExercises lists the displacement-based exercises in canonical order.
func JumpExercises() []string { return []string{VerticalJump, LongJump} }

// IsJumpExercise reports whether name is scored by displacement rather
// than joint angle.
func IsJumpExercise(name string) bool {
	return name == VerticalJump || name == LongJump
}

// DefaultRepConfigs returns the built-in angle-based exercise
// configurations. Angles are tuned for handheld-camera footage; the
// alternate triplet mirrors the primary so either body side can drive
// the count.
func DefaultRepConfigs() map[string]RepConfig {
	return map[string]RepConfig{
		Pushups: {
			Name:          Pushups,
			Triplet:       [3]int{pose.LeftShoulder, pose.LeftElbow, pose.LeftWrist},
			AltTriplet:    [3]int{pose.RightShoulder, pose.RightElbow, pose.RightWrist},
			JointNames:    [3]string{"shoulder", "elbow", "wrist"},
			UpAngle:       160,
			DownAngle:     90,
			Tolerance:     20,
			MinConfidence: 0.3,
			DebounceSec:   0.5,
		},
		Situps: {
			Name:          Situps,
			Triplet:       [3]int{pose.LeftShoulder, pose.LeftHip, pose.LeftKnee},
			AltTriplet:    [3]int{pose.RightShoulder, pose.RightHip, pose.RightKnee},
			JointNames:    [3]string{"shoulder", "hip", "knee"},
			UpAngle:       120,
			DownAngle:     55,
			Tolerance:     20,
			MinConfidence: 0.3,
			DebounceSec:   0.5,
		},
		Squats: {
			Name:          Squats,
			Triplet:       [3]int{pose.LeftHip, pose.LeftKnee, pose.LeftAnkle},
			AltTriplet:    [3]int{pose.RightHip, pose.RightKnee, pose.RightAnkle},
			JointNames:    [3]string{"hip", "knee", "ankle"},
			UpAngle:       160,
			DownAngle:     85,
			Tolerance:     20,
			MinConfidence: 0.3,
			DebounceSec:   0.5,
		},
	}
}

// DefaultJumpConfigs returns the built-in displacement-based exercise
// configurations. Vertical jumps track a hip; long jumps track an ankle
// for horizontal travel.
func DefaultJumpConfigs() map[string]JumpConfig {
	return map[string]JumpConfig{
		VerticalJump: {
			TrackLandmark:      pose.LeftHip,
			AltTrackLandmark:   pose.RightHip,
			MinConfidence:      0.35,
			LiftoffThreshold:   30,
			BaselineWindow:     20,
			BaselineMinSamples: 8,
			MinAirborneSec:     0.2,
			VerticalScale:      0.25,
			HorizontalScale:    0.3,
			PlausibilityFactor: 1.3,
		},
		LongJump: {
			TrackLandmark:      pose.LeftAnkle,
			AltTrackLandmark:   pose.RightAnkle,
			MinConfidence:      0.35,
			LiftoffThreshold:   30,
			BaselineWindow:     20,
			BaselineMinSamples: 8,
			MinAirborneSec:     0.2,
			VerticalScale:      0.25,
			HorizontalScale:    0.3,
			PlausibilityFactor: 1.3,
		},
	}
}

// LookupRep returns the configuration for an angle-based exercise.
func LookupRep(name string) (RepConfig, error) {
	cfg, ok := DefaultRepConfigs()[name]
	if !ok {
		return RepConfig{}, fmt.Errorf("unknown exercise %q", name)
	}
	return cfg, nil
}

// LookupJump returns the configuration for a displacement-based exercise.
func LookupJump(name string) (JumpConfig, error) {
	cfg, ok := DefaultJumpConfigs()[name]
	if !ok {
		return JumpConfig{}, fmt.Errorf("unknown jump exercise %q", name)
	}
	return cfg, nil
}
