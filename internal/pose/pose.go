// Package pose defines the keypoint data model shared by the decision engine.
//
// A frame carries the fixed 17-landmark body pose produced by an external
// pose-estimation model, each landmark with (x, y) position and a confidence
// in [0,1]. The engine never runs the model itself; it consumes frames that
// were extracted upstream.
package pose

import (
	"context"
	"math"
)

// NumLandmarks is the fixed cardinality of a body pose.
const NumLandmarks = 17

// Landmark indices (COCO keypoint order).
const (
	Nose          = 0
	LeftEye       = 1
	RightEye      = 2
	LeftEar       = 3
	RightEar      = 4
	LeftShoulder  = 5
	RightShoulder = 6
	LeftElbow     = 7
	RightElbow    = 8
	LeftWrist     = 9
	RightWrist    = 10
	LeftHip       = 11
	RightHip      = 12
	LeftKnee      = 13
	RightKnee     = 14
	LeftAnkle     = 15
	RightAnkle    = 16
)

// landmarkNames maps indices to anatomical names for reports and logs.
var landmarkNames = [NumLandmarks]string{
	"nose", "left_eye", "right_eye", "left_ear", "right_ear",
	"left_shoulder", "right_shoulder", "left_elbow", "right_elbow",
	"left_wrist", "right_wrist", "left_hip", "right_hip",
	"left_knee", "right_knee", "left_ankle", "right_ankle",
}

// LandmarkName returns the anatomical name for a landmark index.
func LandmarkName(i int) string {
	if i < 0 || i >= NumLandmarks {
		return "unknown"
	}
	return landmarkNames[i]
}

// Keypoint is a single landmark observation.
type Keypoint struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Confidence float64 `json:"confidence"`
}

// Frame is one sampled frame's pose. A frame where extraction failed is the
// zero value with Detected=false: all-zero positions and confidences, which
// downstream components treat as a low-confidence frame, never an error.
type Frame struct {
	Index     int                    `json:"frame_index"`
	Timestamp float64                `json:"timestamp"`
	Keypoints [NumLandmarks]Keypoint `json:"keypoints"`
	Detected  bool                   `json:"detected"`
}

// MeanConfidence returns the mean of all positive landmark confidences,
// or 0 when no landmark has positive confidence.
func (f *Frame) MeanConfidence() float64 {
	sum := 0.0
	n := 0
	for i := range f.Keypoints {
		if c := f.Keypoints[i].Confidence; c > 0 {
			sum += c
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// Displacement returns the Euclidean distance between the same landmark in
// two frames.
func Displacement(a, b Keypoint) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Angle computes the joint angle in degrees at p2, between the vectors
// (p1-p2) and (p3-p2). Returns ok=false when either vector norm is near
// zero, in which case the angle is undefined.
func Angle(p1, p2, p3 Keypoint) (deg float64, ok bool) {
	v1x, v1y := p1.X-p2.X, p1.Y-p2.Y
	v2x, v2y := p3.X-p2.X, p3.Y-p2.Y

	n1 := math.Sqrt(v1x*v1x + v1y*v1y)
	n2 := math.Sqrt(v2x*v2x + v2y*v2y)
	if n1 < 1e-6 || n2 < 1e-6 {
		return 0, false
	}

	cos := (v1x*v2x + v1y*v2y) / (n1 * n2)
	if cos > 1 {
		cos = 1
	}
	if cos < -1 {
		cos = -1
	}
	return math.Acos(cos) * 180 / math.Pi, true
}

// Estimator is the external pose-estimation collaborator. A frame with no
// detected subject is returned as the zero Frame, not an error.
type Estimator interface {
	EstimateFrame(ctx context.Context, image []byte) (Frame, error)
}
