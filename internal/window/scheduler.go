package window

// SamplePolicy configures the fixed-stride sampling decisions.
type SamplePolicy struct {
	// PoseStride forwards every Nth decoded frame to pose extraction.
	PoseStride int

	// VerifyInterval retains every Nth decoded frame for face verification,
	// up to MaxVerifyFrames. Only frames already selected for pose sampling
	// are eligible.
	VerifyInterval int

	// MaxVerifyFrames caps how many raw frames are retained per session.
	MaxVerifyFrames int
}

// DefaultSamplePolicy mirrors the strides the engine was tuned with.
func DefaultSamplePolicy() SamplePolicy {
	return SamplePolicy{
		PoseStride:      10,
		VerifyInterval:  20,
		MaxVerifyFrames: 2,
	}
}

// Decision says what to do with one decoded frame.
type Decision struct {
	SamplePose  bool // run pose extraction and push into the window
	RetainFrame bool // keep the raw frame for face verification
	ComputeHash bool // compute and buffer the perceptual hash
}

// Scheduler applies a SamplePolicy to a monotonically increasing frame
// index. It holds no state beyond the retained-frame counter.
type Scheduler struct {
	policy   SamplePolicy
	retained int
}

// NewScheduler creates a Scheduler. Zero or negative strides are clamped
// to 1 so every frame is sampled.
func NewScheduler(policy SamplePolicy) *Scheduler {
	if policy.PoseStride <= 0 {
		policy.PoseStride = 1
	}
	if policy.VerifyInterval <= 0 {
		policy.VerifyInterval = 1
	}
	return &Scheduler{policy: policy}
}

// Decide returns the sampling decision for the given frame index.
func (s *Scheduler) Decide(frameIndex int) Decision {
	var d Decision
	if frameIndex%s.policy.PoseStride != 0 {
		return d
	}
	d.SamplePose = true
	d.ComputeHash = true
	if frameIndex%s.policy.VerifyInterval == 0 && s.retained < s.policy.MaxVerifyFrames {
		d.RetainFrame = true
		s.retained++
	}
	return d
}

// Retained returns how many frames have been designated for verification.
func (s *Scheduler) Retained() int { return s.retained }
