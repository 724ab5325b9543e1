package exercise

import "fairplay/internal/pose"

// Gravity in cm/s^2, used by the free-fall plausibility bound.
const gravityCmS2 = 981.0

// JumpConfig parameterizes the jump detector.
type JumpConfig struct {
	// TrackLandmark is the landmark whose vertical position is tracked
	// against the rolling baseline (typically a hip).
	TrackLandmark int `toml:"track_landmark" json:"track_landmark"`

	// AltTrackLandmark is the mirrored landmark, used when the primary is
	// below MinConfidence.
	AltTrackLandmark int `toml:"alt_track_landmark" json:"alt_track_landmark"`

	// MinConfidence is the confidence floor for a usable sample.
	MinConfidence float64 `toml:"min_confidence" json:"min_confidence"`

	// LiftoffThreshold is the upward displacement from baseline (pixels)
	// that starts a jump. Landing fires at half this displacement.
	LiftoffThreshold float64 `toml:"liftoff_threshold" json:"liftoff_threshold"`

	// BaselineWindow is how many recent samples feed the baseline median.
	BaselineWindow int `toml:"baseline_window" json:"baseline_window"`

	// BaselineMinSamples is the minimum confident samples required before
	// the baseline is considered valid.
	BaselineMinSamples int `toml:"baseline_min_samples" json:"baseline_min_samples"`

	// MinAirborneSec guards against single-frame noise spikes being
	// scored as a full jump.
	MinAirborneSec float64 `toml:"min_airborne_sec" json:"min_airborne_sec"`

	// VerticalScale and HorizontalScale convert pixels to centimeters.
	VerticalScale   float64 `toml:"vertical_scale" json:"vertical_scale"`
	HorizontalScale float64 `toml:"horizontal_scale" json:"horizontal_scale"`

	// PlausibilityFactor loosens the free-fall height bound
	// (g*t^2/8). Empirically chosen; tunable, not a physical constant.
	PlausibilityFactor float64 `toml:"plausibility_factor" json:"plausibility_factor"`
}

// JumpEvent is one detected jump. It is mutated only while airborne (peak
// tracking) and sealed on landing; finalized events are immutable.
type JumpEvent struct {
	StartFrame int     `json:"start_frame"`
	StartTime  float64 `json:"start_time"`
	StartX     float64 `json:"start_x"`
	StartY     float64 `json:"start_y"`
	Baseline   float64 `json:"baseline_y"`
	PeakY      float64 `json:"peak_y"`
	PeakFrame  int     `json:"peak_frame"`
	EndFrame   int     `json:"end_frame"`
	EndTime    float64 `json:"end_time"`
	EndX       float64 `json:"end_x"`
	EndY       float64 `json:"end_y"`
	FlightTime float64 `json:"flight_time"`
	HeightPx   float64 `json:"height_pixels"`
	DistancePx float64 `json:"distance_pixels"`
}

// JumpDetector tracks one landmark against a rolling median baseline and
// produces finalized JumpEvents. One instance per session; not safe for
// concurrent use.
type JumpDetector struct {
	cfg     JumpConfig
	samples []baselineSample // rolling window, newest last
	current *JumpEvent
	jumps   []JumpEvent
}

type baselineSample struct {
	y         float64
	confident bool
}

// NewJumpDetector creates a detector in the grounded state.
func NewJumpDetector(cfg JumpConfig) *JumpDetector {
	if cfg.BaselineWindow <= 0 {
		cfg.BaselineWindow = 20
	}
	return &JumpDetector{cfg: cfg}
}

// Update processes one frame. The baseline is computed from samples before
// this frame so a liftoff does not drag its own baseline upward.
func (d *JumpDetector) Update(f *pose.Frame, frameIndex int, timestamp float64) {
	kp, ok := d.trackedPoint(f)

	baseline, baselineOK := d.baseline()
	d.pushSample(kp.Y, ok)

	if !ok || !baselineOK {
		return
	}

	// Image coordinates grow downward: airborne means y well below
	// baseline numerically, i.e. y < baseline - threshold.
	if d.current == nil {
		if kp.Y < baseline-d.cfg.LiftoffThreshold {
			d.current = &JumpEvent{
				StartFrame: frameIndex,
				StartTime:  timestamp,
				StartX:     kp.X,
				StartY:     kp.Y,
				Baseline:   baseline,
				PeakY:      kp.Y,
				PeakFrame:  frameIndex,
			}
		}
		return
	}

	if kp.Y < d.current.PeakY {
		d.current.PeakY = kp.Y
		d.current.PeakFrame = frameIndex
	}

	landed := kp.Y > d.current.Baseline-d.cfg.LiftoffThreshold/2
	airborneLongEnough := timestamp > d.current.StartTime+d.cfg.MinAirborneSec
	if landed && airborneLongEnough {
		d.current.EndFrame = frameIndex
		d.current.EndTime = timestamp
		d.current.EndX = kp.X
		d.current.EndY = kp.Y
		d.current.FlightTime = timestamp - d.current.StartTime
		d.current.HeightPx = d.current.Baseline - d.current.PeakY
		d.current.DistancePx = abs(d.current.EndX - d.current.StartX)
		d.jumps = append(d.jumps, *d.current)
		d.current = nil
	}
}

// trackedPoint returns the tracked landmark, preferring the primary and
// falling back to the mirrored one.
func (d *JumpDetector) trackedPoint(f *pose.Frame) (pose.Keypoint, bool) {
	kp := f.Keypoints[d.cfg.TrackLandmark]
	if kp.Confidence >= d.cfg.MinConfidence {
		return kp, true
	}
	alt := f.Keypoints[d.cfg.AltTrackLandmark]
	if alt.Confidence >= d.cfg.MinConfidence {
		return alt, true
	}
	return kp, false
}

// pushSample appends to the rolling window, evicting the oldest entry.
func (d *JumpDetector) pushSample(y float64, confident bool) {
	d.samples = append(d.samples, baselineSample{y: y, confident: confident})
	if len(d.samples) > d.cfg.BaselineWindow {
		d.samples = d.samples[1:]
	}
}

// baseline returns the median vertical position of confident samples in
// the window, requiring the minimum sample count.
func (d *JumpDetector) baseline() (float64, bool) {
	var ys []float64
	for _, s := range d.samples {
		if s.confident {
			ys = append(ys, s.y)
		}
	}
	if len(ys) < d.cfg.BaselineMinSamples {
		return 0, false
	}
	return median(ys), true
}

// Jumps returns the finalized jump events, oldest first.
func (d *JumpDetector) Jumps() []JumpEvent { return d.jumps }

// Airborne reports whether a jump is currently in flight. A pending jump
// at end-of-stream is discarded, never finalized.
func (d *JumpDetector) Airborne() bool { return d.current != nil }

// Config returns the detector's effective configuration.
func (d *JumpDetector) Config() JumpConfig { return d.cfg }

// JumpRecord is one jump converted to physical units.
type JumpRecord struct {
	Number        int     `json:"jump_number"`
	HeightCM      float64 `json:"jump_height_cm"`
	DistanceCM    float64 `json:"horizontal_distance_cm"`
	FlightTimeSec float64 `json:"flight_time_seconds"`
}

// JumpSummary aggregates a session's finalized jumps.
type JumpSummary struct {
	Count           int          `json:"jump_count"`
	Jumps           []JumpRecord `json:"individual_jumps"`
	AverageHeightCM float64      `json:"average_height_cm"`
	TotalHeightCM   float64      `json:"total_height_cm"`
}

// SummarizeVerticalJumps converts finalized events to physical units. The
// pixel-derived height is capped by the free-fall bound g*t^2/8 scaled by
// the plausibility factor: camera-scale errors cannot report impossible
// heights.
func SummarizeVerticalJumps(jumps []JumpEvent, cfg JumpConfig) JumpSummary {
	s := JumpSummary{Count: len(jumps)}
	if len(jumps) == 0 {
		return s
	}

	total := 0.0
	for i, j := range jumps {
		heightCM := abs(j.HeightPx) * cfg.VerticalScale
		physicsCM := gravityCmS2 * j.FlightTime * j.FlightTime / 8
		if bound := physicsCM * cfg.PlausibilityFactor; heightCM > bound {
			heightCM = bound
		}

		s.Jumps = append(s.Jumps, JumpRecord{
			Number:        i + 1,
			HeightCM:      heightCM,
			DistanceCM:    abs(j.DistancePx) * cfg.HorizontalScale,
			FlightTimeSec: j.FlightTime,
		})
		total += heightCM
	}

	s.AverageHeightCM = total / float64(len(jumps))
	s.TotalHeightCM = total
	return s
}

// LongJumpSummary is the single-jump horizontal result.
type LongJumpSummary struct {
	DistanceCM    float64 `json:"distance_cm"`
	FlightTimeSec float64 `json:"flight_time_seconds"`
}

// SummarizeLongJump converts the first finalized jump to a horizontal
// distance. Returns ok=false when no jump was detected.
func SummarizeLongJump(jumps []JumpEvent, cfg JumpConfig) (LongJumpSummary, bool) {
	if len(jumps) == 0 {
		return LongJumpSummary{}, false
	}
	j := jumps[0]
	return LongJumpSummary{
		DistanceCM:    abs(j.DistancePx) * cfg.HorizontalScale,
		FlightTimeSec: j.FlightTime,
	}, true
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	// insertion sort; windows are small
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j] < sorted[j-1]; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}
