package anomaly

import (
	"fmt"
	"testing"

	"fairplay/internal/pose"
	"fairplay/internal/window"
)

func confidentFrame(index int, conf float64) pose.Frame {
	var f pose.Frame
	f.Index = index
	f.Detected = true
	for i := range f.Keypoints {
		f.Keypoints[i] = pose.Keypoint{X: 100, Y: 100, Confidence: conf}
	}
	return f
}

func pushDistinct(st *window.Store, index int) window.FrameHash {
	h := window.HashFrame([]byte(fmt.Sprintf("frame-%d", index)))
	st.PushHash(h)
	return h
}

func TestLowConfidenceFlag(t *testing.T) {
	fl := NewFlagger(DefaultThresholds())
	st := window.NewStore(window.DefaultCapacities())

	// Warm up past MinFrames with confident frames.
	var h window.FrameHash
	for i := 0; i < 3; i++ {
		st.PushFrame(confidentFrame(i, 0.8))
		h = pushDistinct(st, i)
	}
	if flags := fl.Analyze(st, h, 0.2); len(flags) != 0 {
		t.Fatalf("confident frame should not flag, got %v", flags)
	}

	// A weak frame flags with the observed mean.
	st.PushFrame(confidentFrame(3, 0.1))
	h = pushDistinct(st, 3)
	flags := fl.Analyze(st, h, 0.3)
	if len(flags) != 1 || flags[0].Type != TypeLowConfidence {
		t.Fatalf("expected single low_confidence flag, got %v", flags)
	}
	if flags[0].Confidence < 0.09 || flags[0].Confidence > 0.11 {
		t.Errorf("flag should carry observed mean ~0.1, got %f", flags[0].Confidence)
	}
	if flags[0].Severity != SeverityMedium {
		t.Errorf("low_confidence severity = %s, want medium", flags[0].Severity)
	}
}

func TestFailedExtractionFlagsOnlyConfidence(t *testing.T) {
	fl := NewFlagger(DefaultThresholds())
	st := window.NewStore(window.DefaultCapacities())

	var h window.FrameHash
	for i := 0; i < 3; i++ {
		st.PushFrame(confidentFrame(i, 0.8))
		h = pushDistinct(st, i)
	}

	// Extraction failure: zero frame still advances the window.
	st.PushFrame(pose.Frame{Index: 3})
	h = pushDistinct(st, 3)
	flags := fl.Analyze(st, h, 0.3)

	if len(flags) != 1 {
		t.Fatalf("expected exactly one flag, got %v", flags)
	}
	if flags[0].Type != TypeLowConfidence || flags[0].Confidence != 0 {
		t.Errorf("expected low_confidence with 0 mean, got %+v", flags[0])
	}
}

func TestDuplicateFlagFiresOnce(t *testing.T) {
	fl := NewFlagger(DefaultThresholds())
	st := window.NewStore(window.DefaultCapacities())

	dup := window.HashFrame([]byte("static"))
	duplicateFlags := 0

	// Five identical frames with threshold 3: exactly one flag, emitted once
	// the fourth duplicate is observed.
	for i := 0; i < 5; i++ {
		st.PushFrame(confidentFrame(i, 0.8))
		st.PushHash(dup)
		for _, f := range fl.Analyze(st, dup, float64(i)) {
			if f.Type == TypeDuplicateFrames {
				duplicateFlags++
				if f.DuplicateCount != 4 {
					t.Errorf("flag count = %d, want 4", f.DuplicateCount)
				}
				if f.Severity != SeverityHigh {
					t.Errorf("duplicate severity = %s, want high", f.Severity)
				}
				if i != 3 {
					t.Errorf("flag emitted at frame %d, want 3 (the fourth duplicate)", i)
				}
			}
		}
	}

	if duplicateFlags != 1 {
		t.Errorf("expected exactly 1 duplicate flag, got %d", duplicateFlags)
	}
}

func TestVelocityOutlier(t *testing.T) {
	fl := NewFlagger(DefaultThresholds())
	st := window.NewStore(window.DefaultCapacities())

	var h window.FrameHash
	for i := 0; i < 3; i++ {
		st.PushFrame(confidentFrame(i, 0.8))
		h = pushDistinct(st, i)
	}

	// Teleport shoulders and hips 200px in one step.
	jump := confidentFrame(3, 0.8)
	for _, i := range velocityLandmarks {
		jump.Keypoints[i].X += 200
	}
	st.PushFrame(jump)
	h = pushDistinct(st, 3)

	flags := fl.Analyze(st, h, 0.3)
	var found *Flag
	for i := range flags {
		if flags[i].Type == TypeVelocityOutlier {
			found = &flags[i]
		}
	}
	if found == nil {
		t.Fatalf("expected velocity_outlier flag, got %v", flags)
	}
	if found.LargeMovements != 4 {
		t.Errorf("large movements = %d, want 4", found.LargeMovements)
	}
	if found.MaxVelocity < 199 || found.MaxVelocity > 201 {
		t.Errorf("max velocity = %f, want ~200", found.MaxVelocity)
	}
}

func TestVelocityExcludesUncertainLandmarks(t *testing.T) {
	fl := NewFlagger(DefaultThresholds())
	st := window.NewStore(window.DefaultCapacities())

	var h window.FrameHash
	for i := 0; i < 3; i++ {
		st.PushFrame(confidentFrame(i, 0.8))
		h = pushDistinct(st, i)
	}

	// Same teleport, but the landmarks are below the velocity confidence
	// floor: uncertain position is not evidence of movement.
	jump := confidentFrame(3, 0.8)
	for _, i := range velocityLandmarks {
		jump.Keypoints[i].X += 200
		jump.Keypoints[i].Confidence = 0.1
	}
	st.PushFrame(jump)
	h = pushDistinct(st, 3)

	for _, f := range fl.Analyze(st, h, 0.3) {
		if f.Type == TypeVelocityOutlier {
			t.Errorf("uncertain landmarks should not produce velocity flags: %+v", f)
		}
	}
}

func TestSummarize(t *testing.T) {
	flags := []Flag{
		{Type: TypeLowConfidence},
		{Type: TypeLowConfidence},
		{Type: TypeDuplicateFrames},
	}
	s := Summarize(flags)
	if s.Total != 3 {
		t.Errorf("total = %d, want 3", s.Total)
	}
	if s.ByType[TypeLowConfidence] != 2 || s.ByType[TypeDuplicateFrames] != 1 {
		t.Errorf("unexpected tally: %v", s.ByType)
	}
}
