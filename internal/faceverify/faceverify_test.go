package faceverify

import (
	"context"
	"math"
	"testing"

	"fairplay/internal/window"
)

func TestCosineDistance(t *testing.T) {
	tests := []struct {
		name    string
		a, b    []float64
		want    float64
		wantErr bool
	}{
		{
			name: "identical vectors",
			a:    []float64{1, 2, 3},
			b:    []float64{1, 2, 3},
			want: 0,
		},
		{
			name: "orthogonal vectors",
			a:    []float64{1, 0},
			b:    []float64{0, 1},
			want: 1,
		},
		{
			name: "opposite vectors",
			a:    []float64{1, 0},
			b:    []float64{-1, 0},
			want: 2,
		},
		{
			name:    "length mismatch",
			a:       []float64{1, 2},
			b:       []float64{1, 2, 3},
			wantErr: true,
		},
		{
			name:    "zero vector",
			a:       []float64{0, 0},
			b:       []float64{1, 1},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CosineDistance(tt.a, tt.b)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("distance = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCompareClampsSimilarity(t *testing.T) {
	ref := ReferenceIdentity{Name: "ref", Embedding: []float64{1, 0}}

	// Opposite vector: distance 2, raw similarity -100, clamped to 0.
	a, err := Compare(1, ref, []float64{-1, 0}, DefaultThresholds())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Similarity != 0 {
		t.Errorf("similarity = %v, want 0", a.Similarity)
	}
	if a.Verified {
		t.Error("opposite vector must not verify")
	}

	// Identical vector: distance 0, similarity 100.
	a, err = Compare(1, ref, []float64{1, 0}, DefaultThresholds())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Similarity != 100 {
		t.Errorf("similarity = %v, want 100", a.Similarity)
	}
	if !a.Verified {
		t.Error("identical vector must verify")
	}
}

func TestReduceZeroAttempts(t *testing.T) {
	r := Reduce(nil, 2, DefaultThresholds())
	if r.Verified {
		t.Error("zero attempts must not verify")
	}
	if r.Confidence != 0 {
		t.Errorf("confidence = %v, want exactly 0", r.Confidence)
	}
	if r.Error == "" {
		t.Error("zero attempts must carry the no-faces marker")
	}
	if r.FramesProcessed != 2 {
		t.Errorf("frames processed = %d, want 2", r.FramesProcessed)
	}
}

func TestReduceStrongMatches(t *testing.T) {
	// All attempts at similarity 90: verified with high confidence.
	var attempts []Attempt
	for i := 0; i < 4; i++ {
		attempts = append(attempts, Attempt{
			FrameIndex: i, Reference: "ref", Distance: 0.1,
			Similarity: 90, Verified: true,
		})
	}

	r := Reduce(attempts, 2, DefaultThresholds())
	if !r.Verified {
		t.Fatal("strong matches must verify")
	}
	// min(95, max(90, 72) + 1.0*20) = 95
	if r.Confidence != 95 {
		t.Errorf("confidence = %v, want 95", r.Confidence)
	}
	if r.VerificationRate != 1 {
		t.Errorf("rate = %v, want 1", r.VerificationRate)
	}
	if r.AvgSimilarity != 90 || r.MaxSimilarity != 90 {
		t.Errorf("avg/max = %v/%v, want 90/90", r.AvgSimilarity, r.MaxSimilarity)
	}
}

func TestReduceSingleStrongMatchOverridesLowRate(t *testing.T) {
	// One decisive match among many failures: verified via the override
	// even though the rate is far below consensus.
	attempts := []Attempt{
		{Similarity: 85, Verified: true},
	}
	for i := 0; i < 9; i++ {
		attempts = append(attempts, Attempt{Similarity: 10, Verified: false})
	}

	th := DefaultThresholds()
	th.RequiredMatches = 3 // make sure the override branch decides
	r := Reduce(attempts, 2, th)
	if !r.Verified {
		t.Error("high-confidence override should verify the session")
	}
}

func TestReduceUnverifiedConfidenceFloor(t *testing.T) {
	attempts := []Attempt{
		{Similarity: 10, Verified: false},
		{Similarity: 12, Verified: false},
	}
	th := DefaultThresholds()
	th.RequiredMatches = 2
	r := Reduce(attempts, 1, th)
	if r.Verified {
		t.Fatal("weak attempts must not verify")
	}
	// No successful attempts: avg 0, floor 5 applies.
	if r.Confidence != 5 {
		t.Errorf("confidence = %v, want floor 5", r.Confidence)
	}
}

func TestReduceDeterministic(t *testing.T) {
	attempts := []Attempt{
		{Similarity: 55, Verified: true},
		{Similarity: 20, Verified: false},
	}
	a := Reduce(attempts, 2, DefaultThresholds())
	b := Reduce(attempts, 2, DefaultThresholds())
	if a.Confidence != b.Confidence || a.Verified != b.Verified {
		t.Error("reduction must be deterministic for identical inputs")
	}
}

type stubEmbedder struct {
	embeddings map[int][]float64
}

func (s *stubEmbedder) Embed(_ context.Context, image []byte) ([]float64, error) {
	if e, ok := s.embeddings[len(image)]; ok {
		return e, nil
	}
	return nil, ErrNoFace
}

func TestEngineNoReferences(t *testing.T) {
	e := NewEngine(DefaultThresholds(), nil, nil, nil)
	r := e.Verify(context.Background(), []window.RetainedFrame{{Index: 1}})
	if r.Verified || r.Confidence != 0 || r.Error == "" {
		t.Errorf("no references should degrade to an explicit unverified result: %+v", r)
	}
}

func TestEngineSkipsFailedFrames(t *testing.T) {
	refs := []ReferenceIdentity{{Name: "athlete.jpg", Embedding: []float64{1, 0, 0}}}
	e := NewEngine(DefaultThresholds(), refs, &stubEmbedder{}, nil)

	// Embedder finds no face in either frame: zero attempts, confidence 0.
	frames := []window.RetainedFrame{
		{Index: 10, Image: []byte("a")},
		{Index: 30, Image: []byte("bb")},
	}
	r := e.Verify(context.Background(), frames)
	if r.Total != 0 {
		t.Errorf("total attempts = %d, want 0", r.Total)
	}
	if r.Confidence != 0 {
		t.Errorf("confidence = %v, want 0", r.Confidence)
	}
}

func TestEnginePreExtractedEmbeddings(t *testing.T) {
	refs := []ReferenceIdentity{
		{Name: "front.jpg", Embedding: []float64{1, 0, 0}},
		{Name: "side.jpg", Embedding: []float64{0.9, 0.1, 0}},
	}
	e := NewEngine(DefaultThresholds(), refs, nil, nil)

	frames := []window.RetainedFrame{
		{Index: 10, Embedding: []float64{1, 0, 0}},
		{Index: 30, Embedding: []float64{0.95, 0.05, 0}},
	}
	r := e.Verify(context.Background(), frames)

	// Attempts = frames x references.
	if r.Total != 4 {
		t.Errorf("total attempts = %d, want 4", r.Total)
	}
	if !r.Verified {
		t.Error("aligned embeddings should verify")
	}
	if r.FramesProcessed != 2 {
		t.Errorf("frames processed = %d, want 2", r.FramesProcessed)
	}
}
