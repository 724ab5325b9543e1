// Package faceverify reduces per-frame face-embedding comparisons against a
// small set of reference identities into one verified/not-verified decision
// with a confidence score.
//
// The embedding model is an external collaborator; this package only
// computes distances between embeddings it is handed and applies the
// balanced consensus policy. Given identical inputs and thresholds the
// result is fully deterministic.
package faceverify

import (
	"context"
	"errors"
	"math"
)

// ErrNoFace is returned by an Embedder when no face is found in a frame.
// The frame contributes zero verification attempts; it is never fatal.
var ErrNoFace = errors.New("no face detected")

// ErrNoReferences signals that a session has no usable reference
// identities. Verification degrades to an explicit unverified result.
var ErrNoReferences = errors.New("no usable reference identities")

// Embedder is the external face-embedding collaborator.
type Embedder interface {
	// Embed returns a fixed-length embedding for the face in the image,
	// or ErrNoFace when none is found.
	Embed(ctx context.Context, image []byte) ([]float64, error)
}

// ReferenceIdentity is a named, precomputed reference embedding. Loaded
// once per session configuration and read-only during analysis.
type ReferenceIdentity struct {
	Name      string    `json:"name"`
	Embedding []float64 `json:"embedding"`
}

// Attempt is one (frame, reference identity) comparison.
type Attempt struct {
	FrameIndex int     `json:"frame"`
	Reference  string  `json:"reference"`
	Distance   float64 `json:"distance"`
	Similarity float64 `json:"similarity"`
	Verified   bool    `json:"verified"`
}

// Result is the consensus reduction over all attempts in a session.
// Always recomputed from the full attempt list, never mutated in place.
type Result struct {
	Verified         bool      `json:"verified"`
	Confidence       float64   `json:"confidence"`
	VerificationRate float64   `json:"verification_rate"`
	AvgSimilarity    float64   `json:"avg_similarity"`
	MaxSimilarity    float64   `json:"max_similarity"`
	Successful       int       `json:"successful_verifications"`
	Total            int       `json:"total_verifications"`
	FramesProcessed  int       `json:"frames_processed"`
	Error            string    `json:"error,omitempty"`
	Attempts         []Attempt `json:"detailed_results,omitempty"`
}

// Thresholds configures the comparison and consensus policy.
type Thresholds struct {
	// DistanceMax is the cosine-distance ceiling for a positive match.
	DistanceMax float64

	// MinSimilarity is the similarity floor (0-100) for a positive match.
	MinSimilarity float64

	// ConsensusRate is the fraction of positive attempts that passes the
	// session outright.
	ConsensusRate float64

	// RequiredMatches passes the session when at least this many attempts
	// were positive, regardless of rate.
	RequiredMatches int

	// HighConfidenceOverride passes the session on a single very strong
	// match (similarity at or above this value). Handles partially
	// occluded video where most attempts fail but one frame is decisive.
	HighConfidenceOverride float64
}

// DefaultThresholds mirrors the balanced tuning of the production engine.
func DefaultThresholds() Thresholds {
	return Thresholds{
		DistanceMax:            0.50,
		MinSimilarity:          35.0,
		ConsensusRate:          0.4,
		RequiredMatches:        1,
		HighConfidenceOverride: 60.0,
	}
}

// CosineDistance returns 1 - cos(a, b). An error is returned for mismatched
// lengths or a zero-norm vector; callers skip the attempt gracefully.
func CosineDistance(a, b []float64) (float64, error) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, errors.New("embedding length mismatch")
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0, errors.New("zero-norm embedding")
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb)), nil
}

// Compare scores one frame embedding against one reference.
func Compare(frameIndex int, ref ReferenceIdentity, embedding []float64, t Thresholds) (Attempt, error) {
	distance, err := CosineDistance(embedding, ref.Embedding)
	if err != nil {
		return Attempt{}, err
	}

	similarity := (1 - distance) * 100
	if similarity < 0 {
		similarity = 0
	}
	if similarity > 100 {
		similarity = 100
	}

	return Attempt{
		FrameIndex: frameIndex,
		Reference:  ref.Name,
		Distance:   distance,
		Similarity: similarity,
		Verified:   distance <= t.DistanceMax && similarity >= t.MinSimilarity,
	}, nil
}

// Reduce folds all attempts into one Result. With zero attempts the session
// is unverified with confidence exactly 0 and an explicit marker: no
// evidence, which is distinct from weak evidence.
func Reduce(attempts []Attempt, framesProcessed int, t Thresholds) Result {
	if len(attempts) == 0 {
		return Result{
			Verified:        false,
			Confidence:      0,
			FramesProcessed: framesProcessed,
			Error:           "no faces could be processed",
		}
	}

	successful := 0
	var sum, max float64
	for _, a := range attempts {
		if a.Verified {
			successful++
			sum += a.Similarity
			if a.Similarity > max {
				max = a.Similarity
			}
		}
	}

	rate := float64(successful) / float64(len(attempts))
	avg := 0.0
	if successful > 0 {
		avg = sum / float64(successful)
	}

	verified := rate >= t.ConsensusRate ||
		successful >= t.RequiredMatches ||
		max >= t.HighConfidenceOverride

	// Confidence is deliberately asymmetric: verified sessions blend the
	// strongest evidence with a generous ceiling, unverified sessions are
	// capped low but stay above zero, which is reserved for zero attempts.
	var confidence float64
	if verified {
		confidence = math.Min(95, math.Max(avg, max*0.8)+rate*20)
	} else {
		confidence = math.Max(5, avg*0.5)
	}

	return Result{
		Verified:         verified,
		Confidence:       confidence,
		VerificationRate: rate,
		AvgSimilarity:    avg,
		MaxSimilarity:    max,
		Successful:       successful,
		Total:            len(attempts),
		FramesProcessed:  framesProcessed,
		Attempts:         attempts,
	}
}
