// Package session runs the full per-video assessment pipeline: it feeds a
// session's sampled frames through the rolling window, anomaly flagging,
// exercise counting and face verification, fuses the outcomes into a risk
// assessment, and projects everything into a single stable report.
package session

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"

	"fairplay/internal/exercise"
	"fairplay/internal/faceverify"
	"fairplay/internal/pose"
	"fairplay/internal/window"
)

// VideoMeta describes the source video a session was extracted from.
type VideoMeta struct {
	FPS        float64 `json:"fps"`
	FrameCount int     `json:"frame_count"`
	Width      int     `json:"width,omitempty"`
	Height     int     `json:"height,omitempty"`
	Duration   float64 `json:"duration_seconds,omitempty"`
}

// InputFrame is one decoded frame of a session input. Keypoints holds 17
// rows of [x, y, confidence]; an empty slice marks a frame where pose
// extraction found no subject. Hash is an optional hex digest of the
// downsampled frame; FaceEmbedding is an optional pre-extracted embedding.
type InputFrame struct {
	Index         int          `json:"index"`
	Timestamp     float64      `json:"timestamp"`
	Keypoints     [][3]float64 `json:"keypoints,omitempty"`
	Hash          string       `json:"frame_hash,omitempty"`
	FaceEmbedding []float64    `json:"face_embedding,omitempty"`
}

// Input is a complete session file: one video's extracted frames plus the
// reference identities to verify against.
type Input struct {
	SessionID  string                         `json:"session_id,omitempty"`
	Exercise   string                         `json:"exercise"`
	Athlete    string                         `json:"athlete,omitempty"`
	Video      VideoMeta                      `json:"video"`
	Frames     []InputFrame                   `json:"frames"`
	References []faceverify.ReferenceIdentity `json:"references,omitempty"`
}

// ParseInput decodes and validates a session input document.
func ParseInput(data []byte) (*Input, error) {
	var in Input
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("session input: %w", err)
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return &in, nil
}

// Validate checks the structural invariants a session input must satisfy
// before analysis.
func (in *Input) Validate() error {
	if in.Exercise == "" {
		return fmt.Errorf("session input: missing exercise")
	}
	known := false
	for _, name := range append(exercise.RepExercises(), exercise.JumpExercises()...) {
		if in.Exercise == name {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("session input: unknown exercise %q", in.Exercise)
	}
	if in.Video.FPS <= 0 {
		return fmt.Errorf("session input: video fps must be positive")
	}
	if len(in.Frames) == 0 {
		return fmt.Errorf("session input: no frames")
	}
	prev := -1
	for i, f := range in.Frames {
		if f.Index <= prev {
			return fmt.Errorf("session input: frame %d out of order (index %d)", i, f.Index)
		}
		prev = f.Index
		if n := len(f.Keypoints); n != 0 && n != pose.NumLandmarks {
			return fmt.Errorf("session input: frame %d has %d keypoints, want %d or none",
				f.Index, n, pose.NumLandmarks)
		}
		if f.Hash != "" {
			if _, err := decodeFrameHash(f.Hash); err != nil {
				return fmt.Errorf("session input: frame %d: %w", f.Index, err)
			}
		}
	}
	for i, ref := range in.References {
		if len(ref.Embedding) == 0 {
			return fmt.Errorf("session input: reference %d (%q) has no embedding", i, ref.Name)
		}
	}
	return nil
}

// PoseFrame converts the input frame into the window's pose representation.
// A frame without keypoints becomes the zero Frame with Detected=false.
func (f *InputFrame) PoseFrame() pose.Frame {
	pf := pose.Frame{Index: f.Index, Timestamp: f.Timestamp}
	if len(f.Keypoints) != pose.NumLandmarks {
		return pf
	}
	for i, kp := range f.Keypoints {
		pf.Keypoints[i] = pose.Keypoint{X: kp[0], Y: kp[1], Confidence: kp[2]}
		if kp[2] > 0 {
			pf.Detected = true
		}
	}
	return pf
}

// FrameHash returns the perceptual hash for duplicate detection. When the
// input carries no precomputed hash, one is derived from the keypoint bytes
// so identical extractions still collapse onto the same digest.
func (f *InputFrame) FrameHash() window.FrameHash {
	if f.Hash != "" {
		if h, err := decodeFrameHash(f.Hash); err == nil {
			return h
		}
	}
	buf := make([]byte, 0, len(f.Keypoints)*24)
	var scratch [8]byte
	for _, kp := range f.Keypoints {
		for _, v := range kp {
			binary.LittleEndian.PutUint64(scratch[:], math.Float64bits(v))
			buf = append(buf, scratch[:]...)
		}
	}
	return window.HashFrame(buf)
}

func decodeFrameHash(s string) (window.FrameHash, error) {
	var h window.FrameHash
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("bad frame hash: %w", err)
	}
	if len(b) != window.HashSize {
		return h, fmt.Errorf("bad frame hash length %d, want %d", len(b), window.HashSize)
	}
	copy(h[:], b)
	return h, nil
}
