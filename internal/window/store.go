// Package window holds the rolling per-session frame state: ring buffers of
// recent keypoint frames, confidence vectors, perceptual frame hashes, and
// the small set of raw frames retained for face verification, plus the
// sampling policy that decides which frames feed each buffer.
package window

import (
	"crypto/sha256"

	"fairplay/internal/pose"
)

// HashSize is the length of a perceptual frame hash in bytes. Hashes are
// compared for equality only, so a short digest prefix is sufficient.
const HashSize = 8

// FrameHash is a short digest of a downsampled frame used to detect
// duplicated or static frames.
type FrameHash [HashSize]byte

// HashFrame digests downsampled frame bytes into a FrameHash.
func HashFrame(downsampled []byte) FrameHash {
	sum := sha256.Sum256(downsampled)
	var h FrameHash
	copy(h[:], sum[:HashSize])
	return h
}

// RetainedFrame is a raw frame held back for end-of-stream face
// verification. Image is the encoded frame; Embedding is set instead when
// the session input carries a pre-extracted face embedding for this frame.
type RetainedFrame struct {
	Index     int
	Timestamp float64
	Image     []byte
	Embedding []float64
}

// Capacities configures the fixed sizes of the four ring buffers.
type Capacities struct {
	Keypoints int // recent pose frames (typically 10-20)
	Frames    int // raw frames for verification (small, memory-heavy)
	Hashes    int // perceptual hashes (typically 20-30)
}

// DefaultCapacities mirrors the buffer sizes the engine was tuned with.
func DefaultCapacities() Capacities {
	return Capacities{
		Keypoints: 10,
		Frames:    10,
		Hashes:    20,
	}
}

// Store owns the rolling window state for one session. It is not safe for
// concurrent use; each session pipeline owns exactly one Store.
type Store struct {
	frames      *Ring[pose.Frame]
	confidences *Ring[[pose.NumLandmarks]float64]
	hashes      *Ring[FrameHash]
	retained    *Ring[RetainedFrame]
}

// NewStore creates a Store with the given buffer capacities.
func NewStore(caps Capacities) *Store {
	return &Store{
		frames:      NewRing[pose.Frame](caps.Keypoints),
		confidences: NewRing[[pose.NumLandmarks]float64](caps.Keypoints),
		hashes:      NewRing[FrameHash](caps.Hashes),
		retained:    NewRing[RetainedFrame](caps.Frames),
	}
}

// PushFrame appends a pose frame and its parallel confidence vector.
// Extraction failures must still be pushed (as the zero Frame) so the
// window stays aligned with the video timeline.
func (s *Store) PushFrame(f pose.Frame) {
	s.frames.Push(f)
	var conf [pose.NumLandmarks]float64
	for i := range f.Keypoints {
		conf[i] = f.Keypoints[i].Confidence
	}
	s.confidences.Push(conf)
}

// PushHash appends a perceptual frame hash.
func (s *Store) PushHash(h FrameHash) {
	s.hashes.Push(h)
}

// Retain stores a raw frame for later face verification.
func (s *Store) Retain(rf RetainedFrame) {
	s.retained.Push(rf)
}

// FrameCount returns the number of pose frames currently buffered.
func (s *Store) FrameCount() int { return s.frames.Len() }

// LastFrame returns the newest pose frame.
func (s *Store) LastFrame() (pose.Frame, bool) { return s.frames.Last() }

// PrevFrame returns the frame immediately before the newest.
func (s *Store) PrevFrame() (pose.Frame, bool) { return s.frames.Prev(1) }

// FrameAt returns the i-th buffered frame counting from the oldest.
func (s *Store) FrameAt(i int) pose.Frame { return s.frames.At(i) }

// CountHash returns how many buffered hashes equal h, including the newest.
func (s *Store) CountHash(h FrameHash) int {
	n := 0
	for i := 0; i < s.hashes.Len(); i++ {
		if s.hashes.At(i) == h {
			n++
		}
	}
	return n
}

// HashCount returns the number of buffered hashes.
func (s *Store) HashCount() int { return s.hashes.Len() }

// RetainedFrames returns the retained raw frames oldest-first.
func (s *Store) RetainedFrames() []RetainedFrame { return s.retained.Snapshot() }

// RetainedCount returns the number of retained raw frames.
func (s *Store) RetainedCount() int { return s.retained.Len() }

// Reset clears all buffers for reuse with a new video.
func (s *Store) Reset() {
	s.frames.Clear()
	s.confidences.Clear()
	s.hashes.Clear()
	s.retained.Clear()
}
