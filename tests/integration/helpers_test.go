//go:build integration

// Package integration provides end-to-end integration tests for fairplay.
//
// These tests verify the complete flow from session document intake through
// analysis, report persistence, and aggregate statistics.
//
// Run with: go test -tags=integration ./tests/integration/...
package integration

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"fairplay/internal/config"
	"fairplay/internal/exercise"
	"fairplay/internal/faceverify"
	"fairplay/internal/pose"
	"fairplay/internal/session"
	"fairplay/internal/store"
)

// TestEnv holds the components shared between flow tests.
type TestEnv struct {
	T       *testing.T
	TempDir string
	Config  *config.Config
	Store   store.ReportStore
}

// NewTestEnv builds a test environment with a sqlite-backed report store
// under a temp directory and a config that samples every frame.
func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()
	dir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.Sampling.PoseStride = 1
	cfg.Sampling.VerifyInterval = 1
	cfg.Sampling.MaxVerifyFrames = 2
	cfg.Storage.Type = "sqlite"
	cfg.Storage.Path = filepath.Join(dir, "reports.db")
	cfg.Inbox.Path = filepath.Join(dir, "inbox")
	cfg.Inbox.ArchiveDir = filepath.Join(dir, "processed")
	cfg.Logging.Output = "stderr"
	cfg.Logging.FilePath = ""

	st, err := store.Open(cfg.Storage)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	return &TestEnv{T: t, TempDir: dir, Config: cfg, Store: st}
}

// WriteSessionFile marshals a session input document into the inbox dir.
func (env *TestEnv) WriteSessionFile(name string, in *session.Input) string {
	env.T.Helper()
	if err := os.MkdirAll(env.Config.Inbox.Path, 0700); err != nil {
		env.T.Fatalf("create inbox: %v", err)
	}
	data, err := json.Marshal(in)
	if err != nil {
		env.T.Fatalf("marshal session: %v", err)
	}
	path := filepath.Join(env.Config.Inbox.Path, name)
	if err := os.WriteFile(path, data, 0600); err != nil {
		env.T.Fatalf("write session file: %v", err)
	}
	return path
}

// elbowKeypoints builds a full keypoint set whose left elbow angle is deg.
func elbowKeypoints(deg float64) [][3]float64 {
	kps := make([][3]float64, pose.NumLandmarks)
	for i := range kps {
		kps[i] = [3]float64{float64(40 + i*10), 300, 0.9}
	}
	rad := deg * math.Pi / 180
	kps[pose.LeftShoulder] = [3]float64{100, 100, 0.9}
	kps[pose.LeftElbow] = [3]float64{200, 100, 0.9}
	kps[pose.LeftWrist] = [3]float64{
		200 + 100*math.Cos(math.Pi-rad),
		100 + 100*math.Sin(math.Pi-rad),
		0.9,
	}
	return kps
}

// hipKeypoints builds a full keypoint set with both hips at y.
func hipKeypoints(y float64) [][3]float64 {
	kps := make([][3]float64, pose.NumLandmarks)
	for i := range kps {
		kps[i] = [3]float64{float64(40 + i*10), 300, 0.9}
	}
	kps[pose.LeftHip] = [3]float64{150, y, 0.9}
	kps[pose.RightHip] = [3]float64{170, y, 0.9}
	return kps
}

// PushupSession builds a session walking through full pushup cycles with
// matching face embeddings on every frame.
func PushupSession(id string, cycles int) *session.Input {
	angles := []float64{170, 95, 88, 165}
	in := &session.Input{
		SessionID: id,
		Exercise:  exercise.Pushups,
		Athlete:   "athlete-7",
		Video:     session.VideoMeta{FPS: 30, FrameCount: cycles * len(angles)},
		References: []faceverify.ReferenceIdentity{
			{Name: "athlete-7", Embedding: []float64{1, 0, 0, 0}},
		},
	}
	idx := 0
	for c := 0; c < cycles; c++ {
		for _, deg := range angles {
			in.Frames = append(in.Frames, session.InputFrame{
				Index:         idx,
				Timestamp:     float64(idx) * 0.6,
				Keypoints:     elbowKeypoints(deg),
				FaceEmbedding: []float64{1, 0, 0, 0},
			})
			idx++
		}
	}
	return in
}

// VerticalJumpSession builds a standing baseline followed by one airborne
// phase and a landing.
func VerticalJumpSession(id string) *session.Input {
	in := &session.Input{
		SessionID: id,
		Exercise:  exercise.VerticalJump,
		Video:     session.VideoMeta{FPS: 30, FrameCount: 27},
		References: []faceverify.ReferenceIdentity{
			{Name: "athlete-7", Embedding: []float64{1, 0, 0, 0}},
		},
	}
	ys := make([]float64, 0, 27)
	for i := 0; i < 20; i++ {
		ys = append(ys, 500)
	}
	for i := 0; i < 6; i++ {
		ys = append(ys, 460)
	}
	ys = append(ys, 500)
	for i, y := range ys {
		in.Frames = append(in.Frames, session.InputFrame{
			Index:         i,
			Timestamp:     float64(i) * 0.05,
			Keypoints:     hipKeypoints(y),
			FaceEmbedding: []float64{1, 0, 0, 0},
		})
	}
	return in
}

// ImpostorSession builds a pushup session whose face embeddings are far
// from the registered reference.
func ImpostorSession(id string) *session.Input {
	in := PushupSession(id, 2)
	for i := range in.Frames {
		in.Frames[i].FaceEmbedding = []float64{0, 0, 0, 1}
	}
	return in
}

func AssertEqual[V comparable](t *testing.T, want, got V, msg string) {
	t.Helper()
	if want != got {
		t.Errorf("%s: got %v, want %v", msg, got, want)
	}
}

func AssertTrue(t *testing.T, cond bool, msg string) {
	t.Helper()
	if !cond {
		t.Error(msg)
	}
}
