package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"fairplay/internal/anomaly"
	"fairplay/internal/config"
	"fairplay/internal/exercise"
	"fairplay/internal/faceverify"
	"fairplay/internal/logging"
	"fairplay/internal/risk"
	"fairplay/internal/window"
)

// Analyzer runs sessions against one configuration. It is safe to share
// across goroutines: all per-session state lives in the pipeline it builds
// for each Analyze call.
type Analyzer struct {
	cfg      *config.Config
	embedder faceverify.Embedder
	log      *logging.Logger
}

// NewAnalyzer creates an Analyzer. The embedder may be nil when session
// inputs carry pre-extracted face embeddings, which is the normal intake
// path.
func NewAnalyzer(cfg *config.Config, embedder faceverify.Embedder, log *logging.Logger) *Analyzer {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if log == nil {
		log = logging.Default()
	}
	return &Analyzer{cfg: cfg, embedder: embedder, log: log}
}

// Analyze runs the full pipeline over one session input and returns the
// report. The context cancels both the frame loop and face verification.
func (a *Analyzer) Analyze(ctx context.Context, in *Input) (*Report, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	id := in.SessionID
	if id == "" {
		id = uuid.NewString()
	}
	log := a.log.WithSessionID(id)
	log.Info("session started",
		"exercise", in.Exercise,
		"frames", len(in.Frames),
		"references", len(in.References))

	p, err := a.newPipeline(in.Exercise)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	for i := range in.Frames {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("session %s: %w", id, err)
		}
		p.processFrame(&in.Frames[i])
	}
	sportsDur := time.Since(start)

	verifyStart := time.Now()
	engine := faceverify.NewEngine(a.verifyThresholds(), in.References, a.embedder, log)
	face := engine.Verify(ctx, p.store.RetainedFrames())
	flagSummary := anomaly.Summarize(p.flags)
	assessment := risk.Assess(face, flagSummary)
	verifyDur := time.Since(verifyStart)

	report := p.buildReport(id, in, face, flagSummary, assessment)
	report.Timing = Timing{
		CheatDetection: verifyDur.Seconds(),
		SportsAnalysis: sportsDur.Seconds(),
		Total:          time.Since(start).Seconds(),
	}

	log.Info("session complete",
		"validity", report.Summary.FinalValidity,
		"risk_score", assessment.RiskScore,
		"rep_count", report.Performance.RepCount,
		"valid_frames", report.Security.ValidFrames)
	return report, nil
}

// pipeline is the per-session state: one rolling window, one flagger, and
// exactly one of a rep counter or a jump detector.
type pipeline struct {
	cfg       *config.Config
	exercise  string
	scheduler *window.Scheduler
	store     *window.Store
	flagger   *anomaly.Flagger

	reps  *exercise.RepCounter
	jumps *exercise.JumpDetector

	flags       []anomaly.Flag
	processed   int
	validFrames int
}

func (a *Analyzer) newPipeline(name string) (*pipeline, error) {
	p := &pipeline{
		cfg:      a.cfg,
		exercise: name,
		scheduler: window.NewScheduler(window.SamplePolicy{
			PoseStride:      a.cfg.Sampling.PoseStride,
			VerifyInterval:  a.cfg.Sampling.VerifyInterval,
			MaxVerifyFrames: a.cfg.Sampling.MaxVerifyFrames,
		}),
		store: window.NewStore(window.Capacities{
			Keypoints: a.cfg.Buffers.Keypoints,
			Frames:    a.cfg.Buffers.Frames,
			Hashes:    a.cfg.Buffers.Hashes,
		}),
		flagger: anomaly.NewFlagger(a.anomalyThresholds()),
	}

	if exercise.IsJumpExercise(name) {
		jc, err := exercise.LookupJump(name)
		if err != nil {
			return nil, err
		}
		p.jumps = exercise.NewJumpDetector(a.applyJumpOverrides(jc))
		return p, nil
	}

	rc, err := exercise.LookupRep(name)
	if err != nil {
		return nil, err
	}
	p.reps = exercise.NewRepCounter(a.applyRepOverrides(rc))
	return p, nil
}

// processFrame runs one decoded frame through sampling, the rolling window,
// anomaly flagging and exercise counting.
func (p *pipeline) processFrame(f *InputFrame) {
	d := p.scheduler.Decide(f.Index)
	if !d.SamplePose {
		return
	}
	p.processed++

	pf := f.PoseFrame()
	p.store.PushFrame(pf)

	hash := f.FrameHash()
	if d.ComputeHash {
		p.store.PushHash(hash)
	}
	if d.RetainFrame {
		p.store.Retain(window.RetainedFrame{
			Index:     f.Index,
			Timestamp: f.Timestamp,
			Embedding: f.FaceEmbedding,
		})
	}

	p.flags = append(p.flags, p.flagger.Analyze(p.store, hash, f.Timestamp)...)

	if pf.Detected && pf.MeanConfidence() >= p.cfg.Anomaly.MeanConfidenceMin {
		p.validFrames++
	}

	switch {
	case p.reps != nil:
		p.reps.Update(&pf, f.Timestamp)
	case p.jumps != nil:
		p.jumps.Update(&pf, f.Index, f.Timestamp)
	}
}

// buildReport assembles the final report from the pipeline outcome.
func (p *pipeline) buildReport(id string, in *Input, face faceverify.Result,
	flagSummary anomaly.Summary, assessment risk.Assessment) *Report {

	perf := p.performance()
	validity, recommendation := decideValidity(
		assessment, face, p.validFrames, p.cfg.Session.MinValidFrames)

	return &Report{
		SessionID: id,
		Exercise:  in.Exercise,
		Athlete:   in.Athlete,
		CreatedAt: time.Now().UTC(),
		Summary: Summary{
			FinalValidity:          validity,
			AuthenticityConfidence: round2(100 - assessment.RiskScore),
			PerformanceDetected:    performanceDetected(perf),
			Recommendation:         recommendation,
		},
		Performance: perf,
		Security: Security{
			Risk:            assessment,
			Face:            face,
			Flags:           p.flags,
			FlagSummary:     flagSummary,
			FramesProcessed: p.processed,
			ValidFrames:     p.validFrames,
		},
	}
}

func (p *pipeline) performance() Performance {
	perf := Performance{Exercise: p.exercise}

	switch {
	case p.reps != nil:
		perf.RepCount = p.reps.Count()
		perf.RepTimestamps = p.reps.Timestamps()
		if perf.RepCount > 0 {
			perf.FormScore = p.cfg.Session.FormScoreActive
		} else {
			perf.FormScore = p.cfg.Session.FormScoreIdle
		}
	case p.jumps != nil && p.exercise == exercise.LongJump:
		if lj, ok := exercise.SummarizeLongJump(p.jumps.Jumps(), p.jumps.Config()); ok {
			perf.LongJump = &lj
		}
	case p.jumps != nil:
		vj := exercise.SummarizeVerticalJumps(p.jumps.Jumps(), p.jumps.Config())
		perf.VerticalJumps = &vj
	}
	return perf
}

func performanceDetected(perf Performance) bool {
	switch {
	case perf.RepCount > 0:
		return true
	case perf.VerticalJumps != nil && perf.VerticalJumps.Count > 0:
		return true
	case perf.LongJump != nil && perf.LongJump.DistanceCM > 0:
		return true
	}
	return false
}

func (a *Analyzer) anomalyThresholds() anomaly.Thresholds {
	return anomaly.Thresholds{
		MeanConfidenceMin:     a.cfg.Anomaly.MeanConfidenceMin,
		DuplicateCount:        a.cfg.Anomaly.DuplicateCount,
		VelocityMax:           a.cfg.Anomaly.VelocityMax,
		VelocityMinConfidence: a.cfg.Anomaly.VelocityMinConfidence,
		VelocityOutlierCount:  a.cfg.Anomaly.VelocityOutlierCount,
		MinFrames:             a.cfg.Anomaly.MinFrames,
	}
}

func (a *Analyzer) verifyThresholds() faceverify.Thresholds {
	return faceverify.Thresholds{
		DistanceMax:            a.cfg.FaceVerify.DistanceMax,
		MinSimilarity:          a.cfg.FaceVerify.MinSimilarity,
		ConsensusRate:          a.cfg.FaceVerify.ConsensusRate,
		RequiredMatches:        a.cfg.FaceVerify.RequiredMatches,
		HighConfidenceOverride: a.cfg.FaceVerify.HighConfidenceOverride,
	}
}

// applyRepOverrides layers the global exercise overrides onto a built-in
// exercise profile. Zero values leave the profile untouched.
func (a *Analyzer) applyRepOverrides(rc exercise.RepConfig) exercise.RepConfig {
	if v := a.cfg.Exercise.DebounceSec; v > 0 {
		rc.DebounceSec = v
	}
	if v := a.cfg.Exercise.Tolerance; v > 0 {
		rc.Tolerance = v
	}
	if v := a.cfg.Exercise.MinConfidence; v > 0 {
		rc.MinConfidence = v
	}
	return rc
}

func (a *Analyzer) applyJumpOverrides(jc exercise.JumpConfig) exercise.JumpConfig {
	if v := a.cfg.Jump.LiftoffThreshold; v > 0 {
		jc.LiftoffThreshold = v
	}
	if v := a.cfg.Jump.BaselineWindow; v > 0 {
		jc.BaselineWindow = v
	}
	if v := a.cfg.Jump.BaselineMinSamples; v > 0 {
		jc.BaselineMinSamples = v
	}
	if v := a.cfg.Jump.MinAirborneSec; v > 0 {
		jc.MinAirborneSec = v
	}
	if v := a.cfg.Jump.VerticalScale; v > 0 {
		jc.VerticalScale = v
	}
	if v := a.cfg.Jump.HorizontalScale; v > 0 {
		jc.HorizontalScale = v
	}
	if v := a.cfg.Jump.PlausibilityFactor; v > 0 {
		jc.PlausibilityFactor = v
	}
	return jc
}
