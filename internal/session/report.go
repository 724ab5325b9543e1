package session

import (
	"math"
	"time"

	"fairplay/internal/anomaly"
	"fairplay/internal/exercise"
	"fairplay/internal/faceverify"
	"fairplay/internal/risk"
)

// Validity is the final session verdict, derived from the risk assessment
// in strict priority order.
type Validity string

const (
	ValidityValid              Validity = "valid"
	ValidityLowConfidence      Validity = "low_confidence"
	ValidityIdentityUnverified Validity = "identity_unverified"
	ValidityQuestionable       Validity = "questionable"
	ValidityInvalid            Validity = "invalid"
	ValidityInsufficientData   Validity = "insufficient_data"
)

// Recommendation strings paired with each validity outcome.
const (
	recInvalid      = "Video rejected - Cheating detected"
	recQuestionable = "Manual review needed"
	recUnverified   = "Face verification failed"
	recLowConf      = "Minor concerns detected"
	recValid        = "Analysis complete - Video verified"
	recInsufficient = "Insufficient valid frames - Analysis inconclusive"
)

// Summary is the mobile-facing top of a report: the verdict, the inverse
// of the risk score, and whether any performance was counted at all.
type Summary struct {
	FinalValidity          Validity `json:"final_validity"`
	AuthenticityConfidence float64  `json:"authenticity_confidence"`
	PerformanceDetected    bool     `json:"performance_detected"`
	Recommendation         string   `json:"recommendation"`
}

// Performance carries the exercise-specific counting results. Exactly one
// of the rep fields or the jump summaries is populated per exercise type.
type Performance struct {
	Exercise      string                    `json:"exercise_type"`
	RepCount      int                       `json:"rep_count"`
	RepTimestamps []float64                 `json:"rep_timestamps,omitempty"`
	FormScore     float64                   `json:"form_score"`
	VerticalJumps *exercise.JumpSummary     `json:"vertical_jump,omitempty"`
	LongJump      *exercise.LongJumpSummary `json:"long_jump,omitempty"`
}

// Security carries everything the risk fusion saw: the fused assessment,
// the raw verification result, and the per-frame anomaly flags.
type Security struct {
	Risk            risk.Assessment   `json:"risk_assessment"`
	Face            faceverify.Result `json:"face_verification"`
	Flags           []anomaly.Flag    `json:"flags,omitempty"`
	FlagSummary     anomaly.Summary   `json:"flag_summary"`
	FramesProcessed int               `json:"frames_processed"`
	ValidFrames     int               `json:"valid_frames"`
}

// Timing records wall-clock durations in seconds for the two analysis
// phases and the session overall.
type Timing struct {
	CheatDetection float64 `json:"cheat_detection_time"`
	SportsAnalysis float64 `json:"sports_analysis_time"`
	Total          float64 `json:"total_processing_time"`
}

// Report is the complete per-session result. Field names are stable: the
// mobile clients and the report store both key off them.
type Report struct {
	SessionID   string      `json:"session_id"`
	Exercise    string      `json:"exercise"`
	Athlete     string      `json:"athlete,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	Summary     Summary     `json:"summary"`
	Performance Performance `json:"performance_results"`
	Security    Security    `json:"security_results"`
	Timing      Timing      `json:"technical"`
}

// decideValidity projects a risk assessment onto the final verdict.
// Rules apply in priority order; the first match wins. Sessions with too
// few usable frames are inconclusive regardless of the assessment.
func decideValidity(a risk.Assessment, face faceverify.Result, validFrames, minValid int) (Validity, string) {
	switch {
	case validFrames < minValid:
		return ValidityInsufficientData, recInsufficient
	case a.Authenticity == risk.HighlySuspicious || a.RiskScore >= 75:
		return ValidityInvalid, recInvalid
	case a.Authenticity == risk.Suspicious || a.RiskScore >= 55:
		return ValidityQuestionable, recQuestionable
	case !face.Verified:
		return ValidityIdentityUnverified, recUnverified
	case a.RiskScore >= 35:
		return ValidityLowConfidence, recLowConf
	default:
		return ValidityValid, recValid
	}
}

// Conclusive reports whether the session produced a definitive verdict.
func (v Validity) Conclusive() bool {
	return v != ValidityInsufficientData
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
