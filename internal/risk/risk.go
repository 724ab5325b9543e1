// Package risk fuses the face-verification outcome with the accumulated
// anomaly-flag tally into a single 0-100 risk score, a discrete risk level
// and authenticity label, and a short list of recommendations.
//
// Assess is a pure function: identical inputs always yield the identical
// assessment.
package risk

import (
	"fairplay/internal/anomaly"
	"fairplay/internal/faceverify"
)

// Level is the discrete risk level derived from the overall score.
type Level string

const (
	LevelVeryLow  Level = "very_low"
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

// Authenticity is the discrete authenticity label.
type Authenticity string

const (
	Authentic        Authenticity = "authentic"
	LikelyAuthentic  Authenticity = "likely_authentic"
	Questionable     Authenticity = "questionable"
	Suspicious       Authenticity = "suspicious"
	HighlySuspicious Authenticity = "highly_suspicious"
)

// Fusion weights and caps. Face identity dominates; behavioral flags are a
// secondary signal.
const (
	faceWeight         = 0.7
	flagWeight         = 0.3
	unverifiedFaceRisk = 75.0
	flagRiskPerFlag    = 5.0
	flagRiskCap        = 35.0
)

// Assessment is the fused verdict.
type Assessment struct {
	RiskScore       float64      `json:"overall_risk_score"`
	Level           Level        `json:"overall_risk_level"`
	Authenticity    Authenticity `json:"authenticity_status"`
	ConfidenceScore float64      `json:"confidence_score"`
	FaceRisk        float64      `json:"face_risk"`
	FlagRisk        float64      `json:"flag_risk"`
	Recommendations []string     `json:"recommendations"`
}

// Assess fuses one verification result and one flag tally.
//
// face_risk = verified ? max(0, 100-confidence) : 75
// flag_risk = min(35, total_flags * 5)
// overall   = face_risk*0.7 + flag_risk*0.3
//
// Classification bands are evaluated in order; the first match wins.
func Assess(face faceverify.Result, flags anomaly.Summary) Assessment {
	faceRisk := unverifiedFaceRisk
	if face.Verified {
		faceRisk = 100 - face.Confidence
		if faceRisk < 0 {
			faceRisk = 0
		}
	}

	flagRisk := float64(flags.Total) * flagRiskPerFlag
	if flagRisk > flagRiskCap {
		flagRisk = flagRiskCap
	}

	overall := faceRisk*faceWeight + flagRisk*flagWeight

	var authenticity Authenticity
	var level Level
	switch {
	case !face.Verified && face.Confidence < 20:
		authenticity, level = HighlySuspicious, LevelCritical
	case overall >= 70:
		authenticity, level = Suspicious, LevelHigh
	case overall >= 50:
		authenticity, level = Questionable, LevelMedium
	case overall >= 30:
		authenticity, level = LikelyAuthentic, LevelLow
	default:
		authenticity, level = Authentic, LevelVeryLow
	}

	return Assessment{
		RiskScore:       overall,
		Level:           level,
		Authenticity:    authenticity,
		ConfidenceScore: 100 - overall,
		FaceRisk:        faceRisk,
		FlagRisk:        flagRisk,
		Recommendations: recommendations(face, flags),
	}
}

// recommendations derives the ordered advice list from the same thresholds
// plus flag-category presence.
func recommendations(face faceverify.Result, flags anomaly.Summary) []string {
	var recs []string

	switch {
	case !face.Verified && face.Confidence < 10:
		recs = append(recs,
			"CRITICAL: face verification completely failed",
			"STRONG REJECT: no similarity to reference images")
	case !face.Verified:
		recs = append(recs,
			"MODERATE RISK: face verification failed",
			"REVIEW: manual verification recommended")
	case face.Confidence < 40:
		recs = append(recs,
			"LOW CONFIDENCE: weak face match",
			"CAUTION: consider additional verification")
	default:
		recs = append(recs,
			"VERIFIED: face verification passed",
			"LEGITIMATE: person identity confirmed")
	}

	if flags.ByType[anomaly.TypeVelocityOutlier] > 0 {
		recs = append(recs, "MOTION: unusual movements detected")
	}
	if flags.ByType[anomaly.TypeDuplicateFrames] > 0 {
		recs = append(recs, "VIDEO: duplicate frames detected")
	}

	return recs
}
