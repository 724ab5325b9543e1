// Package config handles configuration loading and validation for fairplay.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// ValidateConfig performs comprehensive validation of the configuration.
func ValidateConfig(c *Config) error {
	var errs ValidationErrors

	if c.Version < 1 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}

	if e := validateSampling(&c.Sampling); len(e) > 0 {
		errs = append(errs, e...)
	}
	if e := validateBuffers(&c.Buffers); len(e) > 0 {
		errs = append(errs, e...)
	}
	if e := validateAnomaly(&c.Anomaly); len(e) > 0 {
		errs = append(errs, e...)
	}
	if e := validateFaceVerify(&c.FaceVerify); len(e) > 0 {
		errs = append(errs, e...)
	}
	if e := validateJump(&c.Jump); len(e) > 0 {
		errs = append(errs, e...)
	}
	if e := validateSession(&c.Session); len(e) > 0 {
		errs = append(errs, e...)
	}
	if e := validateStorage(&c.Storage); len(e) > 0 {
		errs = append(errs, e...)
	}
	if e := validateInbox(&c.Inbox); len(e) > 0 {
		errs = append(errs, e...)
	}
	if e := validateLogging(&c.Logging); len(e) > 0 {
		errs = append(errs, e...)
	}
	if e := validateHealth(&c.Health); len(e) > 0 {
		errs = append(errs, e...)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateSampling(s *SamplingConfig) ValidationErrors {
	var errs ValidationErrors

	if s.PoseStride < 1 {
		errs = append(errs, ValidationError{
			Field:   "sampling.pose_stride",
			Message: "pose stride must be at least 1",
		})
	}
	if s.VerifyInterval < 1 {
		errs = append(errs, ValidationError{
			Field:   "sampling.verify_interval",
			Message: "verify interval must be at least 1",
		})
	}
	if s.MaxVerifyFrames < 1 {
		errs = append(errs, ValidationError{
			Field:   "sampling.max_verify_frames",
			Message: "max verify frames must be at least 1",
		})
	}

	return errs
}

func validateBuffers(b *BufferConfig) ValidationErrors {
	var errs ValidationErrors

	if b.Keypoints < 2 {
		errs = append(errs, ValidationError{
			Field:   "buffers.keypoints",
			Message: "keypoint buffer needs at least 2 frames for velocity checks",
		})
	}
	if b.Frames < 1 {
		errs = append(errs, ValidationError{
			Field:   "buffers.frames",
			Message: "frame buffer must hold at least 1 frame",
		})
	}
	if b.Hashes < 1 {
		errs = append(errs, ValidationError{
			Field:   "buffers.hashes",
			Message: "hash buffer must hold at least 1 hash",
		})
	}

	return errs
}

func validateAnomaly(a *AnomalyConfig) ValidationErrors {
	var errs ValidationErrors

	if a.MeanConfidenceMin < 0 || a.MeanConfidenceMin > 1 {
		errs = append(errs, ValidationError{
			Field:   "anomaly.mean_confidence_min",
			Message: "mean confidence floor must be in [0, 1]",
		})
	}
	if a.DuplicateCount < 1 {
		errs = append(errs, ValidationError{
			Field:   "anomaly.duplicate_count",
			Message: "duplicate count must be at least 1",
		})
	}
	if a.VelocityMax <= 0 {
		errs = append(errs, ValidationError{
			Field:   "anomaly.velocity_max",
			Message: "velocity ceiling must be positive",
		})
	}
	if a.VelocityMinConfidence < 0 || a.VelocityMinConfidence > 1 {
		errs = append(errs, ValidationError{
			Field:   "anomaly.velocity_min_confidence",
			Message: "velocity confidence floor must be in [0, 1]",
		})
	}
	if a.MinFrames < 2 {
		errs = append(errs, ValidationError{
			Field:   "anomaly.min_frames",
			Message: "analysis needs at least 2 frames",
		})
	}

	return errs
}

func validateFaceVerify(f *FaceVerifyConfig) ValidationErrors {
	var errs ValidationErrors

	if f.DistanceMax <= 0 || f.DistanceMax > 2 {
		errs = append(errs, ValidationError{
			Field:   "face_verify.distance_max",
			Message: "distance ceiling must be in (0, 2]",
		})
	}
	if f.MinSimilarity < 0 || f.MinSimilarity > 100 {
		errs = append(errs, ValidationError{
			Field:   "face_verify.min_similarity",
			Message: "similarity floor must be in [0, 100]",
		})
	}
	if f.ConsensusRate < 0 || f.ConsensusRate > 1 {
		errs = append(errs, ValidationError{
			Field:   "face_verify.consensus_rate",
			Message: "consensus rate must be in [0, 1]",
		})
	}
	if f.RequiredMatches < 1 {
		errs = append(errs, ValidationError{
			Field:   "face_verify.required_matches",
			Message: "required matches must be at least 1",
		})
	}
	if f.HighConfidenceOverride < 0 || f.HighConfidenceOverride > 100 {
		errs = append(errs, ValidationError{
			Field:   "face_verify.high_confidence_override",
			Message: "high confidence override must be in [0, 100]",
		})
	}

	return errs
}

func validateJump(j *JumpConfig) ValidationErrors {
	var errs ValidationErrors

	if j.LiftoffThreshold <= 0 {
		errs = append(errs, ValidationError{
			Field:   "jump.liftoff_threshold",
			Message: "liftoff threshold must be positive",
		})
	}
	if j.BaselineWindow < 2 {
		errs = append(errs, ValidationError{
			Field:   "jump.baseline_window",
			Message: "baseline window must be at least 2 samples",
		})
	}
	if j.BaselineMinSamples < 1 || j.BaselineMinSamples > j.BaselineWindow {
		errs = append(errs, ValidationError{
			Field:   "jump.baseline_min_samples",
			Message: "baseline minimum must be in [1, baseline_window]",
		})
	}
	if j.MinAirborneSec < 0 {
		errs = append(errs, ValidationError{
			Field:   "jump.min_airborne_sec",
			Message: "minimum airborne time cannot be negative",
		})
	}
	if j.VerticalScale <= 0 || j.HorizontalScale <= 0 {
		errs = append(errs, ValidationError{
			Field:   "jump.vertical_scale",
			Message: "pixel-to-centimeter scales must be positive",
		})
	}
	if j.PlausibilityFactor < 1 {
		errs = append(errs, ValidationError{
			Field:   "jump.plausibility_factor",
			Message: "plausibility factor below 1 would reject physically possible jumps",
		})
	}

	return errs
}

func validateSession(s *SessionConfig) ValidationErrors {
	var errs ValidationErrors

	if s.MinValidFrames < 1 {
		errs = append(errs, ValidationError{
			Field:   "session.min_valid_frames",
			Message: "minimum valid frames must be at least 1",
		})
	}
	if s.FormScoreActive < 0 || s.FormScoreActive > 100 {
		errs = append(errs, ValidationError{
			Field:   "session.form_score_active",
			Message: "form score must be in [0, 100]",
		})
	}
	if s.FormScoreIdle < 0 || s.FormScoreIdle > s.FormScoreActive {
		errs = append(errs, ValidationError{
			Field:   "session.form_score_idle",
			Message: "idle form score must be in [0, form_score_active]",
		})
	}

	return errs
}

func validateStorage(s *StorageConfig) ValidationErrors {
	var errs ValidationErrors

	switch s.Type {
	case "sqlite", "memory":
		// Valid types
	default:
		errs = append(errs, ValidationError{
			Field:   "storage.type",
			Message: fmt.Sprintf("invalid storage type: %s (valid: sqlite, memory)", s.Type),
		})
	}

	if s.Type == "sqlite" {
		if s.Path == "" {
			errs = append(errs, ValidationError{
				Field:   "storage.path",
				Message: "database path is required for sqlite storage",
			})
		}

		dir := filepath.Dir(expandPath(s.Path))
		if dir != "" && dir != "." {
			if info, err := os.Stat(dir); err != nil {
				if !os.IsNotExist(err) {
					errs = append(errs, ValidationError{
						Field:   "storage.path",
						Message: fmt.Sprintf("cannot access directory: %v", err),
					})
				}
				// Directory doesn't exist yet - that's OK, it will be created
			} else if !info.IsDir() {
				errs = append(errs, ValidationError{
					Field:   "storage.path",
					Message: fmt.Sprintf("parent path is not a directory: %s", dir),
				})
			}
		}
	}

	if s.BusyTimeoutMs < 0 {
		errs = append(errs, ValidationError{
			Field:   "storage.busy_timeout_ms",
			Message: "busy timeout cannot be negative",
		})
	}
	if s.RetainReports < 0 {
		errs = append(errs, ValidationError{
			Field:   "storage.retain_reports",
			Message: "retained report count cannot be negative",
		})
	}

	return errs
}

func validateInbox(i *InboxConfig) ValidationErrors {
	var errs ValidationErrors

	if i.Path == "" {
		errs = append(errs, ValidationError{
			Field:   "inbox.path",
			Message: "inbox path is required",
		})
	}
	for _, pattern := range i.Patterns {
		if !isValidGlobPattern(pattern) {
			errs = append(errs, ValidationError{
				Field:   "inbox.patterns",
				Message: fmt.Sprintf("invalid glob pattern: %s", pattern),
			})
		}
	}
	if i.DebounceMs < 0 {
		errs = append(errs, ValidationError{
			Field:   "inbox.debounce_ms",
			Message: "debounce cannot be negative",
		})
	}

	return errs
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	switch l.Level {
	case "debug", "info", "warn", "error":
		// Valid levels
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid log level: %s (valid: debug, info, warn, error)", l.Level),
		})
	}

	switch l.Format {
	case "text", "json":
		// Valid formats
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid log format: %s (valid: text, json)", l.Format),
		})
	}

	switch l.Output {
	case "stdout", "stderr", "file", "both":
		if (l.Output == "file" || l.Output == "both") && l.FilePath == "" {
			errs = append(errs, ValidationError{
				Field:   "logging.file_path",
				Message: "file path is required when output includes 'file'",
			})
		}
	default:
		if l.Output == "" {
			errs = append(errs, ValidationError{
				Field:   "logging.output",
				Message: "log output is required",
			})
		}
	}

	if l.MaxSizeMB < 1 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_size_mb",
			Message: "max size must be at least 1 MB",
		})
	}
	if l.MaxBackups < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_backups",
			Message: "max backups cannot be negative",
		})
	}
	if l.MaxAgeDays < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_age_days",
			Message: "max age cannot be negative",
		})
	}

	return errs
}

func validateHealth(h *HealthConfig) ValidationErrors {
	var errs ValidationErrors

	if h.ListenAddr != "" {
		if _, _, err := net.SplitHostPort(h.ListenAddr); err != nil {
			errs = append(errs, ValidationError{
				Field:   "health.listen_addr",
				Message: fmt.Sprintf("invalid listen address: %v", err),
			})
		}
	}

	return errs
}

// expandPath expands a leading ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// isValidGlobPattern checks whether a glob pattern compiles.
func isValidGlobPattern(pattern string) bool {
	_, err := filepath.Match(pattern, "probe")
	return err == nil
}
