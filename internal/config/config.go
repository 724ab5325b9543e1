// Package config handles configuration loading, validation, and management for fairplay.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
)

// Version is the current configuration schema version.
const Version = 1

// Config holds the complete engine configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Sampling controls how often pose extraction and face verification run.
	Sampling SamplingConfig `toml:"sampling" json:"sampling" yaml:"sampling"`

	// Buffers sizes the rolling frame windows.
	Buffers BufferConfig `toml:"buffers" json:"buffers" yaml:"buffers"`

	// Anomaly holds per-frame anomaly flagging thresholds.
	Anomaly AnomalyConfig `toml:"anomaly" json:"anomaly" yaml:"anomaly"`

	// FaceVerify holds identity verification thresholds.
	FaceVerify FaceVerifyConfig `toml:"face_verify" json:"face_verify" yaml:"face_verify"`

	// Exercise holds per-exercise counting overrides.
	Exercise ExerciseConfig `toml:"exercise" json:"exercise" yaml:"exercise"`

	// Jump holds jump detection parameters.
	Jump JumpConfig `toml:"jump" json:"jump" yaml:"jump"`

	// Session controls session-level aggregation.
	Session SessionConfig `toml:"session" json:"session" yaml:"session"`

	// Storage configuration for report persistence.
	Storage StorageConfig `toml:"storage" json:"storage" yaml:"storage"`

	// Inbox configuration for the daemon's session intake directory.
	Inbox InboxConfig `toml:"inbox" json:"inbox" yaml:"inbox"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`

	// Health configuration for the daemon's probe endpoint.
	Health HealthConfig `toml:"health" json:"health" yaml:"health"`

	// mu protects concurrent access to the config.
	mu sync.RWMutex `toml:"-" json:"-" yaml:"-"`
}

// SamplingConfig holds frame sampling configuration.
type SamplingConfig struct {
	// PoseStride processes pose on every Nth frame.
	PoseStride int `toml:"pose_stride" json:"pose_stride" yaml:"pose_stride"`

	// VerifyInterval retains a frame for face verification every Nth frame.
	VerifyInterval int `toml:"verify_interval" json:"verify_interval" yaml:"verify_interval"`

	// MaxVerifyFrames caps how many frames are retained for verification.
	MaxVerifyFrames int `toml:"max_verify_frames" json:"max_verify_frames" yaml:"max_verify_frames"`
}

// BufferConfig sizes the rolling windows kept in memory.
type BufferConfig struct {
	// Keypoints is how many recent pose frames are buffered.
	Keypoints int `toml:"keypoints" json:"keypoints" yaml:"keypoints"`

	// Frames is how many recent confidence vectors are buffered.
	Frames int `toml:"frames" json:"frames" yaml:"frames"`

	// Hashes is how many recent frame hashes are buffered for duplicate detection.
	Hashes int `toml:"hashes" json:"hashes" yaml:"hashes"`
}

// AnomalyConfig holds anomaly flagging thresholds.
type AnomalyConfig struct {
	// MeanConfidenceMin is the floor below which a frame is flagged as
	// low confidence.
	MeanConfidenceMin float64 `toml:"mean_confidence_min" json:"mean_confidence_min" yaml:"mean_confidence_min"`

	// DuplicateCount is the number of identical frame hashes tolerated
	// before the duplicate flag fires.
	DuplicateCount int `toml:"duplicate_count" json:"duplicate_count" yaml:"duplicate_count"`

	// VelocityMax is the per-frame landmark displacement ceiling in pixels.
	VelocityMax float64 `toml:"velocity_max" json:"velocity_max" yaml:"velocity_max"`

	// VelocityMinConfidence excludes uncertain landmarks from velocity checks.
	VelocityMinConfidence float64 `toml:"velocity_min_confidence" json:"velocity_min_confidence" yaml:"velocity_min_confidence"`

	// VelocityOutlierCount is how many large movements trigger the flag.
	VelocityOutlierCount int `toml:"velocity_outlier_count" json:"velocity_outlier_count" yaml:"velocity_outlier_count"`

	// MinFrames is the window fill required before analysis runs.
	MinFrames int `toml:"min_frames" json:"min_frames" yaml:"min_frames"`
}

// FaceVerifyConfig holds identity verification thresholds.
type FaceVerifyConfig struct {
	// DistanceMax is the embedding distance ceiling for a single match.
	DistanceMax float64 `toml:"distance_max" json:"distance_max" yaml:"distance_max"`

	// MinSimilarity is the similarity floor for a single match.
	MinSimilarity float64 `toml:"min_similarity" json:"min_similarity" yaml:"min_similarity"`

	// ConsensusRate is the verification rate that passes consensus.
	ConsensusRate float64 `toml:"consensus_rate" json:"consensus_rate" yaml:"consensus_rate"`

	// RequiredMatches passes consensus on this many successful matches.
	RequiredMatches int `toml:"required_matches" json:"required_matches" yaml:"required_matches"`

	// HighConfidenceOverride passes consensus when any single similarity
	// reaches this value.
	HighConfidenceOverride float64 `toml:"high_confidence_override" json:"high_confidence_override" yaml:"high_confidence_override"`

	// ReferenceDir is the directory holding reference identity embeddings.
	ReferenceDir string `toml:"reference_dir" json:"reference_dir" yaml:"reference_dir"`
}

// ExerciseConfig holds counting overrides keyed by exercise name. Absent
// entries use the built-in defaults.
type ExerciseConfig struct {
	// DebounceSec overrides the transition debounce for all exercises
	// when positive.
	DebounceSec float64 `toml:"debounce_sec" json:"debounce_sec" yaml:"debounce_sec"`

	// Tolerance overrides the angle tolerance for all exercises when
	// positive.
	Tolerance float64 `toml:"tolerance" json:"tolerance" yaml:"tolerance"`

	// MinConfidence overrides the landmark confidence floor when positive.
	MinConfidence float64 `toml:"min_confidence" json:"min_confidence" yaml:"min_confidence"`
}

// JumpConfig holds jump detection parameters.
type JumpConfig struct {
	// LiftoffThreshold is the upward displacement in pixels that starts a jump.
	LiftoffThreshold float64 `toml:"liftoff_threshold" json:"liftoff_threshold" yaml:"liftoff_threshold"`

	// BaselineWindow is the rolling window length for the standing baseline.
	BaselineWindow int `toml:"baseline_window" json:"baseline_window" yaml:"baseline_window"`

	// BaselineMinSamples is the minimum confident samples for a valid baseline.
	BaselineMinSamples int `toml:"baseline_min_samples" json:"baseline_min_samples" yaml:"baseline_min_samples"`

	// MinAirborneSec rejects single-frame spikes.
	MinAirborneSec float64 `toml:"min_airborne_sec" json:"min_airborne_sec" yaml:"min_airborne_sec"`

	// VerticalScale converts vertical pixels to centimeters.
	VerticalScale float64 `toml:"vertical_scale" json:"vertical_scale" yaml:"vertical_scale"`

	// HorizontalScale converts horizontal pixels to centimeters.
	HorizontalScale float64 `toml:"horizontal_scale" json:"horizontal_scale" yaml:"horizontal_scale"`

	// PlausibilityFactor loosens the free-fall height bound.
	PlausibilityFactor float64 `toml:"plausibility_factor" json:"plausibility_factor" yaml:"plausibility_factor"`
}

// SessionConfig controls session-level aggregation.
type SessionConfig struct {
	// MinValidFrames is the minimum processed frames for a conclusive verdict.
	MinValidFrames int `toml:"min_valid_frames" json:"min_valid_frames" yaml:"min_valid_frames"`

	// FormScoreActive is the form score reported when repetitions were counted.
	FormScoreActive float64 `toml:"form_score_active" json:"form_score_active" yaml:"form_score_active"`

	// FormScoreIdle is the form score reported when no repetitions were counted.
	FormScoreIdle float64 `toml:"form_score_idle" json:"form_score_idle" yaml:"form_score_idle"`
}

// StorageConfig holds report persistence configuration.
type StorageConfig struct {
	// Type is the storage backend type: "sqlite" or "memory".
	Type string `toml:"type" json:"type" yaml:"type"`

	// Path is the path to the database file (for sqlite).
	Path string `toml:"path" json:"path" yaml:"path"`

	// BusyTimeoutMs is the SQLite busy timeout in milliseconds.
	BusyTimeoutMs int `toml:"busy_timeout_ms" json:"busy_timeout_ms" yaml:"busy_timeout_ms"`

	// RetainReports is how many reports List keeps by default; 0 means all.
	RetainReports int `toml:"retain_reports" json:"retain_reports" yaml:"retain_reports"`
}

// InboxConfig holds the daemon's session intake configuration.
type InboxConfig struct {
	// Path is the directory watched for incoming session files.
	Path string `toml:"path" json:"path" yaml:"path"`

	// Patterns are glob patterns for session files to accept.
	Patterns []string `toml:"patterns" json:"patterns" yaml:"patterns"`

	// DebounceMs is how long a file must be stable before processing.
	DebounceMs int `toml:"debounce_ms" json:"debounce_ms" yaml:"debounce_ms"`

	// ArchiveDir is where processed session files are moved; empty leaves
	// them in place.
	ArchiveDir string `toml:"archive_dir" json:"archive_dir" yaml:"archive_dir"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is the log format: "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is the log output: "stdout", "stderr", "file", or "both".
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the path to the log file (when Output includes "file").
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`

	// MaxSizeMB is the maximum log file size before rotation.
	MaxSizeMB int `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`

	// MaxBackups is the number of old log files to keep.
	MaxBackups int `toml:"max_backups" json:"max_backups" yaml:"max_backups"`

	// MaxAgeDays is the maximum age of log files in days.
	MaxAgeDays int `toml:"max_age_days" json:"max_age_days" yaml:"max_age_days"`

	// Compress determines whether to compress rotated logs.
	Compress bool `toml:"compress" json:"compress" yaml:"compress"`
}

// HealthConfig holds the daemon's health endpoint configuration.
type HealthConfig struct {
	// ListenAddr is the address the health and metrics HTTP server binds
	// to; empty disables the server.
	ListenAddr string `toml:"listen_addr" json:"listen_addr" yaml:"listen_addr"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	dir := FairplayDir()

	return &Config{
		Version: Version,
		Sampling: SamplingConfig{
			PoseStride:      10,
			VerifyInterval:  20,
			MaxVerifyFrames: 2,
		},
		Buffers: BufferConfig{
			Keypoints: 10,
			Frames:    10,
			Hashes:    20,
		},
		Anomaly: AnomalyConfig{
			MeanConfidenceMin:     0.2,
			DuplicateCount:        3,
			VelocityMax:           120,
			VelocityMinConfidence: 0.3,
			VelocityOutlierCount:  2,
			MinFrames:             3,
		},
		FaceVerify: FaceVerifyConfig{
			DistanceMax:            0.50,
			MinSimilarity:          35,
			ConsensusRate:          0.4,
			RequiredMatches:        1,
			HighConfidenceOverride: 60,
			ReferenceDir:           filepath.Join(dir, "references"),
		},
		Exercise: ExerciseConfig{},
		Jump: JumpConfig{
			LiftoffThreshold:   30,
			BaselineWindow:     20,
			BaselineMinSamples: 8,
			MinAirborneSec:     0.2,
			VerticalScale:      0.25,
			HorizontalScale:    0.3,
			PlausibilityFactor: 1.3,
		},
		Session: SessionConfig{
			MinValidFrames:  5,
			FormScoreActive: 85,
			FormScoreIdle:   60,
		},
		Storage: StorageConfig{
			Type:          "sqlite",
			Path:          filepath.Join(dir, "reports.db"),
			BusyTimeoutMs: 5000,
			RetainReports: 0,
		},
		Inbox: InboxConfig{
			Path:       filepath.Join(dir, "inbox"),
			Patterns:   []string{"*.json"},
			DebounceMs: 2000,
			ArchiveDir: filepath.Join(dir, "processed"),
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "file",
			FilePath:   filepath.Join(dir, "fairplay.log"),
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
		Health: HealthConfig{
			ListenAddr: "",
		},
	}
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(FairplayDir(), "config.toml")
}

// Load reads configuration from the specified path.
// If the file doesn't exist, returns default configuration.
// Supports TOML, JSON, and YAML formats based on file extension.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = ConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	switch filepath.Ext(path) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("decode TOML: %w", err)
		}
	case ".json":
		if err := decodeJSON(data, cfg); err != nil {
			return nil, fmt.Errorf("decode JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := decodeYAML(data, cfg); err != nil {
			return nil, fmt.Errorf("decode YAML: %w", err)
		}
	default:
		// Try TOML by default
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("decode config (unknown format): %w", err)
		}
	}

	cfg.ApplyEnvOverrides()

	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// EnsureDirectories creates all directories the engine writes to.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		filepath.Dir(c.Storage.Path),
		filepath.Dir(c.Logging.FilePath),
		c.Inbox.Path,
		c.Inbox.ArchiveDir,
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return nil
}

// FairplayDir returns the base fairplay data directory.
// Uses platform-specific paths or the FAIRPLAY_DATA_DIR override.
func FairplayDir() string {
	if envDir := os.Getenv("FAIRPLAY_DATA_DIR"); envDir != "" {
		return envDir
	}
	return PlatformDataDir()
}

// ApplyEnvOverrides applies environment variable overrides to the
// configuration. Variables are prefixed with FAIRPLAY_.
func (c *Config) ApplyEnvOverrides() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v := os.Getenv("FAIRPLAY_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("FAIRPLAY_REFERENCE_DIR"); v != "" {
		c.FaceVerify.ReferenceDir = v
	}
	if v := os.Getenv("FAIRPLAY_INBOX_PATH"); v != "" {
		c.Inbox.Path = v
	}
	if v := os.Getenv("FAIRPLAY_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("FAIRPLAY_LOG_PATH"); v != "" {
		c.Logging.FilePath = v
	}
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	clone := Config{
		Version:    c.Version,
		Sampling:   c.Sampling,
		Buffers:    c.Buffers,
		Anomaly:    c.Anomaly,
		FaceVerify: c.FaceVerify,
		Exercise:   c.Exercise,
		Jump:       c.Jump,
		Session:    c.Session,
		Storage:    c.Storage,
		Inbox:      c.Inbox,
		Logging:    c.Logging,
		Health:     c.Health,
	}
	clone.Inbox.Patterns = append([]string{}, c.Inbox.Patterns...)
	return &clone
}
