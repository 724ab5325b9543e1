// Package config handles configuration loading and validation for fairplay.
package config

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading, watching, and hot-reloading.
type Loader struct {
	path     string
	config   *Config
	mu       sync.RWMutex
	watcher  *fsnotify.Watcher
	onChange []func(*Config)
	ctx      context.Context
	cancel   context.CancelFunc
	errChan  chan error
}

// NewLoader creates a new configuration loader.
func NewLoader(path string) *Loader {
	ctx, cancel := context.WithCancel(context.Background())
	return &Loader{
		path:    path,
		errChan: make(chan error, 1),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Load reads and parses the configuration file.
func (l *Loader) Load() (*Config, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cfg, err := loadConfigFromFile(l.path)
	if err != nil {
		return nil, err
	}

	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	l.config = cfg
	return cfg, nil
}

// Config returns the current configuration.
func (l *Loader) Config() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.config
}

// Watch starts watching the configuration file for changes.
func (l *Loader) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	l.watcher = watcher

	// Watch the directory containing the config file
	dir := filepath.Dir(l.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch directory: %w", err)
	}

	go l.watchLoop()

	return nil
}

// watchLoop handles file system events.
func (l *Loader) watchLoop() {
	// Debounce timer to avoid multiple reloads for rapid changes
	var debounceTimer *time.Timer
	debounceDelay := 100 * time.Millisecond

	for {
		select {
		case <-l.ctx.Done():
			return

		case event, ok := <-l.watcher.Events:
			if !ok {
				return
			}

			if filepath.Base(event.Name) != filepath.Base(l.path) {
				continue
			}

			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(debounceDelay, func() {
				l.reload()
			})

		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			select {
			case l.errChan <- err:
			default:
			}
		}
	}
}

// reload attempts to reload the configuration.
func (l *Loader) reload() {
	newCfg, err := loadConfigFromFile(l.path)
	if err != nil {
		select {
		case l.errChan <- fmt.Errorf("reload config: %w", err):
		default:
		}
		return
	}

	newCfg.ApplyEnvOverrides()

	// Validate before applying
	if err := newCfg.Validate(); err != nil {
		select {
		case l.errChan <- fmt.Errorf("validate new config: %w", err):
		default:
		}
		return
	}

	l.mu.Lock()
	l.config = newCfg
	l.mu.Unlock()

	for _, cb := range l.onChange {
		cb(newCfg)
	}
}

// OnChange registers a callback to be invoked when the configuration changes.
func (l *Loader) OnChange(cb func(*Config)) {
	l.onChange = append(l.onChange, cb)
}

// Errors returns a channel for receiving errors that occur during watching.
func (l *Loader) Errors() <-chan error {
	return l.errChan
}

// Close stops the watcher and releases resources.
func (l *Loader) Close() error {
	l.cancel()
	if l.watcher != nil {
		return l.watcher.Close()
	}
	return nil
}

// loadConfigFromFile reads and parses a config file based on its extension.
func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if no config file exists
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()

	switch filepath.Ext(path) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("decode TOML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode YAML: %w", err)
		}
	default:
		if err := autoDetectAndParse(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	return cfg, nil
}

// autoDetectAndParse attempts to parse the config in multiple formats.
func autoDetectAndParse(data []byte, cfg *Config) error {
	// Try TOML first (most common)
	if _, err := toml.Decode(string(data), cfg); err == nil {
		return nil
	}

	if err := json.Unmarshal(data, cfg); err == nil {
		return nil
	}

	if err := yaml.Unmarshal(data, cfg); err == nil {
		return nil
	}

	return fmt.Errorf("unable to parse config file (tried TOML, JSON, YAML)")
}

// decodeJSON parses JSON config data.
func decodeJSON(data []byte, cfg *Config) error {
	return json.Unmarshal(data, cfg)
}

// decodeYAML parses YAML config data.
func decodeYAML(data []byte, cfg *Config) error {
	return yaml.Unmarshal(data, cfg)
}

// LoadFromEnv creates a configuration primarily from environment variables.
// This is useful for containerized deployments.
func LoadFromEnv() *Config {
	cfg := DefaultConfig()
	cfg.ApplyEnvOverrides()
	return cfg
}

// LoadOrCreate loads the configuration from the specified path,
// creating a default configuration file if it doesn't exist.
func LoadOrCreate(path string) (*Config, bool, error) {
	if path == "" {
		path = ConfigPath()
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()
		if err := SaveConfig(cfg, path); err != nil {
			return nil, false, fmt.Errorf("create default config: %w", err)
		}
		return cfg, true, nil
	}

	loader := NewLoader(path)
	cfg, err := loader.Load()
	if err != nil {
		return nil, false, err
	}

	return cfg, false, nil
}

// SaveConfig saves the configuration to a file, choosing the format from
// the file extension.
func SaveConfig(cfg *Config, path string) error {
	var data []byte
	var err error

	switch filepath.Ext(path) {
	case ".json":
		data, err = json.MarshalIndent(cfg, "", "  ")
	case ".yaml", ".yml":
		data, err = yaml.Marshal(cfg)
	default:
		// Default to TOML
		var buf bytes.Buffer
		if encErr := toml.NewEncoder(&buf).Encode(cfg); encErr != nil {
			err = encErr
		} else {
			data = buf.Bytes()
		}
	}
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace config: %w", err)
	}

	return nil
}

// Merge merges two configurations, with src overriding dst for non-zero
// values.
func Merge(dst, src *Config) *Config {
	result := dst.Clone()

	if src.Version > 0 {
		result.Version = src.Version
	}

	// Sampling
	if src.Sampling.PoseStride > 0 {
		result.Sampling.PoseStride = src.Sampling.PoseStride
	}
	if src.Sampling.VerifyInterval > 0 {
		result.Sampling.VerifyInterval = src.Sampling.VerifyInterval
	}
	if src.Sampling.MaxVerifyFrames > 0 {
		result.Sampling.MaxVerifyFrames = src.Sampling.MaxVerifyFrames
	}

	// Buffers
	if src.Buffers.Keypoints > 0 {
		result.Buffers.Keypoints = src.Buffers.Keypoints
	}
	if src.Buffers.Frames > 0 {
		result.Buffers.Frames = src.Buffers.Frames
	}
	if src.Buffers.Hashes > 0 {
		result.Buffers.Hashes = src.Buffers.Hashes
	}

	// Anomaly
	if src.Anomaly.MeanConfidenceMin > 0 {
		result.Anomaly.MeanConfidenceMin = src.Anomaly.MeanConfidenceMin
	}
	if src.Anomaly.DuplicateCount > 0 {
		result.Anomaly.DuplicateCount = src.Anomaly.DuplicateCount
	}
	if src.Anomaly.VelocityMax > 0 {
		result.Anomaly.VelocityMax = src.Anomaly.VelocityMax
	}
	if src.Anomaly.VelocityMinConfidence > 0 {
		result.Anomaly.VelocityMinConfidence = src.Anomaly.VelocityMinConfidence
	}
	if src.Anomaly.VelocityOutlierCount > 0 {
		result.Anomaly.VelocityOutlierCount = src.Anomaly.VelocityOutlierCount
	}
	if src.Anomaly.MinFrames > 0 {
		result.Anomaly.MinFrames = src.Anomaly.MinFrames
	}

	// FaceVerify
	if src.FaceVerify.DistanceMax > 0 {
		result.FaceVerify.DistanceMax = src.FaceVerify.DistanceMax
	}
	if src.FaceVerify.MinSimilarity > 0 {
		result.FaceVerify.MinSimilarity = src.FaceVerify.MinSimilarity
	}
	if src.FaceVerify.ConsensusRate > 0 {
		result.FaceVerify.ConsensusRate = src.FaceVerify.ConsensusRate
	}
	if src.FaceVerify.RequiredMatches > 0 {
		result.FaceVerify.RequiredMatches = src.FaceVerify.RequiredMatches
	}
	if src.FaceVerify.HighConfidenceOverride > 0 {
		result.FaceVerify.HighConfidenceOverride = src.FaceVerify.HighConfidenceOverride
	}
	if src.FaceVerify.ReferenceDir != "" {
		result.FaceVerify.ReferenceDir = src.FaceVerify.ReferenceDir
	}

	// Exercise
	if src.Exercise.DebounceSec > 0 {
		result.Exercise.DebounceSec = src.Exercise.DebounceSec
	}
	if src.Exercise.Tolerance > 0 {
		result.Exercise.Tolerance = src.Exercise.Tolerance
	}
	if src.Exercise.MinConfidence > 0 {
		result.Exercise.MinConfidence = src.Exercise.MinConfidence
	}

	// Jump
	if src.Jump.LiftoffThreshold > 0 {
		result.Jump.LiftoffThreshold = src.Jump.LiftoffThreshold
	}
	if src.Jump.BaselineWindow > 0 {
		result.Jump.BaselineWindow = src.Jump.BaselineWindow
	}
	if src.Jump.BaselineMinSamples > 0 {
		result.Jump.BaselineMinSamples = src.Jump.BaselineMinSamples
	}
	if src.Jump.MinAirborneSec > 0 {
		result.Jump.MinAirborneSec = src.Jump.MinAirborneSec
	}
	if src.Jump.VerticalScale > 0 {
		result.Jump.VerticalScale = src.Jump.VerticalScale
	}
	if src.Jump.HorizontalScale > 0 {
		result.Jump.HorizontalScale = src.Jump.HorizontalScale
	}
	if src.Jump.PlausibilityFactor > 0 {
		result.Jump.PlausibilityFactor = src.Jump.PlausibilityFactor
	}

	// Session
	if src.Session.MinValidFrames > 0 {
		result.Session.MinValidFrames = src.Session.MinValidFrames
	}
	if src.Session.FormScoreActive > 0 {
		result.Session.FormScoreActive = src.Session.FormScoreActive
	}
	if src.Session.FormScoreIdle > 0 {
		result.Session.FormScoreIdle = src.Session.FormScoreIdle
	}

	// Storage
	if src.Storage.Type != "" {
		result.Storage.Type = src.Storage.Type
	}
	if src.Storage.Path != "" {
		result.Storage.Path = src.Storage.Path
	}
	if src.Storage.BusyTimeoutMs > 0 {
		result.Storage.BusyTimeoutMs = src.Storage.BusyTimeoutMs
	}
	if src.Storage.RetainReports > 0 {
		result.Storage.RetainReports = src.Storage.RetainReports
	}

	// Inbox
	if src.Inbox.Path != "" {
		result.Inbox.Path = src.Inbox.Path
	}
	if len(src.Inbox.Patterns) > 0 {
		result.Inbox.Patterns = src.Inbox.Patterns
	}
	if src.Inbox.DebounceMs > 0 {
		result.Inbox.DebounceMs = src.Inbox.DebounceMs
	}
	if src.Inbox.ArchiveDir != "" {
		result.Inbox.ArchiveDir = src.Inbox.ArchiveDir
	}

	// Logging
	if src.Logging.Level != "" {
		result.Logging.Level = src.Logging.Level
	}
	if src.Logging.Format != "" {
		result.Logging.Format = src.Logging.Format
	}
	if src.Logging.Output != "" {
		result.Logging.Output = src.Logging.Output
	}
	if src.Logging.FilePath != "" {
		result.Logging.FilePath = src.Logging.FilePath
	}
	if src.Logging.MaxSizeMB > 0 {
		result.Logging.MaxSizeMB = src.Logging.MaxSizeMB
	}
	if src.Logging.MaxBackups > 0 {
		result.Logging.MaxBackups = src.Logging.MaxBackups
	}
	if src.Logging.MaxAgeDays > 0 {
		result.Logging.MaxAgeDays = src.Logging.MaxAgeDays
	}

	// Health
	if src.Health.ListenAddr != "" {
		result.Health.ListenAddr = src.Health.ListenAddr
	}

	return result
}
