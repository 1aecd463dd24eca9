// Package config loads and validates skysort configuration from TOML.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Config is the root configuration for the skysort daemon and CLI.
type Config struct {
	Paths         Paths         `toml:"paths"`
	Analyzer      Analyzer      `toml:"analyzer"`
	Classifier    Classifier    `toml:"classifier"`
	Probes        Probes        `toml:"probes"`
	Watcher       Watcher       `toml:"watcher"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// Paths collects all on-disk locations the daemon touches.
type Paths struct {
	// DataDir is the root under which the catalog database and logs live.
	DataDir string `toml:"data_dir"`
	// InboxDir is watched for new footage folders to analyze.
	InboxDir string `toml:"inbox_dir"`
	// LibraryDir receives resolved jump folders.
	LibraryDir string `toml:"library_dir"`
	LogDir     string `toml:"log_dir"`
}

// Analyzer controls per-folder analysis behavior.
type Analyzer struct {
	// Workers bounds how many files are analyzed concurrently.
	Workers int `toml:"workers"`
	// Adaptive enables two-pass sampling. When false, every file is
	// sampled uniformly at the fine interval.
	Adaptive bool `toml:"adaptive"`
	// CoarseIntervalSeconds is the spacing of the first sampling pass.
	CoarseIntervalSeconds float64 `toml:"coarse_interval_seconds"`
	// FineIntervalSeconds is the spacing of refinement samples around
	// classification changes.
	FineIntervalSeconds float64 `toml:"fine_interval_seconds"`
	SmoothingWindow     int     `toml:"smoothing_window"`
	MinSegmentSeconds   float64 `toml:"min_segment_seconds"`
	// MinFreeGiB logs a warning when the library volume has less than
	// this much free space. Zero disables the check.
	MinFreeGiB int `toml:"min_free_gib"`
}

// Classifier points at the frame-classification inference service.
type Classifier struct {
	Endpoint       string `toml:"endpoint"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	// WarmupTimeoutSeconds bounds the one-time model load request.
	WarmupTimeoutSeconds int `toml:"warmup_timeout_seconds"`
	// BatchSize caps how many frames are sent per classify request.
	BatchSize int `toml:"batch_size"`
}

// Probes names the external binaries used for media inspection.
type Probes struct {
	FFprobeBinary string `toml:"ffprobe_binary"`
	FFmpegBinary  string `toml:"ffmpeg_binary"`
	ZbarimgBinary string `toml:"zbarimg_binary"`
}

// Watcher controls removable-media and inbox monitoring.
type Watcher struct {
	Enabled bool `toml:"enabled"`
	// SettleSeconds is how long a new folder must be quiet before it is
	// queued for analysis.
	SettleSeconds    int `toml:"settle_seconds"`
	MountPollSeconds int `toml:"mount_poll_seconds"`
}

// Notifications configures the ntfy push channel.
type Notifications struct {
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	NotifyResolved        bool   `toml:"notify_resolved"`
	NotifyNeedsManual     bool   `toml:"notify_needs_manual"`
	NotifyErrors          bool   `toml:"notify_errors"`
	NotifyMediaDetected   bool   `toml:"notify_media_detected"`
}

// Logging controls log output format and verbosity.
type Logging struct {
	// Format is "console" or "json".
	Format string `toml:"format"`
	Level  string `toml:"level"`
	// RetentionDays prunes per-batch log files older than this.
	RetentionDays int `toml:"retention_days"`
}

// DatabasePath returns the location of the catalog database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "skysort.db")
}

// ClassifierTimeout returns the per-request classifier timeout.
func (c *Config) ClassifierTimeout() time.Duration {
	return time.Duration(c.Classifier.TimeoutSeconds) * time.Second
}

// WarmupTimeout returns the model-load timeout.
func (c *Config) WarmupTimeout() time.Duration {
	return time.Duration(c.Classifier.WarmupTimeoutSeconds) * time.Second
}

// RequestTimeout returns the ntfy request timeout.
func (n Notifications) RequestTimeout() time.Duration {
	return time.Duration(n.RequestTimeoutSeconds) * time.Second
}

// SettleDuration returns how long a folder must be quiet before analysis.
func (c *Config) SettleDuration() time.Duration {
	return time.Duration(c.Watcher.SettleSeconds) * time.Second
}

// MountPollDuration returns the interval between mount-table checks while
// waiting for detected media to mount.
func (c *Config) MountPollDuration() time.Duration {
	return time.Duration(c.Watcher.MountPollSeconds) * time.Second
}

// EnsureDirectories creates every directory the daemon needs.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir, c.Paths.InboxDir, c.Paths.LibraryDir, c.Paths.LogDir}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// DefaultConfigPath returns the standard config file location.
func DefaultConfigPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "skysort", "config.toml")
	}
	return filepath.Join(os.TempDir(), "skysort", "config.toml")
}

// Load reads configuration from path, or from the default location when
// path is empty. A missing file yields defaults.
func Load(path string) (*Config, string, error) {
	resolved := strings.TrimSpace(path)
	if resolved == "" {
		resolved = DefaultConfigPath()
	}
	resolved = expandPath(resolved)

	cfg := Default()
	data, err := os.ReadFile(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.normalize()
			if verr := cfg.Validate(); verr != nil {
				return nil, resolved, verr
			}
			return &cfg, resolved, nil
		}
		return nil, resolved, fmt.Errorf("read config %s: %w", resolved, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, resolved, fmt.Errorf("parse config %s: %w", resolved, err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, resolved, err
	}
	return &cfg, resolved, nil
}

// WriteSample writes the annotated sample configuration to path.
func WriteSample(path string) error {
	resolved := expandPath(path)
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if _, err := os.Stat(resolved); err == nil {
		return fmt.Errorf("config file already exists at %s", resolved)
	}
	if err := os.WriteFile(resolved, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			if path == "~" {
				return home
			}
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
