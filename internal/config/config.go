// Package config loads and validates the run configuration.
//
// Precedence, lowest to highest: built-in defaults, an optional YAML file
// (explicit path, ./tamlil.yaml, or ~/.config/tamlil/tamlil.yaml), then
// TAMLIL_* environment variables (dots become underscores, e.g.
// TAMLIL_SCHEDULER_MAX_WORKERS). CLI flags override individual fields on
// the returned struct after loading. Remote-engine credentials come from
// OPENAI_API_KEY only, never from the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrInvalidConfig wraps all validation failures.
var ErrInvalidConfig = errors.New("invalid configuration")

// Defaults for every recognized key.
const (
	DefaultEngine         = "whispercpp"
	DefaultLanguage       = "he"
	DefaultChunkSeconds   = 30.0
	DefaultOverlapSeconds = 5.0
	DefaultMaxWorkers     = 4
	DefaultMaxAttempts    = 3
	DefaultChunkTimeout   = 600
	DefaultFailThreshold  = 0.25
	DefaultCancelGrace    = 30
	DefaultTurnGap        = 3.0
	DefaultRunDirRoot     = "./runs"
	DefaultSpeakerPreset  = "single"
)

// Transcription selects the engine and model.
type Transcription struct {
	DefaultModel  string `mapstructure:"default_model"`
	DefaultEngine string `mapstructure:"default_engine"`
	Language      string `mapstructure:"language"`

	// ServerURL is the whisper-server address (whisperserver engine).
	ServerURL string `mapstructure:"server_url"`
}

// Chunking controls how the source is split.
type Chunking struct {
	ChunkSeconds   float64 `mapstructure:"chunk_seconds"`
	OverlapSeconds float64 `mapstructure:"overlap_seconds"`
}

// Scheduler controls the worker pool and recovery policy.
type Scheduler struct {
	MaxWorkers            int     `mapstructure:"max_workers"`
	MaxAttempts           int     `mapstructure:"max_attempts"`
	ChunkTimeoutSec       int     `mapstructure:"chunk_timeout_sec"`
	FailThresholdFraction float64 `mapstructure:"fail_threshold_fraction"`
	CancelGraceSec        int     `mapstructure:"cancel_grace_sec"`
}

// Speaker controls diarization.
type Speaker struct {
	Enabled bool `mapstructure:"enabled"`

	// Preset is "single", "energy", or "sherpa".
	Preset string `mapstructure:"preset"`

	TurnGapSec float64 `mapstructure:"turn_gap_sec"`

	// Model paths for the sherpa preset.
	SegmentationModel string `mapstructure:"segmentation_model"`
	EmbeddingModel    string `mapstructure:"embedding_model"`
}

// Output controls artifact generation.
type Output struct {
	Formats      []string `mapstructure:"formats"`
	RetainChunks bool     `mapstructure:"retain_chunks"`
	RunDirRoot   string   `mapstructure:"run_dir_root"`
}

// Config is the immutable per-run configuration snapshot.
type Config struct {
	Transcription Transcription `mapstructure:"transcription"`
	Chunking      Chunking      `mapstructure:"chunking"`
	Scheduler     Scheduler     `mapstructure:"scheduler"`
	Speaker       Speaker       `mapstructure:"speaker"`
	Output        Output        `mapstructure:"output"`
	Debug         bool          `mapstructure:"debug"`
}

// Load builds the configuration. file may be empty, in which case the
// default locations are searched; a missing file is not an error.
func Load(file string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("TAMLIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Short aliases alongside the canonical TAMLIL_<SECTION>_<KEY> names.
	_ = v.BindEnv("transcription.default_engine", "TAMLIL_TRANSCRIPTION_DEFAULT_ENGINE", "TAMLIL_ENGINE")
	_ = v.BindEnv("transcription.default_model", "TAMLIL_TRANSCRIPTION_DEFAULT_MODEL", "TAMLIL_MODEL")

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	} else {
		v.SetConfigName("tamlil")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "tamlil"))
		}
		var notFound viper.ConfigFileNotFoundError
		if err := v.ReadInConfig(); err != nil && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("transcription.default_engine", DefaultEngine)
	// Empty defaults still register the keys; AutomaticEnv only surfaces
	// keys viper already knows about.
	v.SetDefault("transcription.default_model", "")
	v.SetDefault("transcription.server_url", "")
	v.SetDefault("transcription.language", DefaultLanguage)
	v.SetDefault("chunking.chunk_seconds", DefaultChunkSeconds)
	v.SetDefault("chunking.overlap_seconds", DefaultOverlapSeconds)
	v.SetDefault("scheduler.max_workers", DefaultMaxWorkers)
	v.SetDefault("scheduler.max_attempts", DefaultMaxAttempts)
	v.SetDefault("scheduler.chunk_timeout_sec", DefaultChunkTimeout)
	v.SetDefault("scheduler.fail_threshold_fraction", DefaultFailThreshold)
	v.SetDefault("scheduler.cancel_grace_sec", DefaultCancelGrace)
	v.SetDefault("speaker.enabled", false)
	v.SetDefault("speaker.preset", DefaultSpeakerPreset)
	v.SetDefault("speaker.turn_gap_sec", DefaultTurnGap)
	v.SetDefault("output.formats", []string{"json", "txt"})
	v.SetDefault("output.retain_chunks", true)
	v.SetDefault("output.run_dir_root", DefaultRunDirRoot)
	v.SetDefault("debug", false)
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Chunking.ChunkSeconds <= 0 {
		return fmt.Errorf("%w: chunking.chunk_seconds must be positive", ErrInvalidConfig)
	}
	if c.Chunking.OverlapSeconds < 0 {
		return fmt.Errorf("%w: chunking.overlap_seconds must not be negative", ErrInvalidConfig)
	}
	if c.Chunking.OverlapSeconds >= c.Chunking.ChunkSeconds {
		return fmt.Errorf("%w: chunking.overlap_seconds (%g) must be smaller than chunking.chunk_seconds (%g)",
			ErrInvalidConfig, c.Chunking.OverlapSeconds, c.Chunking.ChunkSeconds)
	}
	if c.Scheduler.MaxWorkers < 1 {
		return fmt.Errorf("%w: scheduler.max_workers must be at least 1", ErrInvalidConfig)
	}
	if c.Scheduler.MaxAttempts < 1 {
		return fmt.Errorf("%w: scheduler.max_attempts must be at least 1", ErrInvalidConfig)
	}
	if f := c.Scheduler.FailThresholdFraction; f <= 0 || f > 1 {
		return fmt.Errorf("%w: scheduler.fail_threshold_fraction must be in (0, 1]", ErrInvalidConfig)
	}
	for _, format := range c.Output.Formats {
		switch format {
		case "json", "txt", "docx":
		default:
			return fmt.Errorf("%w: output.formats contains unknown format %q", ErrInvalidConfig, format)
		}
	}
	switch c.Speaker.Preset {
	case "single", "energy", "sherpa":
	default:
		return fmt.Errorf("%w: speaker.preset must be single, energy, or sherpa", ErrInvalidConfig)
	}
	return nil
}

// ChunkTimeout returns the per-chunk timeout as a duration.
func (c *Config) ChunkTimeout() time.Duration {
	return time.Duration(c.Scheduler.ChunkTimeoutSec) * time.Second
}

// CancelGrace returns the cancellation grace period as a duration.
func (c *Config) CancelGrace() time.Duration {
	return time.Duration(c.Scheduler.CancelGraceSec) * time.Second
}

// OpenAIAPIKey reads the remote-engine credential from the environment.
func OpenAIAPIKey() string {
	return os.Getenv("OPENAI_API_KEY")
}

// Snapshot returns the configuration as the flat key map embedded in
// manifests and the final transcript. Credentials are never included.
func (c *Config) Snapshot() map[string]any {
	return map[string]any{
		"transcription.default_model":       c.Transcription.DefaultModel,
		"transcription.default_engine":      c.Transcription.DefaultEngine,
		"transcription.language":            c.Transcription.Language,
		"chunking.chunk_seconds":            c.Chunking.ChunkSeconds,
		"chunking.overlap_seconds":          c.Chunking.OverlapSeconds,
		"scheduler.max_workers":             c.Scheduler.MaxWorkers,
		"scheduler.max_attempts":            c.Scheduler.MaxAttempts,
		"scheduler.chunk_timeout_sec":       c.Scheduler.ChunkTimeoutSec,
		"scheduler.fail_threshold_fraction": c.Scheduler.FailThresholdFraction,
		"scheduler.cancel_grace_sec":        c.Scheduler.CancelGraceSec,
		"speaker.enabled":                   c.Speaker.Enabled,
		"speaker.preset":                    c.Speaker.Preset,
		"speaker.turn_gap_sec":              c.Speaker.TurnGapSec,
		"output.formats":                    append([]string(nil), c.Output.Formats...),
		"output.retain_chunks":              c.Output.RetainChunks,
		"output.run_dir_root":               c.Output.RunDirRoot,
	}
}
