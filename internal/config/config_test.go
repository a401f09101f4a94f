package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/tamlil/tamlil/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Transcription.DefaultEngine != "whispercpp" {
		t.Errorf("default engine = %q", cfg.Transcription.DefaultEngine)
	}
	if cfg.Transcription.Language != "he" {
		t.Errorf("language = %q", cfg.Transcription.Language)
	}
	if cfg.Chunking.ChunkSeconds != 30 || cfg.Chunking.OverlapSeconds != 5 {
		t.Errorf("chunking = %+v", cfg.Chunking)
	}
	if cfg.Scheduler.MaxWorkers != 4 || cfg.Scheduler.MaxAttempts != 3 {
		t.Errorf("scheduler = %+v", cfg.Scheduler)
	}
	if cfg.Scheduler.FailThresholdFraction != 0.25 {
		t.Errorf("fail threshold = %v", cfg.Scheduler.FailThresholdFraction)
	}
	if cfg.Speaker.Enabled {
		t.Error("speaker enabled by default")
	}
	if !cfg.Output.RetainChunks {
		t.Error("retain_chunks disabled by default")
	}
	if cfg.Output.RunDirRoot != "./runs" {
		t.Errorf("run_dir_root = %q", cfg.Output.RunDirRoot)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tamlil.yaml")
	body := `
transcription:
  default_engine: whisperserver
  server_url: http://localhost:8080
  language: en
chunking:
  chunk_seconds: 60
  overlap_seconds: 10
scheduler:
  max_workers: 8
speaker:
  enabled: true
  preset: energy
output:
  formats: [json, txt, docx]
  retain_chunks: false
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Transcription.DefaultEngine != "whisperserver" {
		t.Errorf("engine = %q", cfg.Transcription.DefaultEngine)
	}
	if cfg.Transcription.ServerURL != "http://localhost:8080" {
		t.Errorf("server url = %q", cfg.Transcription.ServerURL)
	}
	if cfg.Chunking.ChunkSeconds != 60 {
		t.Errorf("chunk seconds = %v", cfg.Chunking.ChunkSeconds)
	}
	if cfg.Scheduler.MaxWorkers != 8 {
		t.Errorf("workers = %d", cfg.Scheduler.MaxWorkers)
	}
	// The file does not set max_attempts; the default must survive.
	if cfg.Scheduler.MaxAttempts != 3 {
		t.Errorf("attempts = %d", cfg.Scheduler.MaxAttempts)
	}
	if !cfg.Speaker.Enabled || cfg.Speaker.Preset != "energy" {
		t.Errorf("speaker = %+v", cfg.Speaker)
	}
	if len(cfg.Output.Formats) != 3 || cfg.Output.RetainChunks {
		t.Errorf("output = %+v", cfg.Output)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("TAMLIL_SCHEDULER_MAX_WORKERS", "12")
	t.Setenv("TAMLIL_TRANSCRIPTION_LANGUAGE", "en")
	t.Setenv("TAMLIL_TRANSCRIPTION_DEFAULT_MODEL", "ggml-large-v3.bin")
	t.Setenv("TAMLIL_TRANSCRIPTION_SERVER_URL", "http://localhost:8080")

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Scheduler.MaxWorkers != 12 {
		t.Errorf("workers = %d, want 12 from env", cfg.Scheduler.MaxWorkers)
	}
	if cfg.Transcription.Language != "en" {
		t.Errorf("language = %q, want en from env", cfg.Transcription.Language)
	}
	if cfg.Transcription.DefaultModel != "ggml-large-v3.bin" {
		t.Errorf("default_model = %q, want ggml-large-v3.bin from env", cfg.Transcription.DefaultModel)
	}
	if cfg.Transcription.ServerURL != "http://localhost:8080" {
		t.Errorf("server_url = %q, want http://localhost:8080 from env", cfg.Transcription.ServerURL)
	}
}

func TestLoadEnvShortAliases(t *testing.T) {
	t.Setenv("TAMLIL_ENGINE", "whisperserver")
	t.Setenv("TAMLIL_MODEL", "large-v3")

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Transcription.DefaultEngine != "whisperserver" {
		t.Errorf("engine = %q, want whisperserver from TAMLIL_ENGINE", cfg.Transcription.DefaultEngine)
	}
	if cfg.Transcription.DefaultModel != "large-v3" {
		t.Errorf("model = %q, want large-v3 from TAMLIL_MODEL", cfg.Transcription.DefaultModel)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("Load of missing explicit file succeeded")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *config.Config {
		cfg, err := config.Load("")
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"zero chunk", func(c *config.Config) { c.Chunking.ChunkSeconds = 0 }},
		{"negative overlap", func(c *config.Config) { c.Chunking.OverlapSeconds = -1 }},
		{"overlap >= chunk", func(c *config.Config) { c.Chunking.OverlapSeconds = 30 }},
		{"zero workers", func(c *config.Config) { c.Scheduler.MaxWorkers = 0 }},
		{"zero attempts", func(c *config.Config) { c.Scheduler.MaxAttempts = 0 }},
		{"threshold above one", func(c *config.Config) { c.Scheduler.FailThresholdFraction = 1.5 }},
		{"unknown format", func(c *config.Config) { c.Output.Formats = []string{"pdf"} }},
		{"unknown preset", func(c *config.Config) { c.Speaker.Preset = "psychic" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, config.ErrInvalidConfig) {
				t.Errorf("Validate() = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestSnapshotExcludesCredentials(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	snap := cfg.Snapshot()
	if _, ok := snap["chunking.chunk_seconds"]; !ok {
		t.Error("snapshot misses chunking.chunk_seconds")
	}
	for key := range snap {
		if key == "api_key" || key == "openai_api_key" {
			t.Errorf("snapshot leaks credential key %q", key)
		}
	}
}
