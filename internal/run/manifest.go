package run

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tamlil/tamlil/internal/atomicfile"
)

// manifestFile is the manifest's name inside the run directory.
const manifestFile = "manifest.json"

const manifestPerm = 0o644

// Run states recorded in the manifest.
const (
	StateRunning   = "running"
	StateCompleted = "completed"
	StatePartial   = "partial"
	StateFailed    = "failed"
	StateCanceled  = "canceled"
)

// SourceInfo identifies the audio a run was started from. Resume replays
// the run against the same file with the same chunk plan.
type SourceInfo struct {
	Path        string  `json:"path"`
	SizeBytes   int64   `json:"size_bytes"`
	DurationSec float64 `json:"duration_sec"`
}

// Counts summarizes chunk resolutions.
type Counts struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
	Pending   int `json:"pending"`
}

// Manifest is the durable run descriptor at the root of each run
// directory. It carries everything Resume and Status need without
// re-deriving state from configuration.
type Manifest struct {
	RunID     string    `json:"run_id"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Source SourceInfo `json:"source"`

	EngineID string `json:"engine_id"`
	ModelID  string `json:"model_id"`
	Language string `json:"language"`

	ChunkSeconds   float64 `json:"chunk_seconds"`
	OverlapSeconds float64 `json:"overlap_seconds"`
	TotalChunks    int     `json:"total_chunks"`

	Counts Counts `json:"counts"`

	ConfigSnapshot map[string]any `json:"config_snapshot"`
}

// writeManifest persists the manifest atomically under dir.
func writeManifest(dir string, m *Manifest) error {
	m.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := atomicfile.WriteFile(filepath.Join(dir, manifestFile), data, manifestPerm); err != nil {
		return fmt.Errorf("persist manifest: %w", err)
	}
	return nil
}

// ReadManifest loads the manifest from a run directory.
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &m, nil
}
