package store

import (
	"time"

	"github.com/tamlil/tamlil/internal/engine"
)

// Status is the lifecycle state of a chunk.
type Status string

// Chunk lifecycle states. Transitions: Pending → Processing → {Completed,
// Failed}; Failed → Pending on retry, Failed → Skipped on give-up.
const (
	StatusPending    Status = "Pending"
	StatusProcessing Status = "Processing"
	StatusCompleted  Status = "Completed"
	StatusFailed     Status = "Failed"
	StatusSkipped    Status = "Skipped"
)

// Resolved reports whether the chunk needs no further work.
func (s Status) Resolved() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusSkipped
}

// ChunkResult is the durable per-chunk record. Segment times are absolute
// source times; engine-local offsets are shifted by ChunkStart before the
// record is stored.
type ChunkResult struct {
	Index      int              `json:"index"`
	ChunkStart float64          `json:"chunk_start_sec"`
	ChunkEnd   float64          `json:"chunk_end_sec"`
	Status     Status           `json:"status"`
	Attempts   int              `json:"attempts"`
	EngineID   string           `json:"engine_id"`
	ModelID    string           `json:"model_id"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt *time.Time       `json:"finished_at"`
	ErrorKind  string           `json:"error_kind"`
	Segments   []engine.Segment `json:"segments"`
}
