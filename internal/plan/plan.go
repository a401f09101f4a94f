// Package plan computes the chunk schedule for a transcription run: a list
// of fixed-duration, overlapping time windows covering the source audio.
// All times are absolute seconds from the start of the source.
package plan

import (
	"fmt"

	"github.com/tamlil/tamlil/internal/format"
)

// Default chunking parameters.
const (
	// DefaultChunkSeconds is the default chunk window length.
	// 30s matches the native receptive field of whisper-family models.
	DefaultChunkSeconds = 30.0

	// DefaultOverlapSeconds is the default overlap between consecutive chunks.
	// 5s ensures words spoken across a boundary land whole in at least one chunk.
	DefaultOverlapSeconds = 5.0
)

// Chunk is one window of the source audio processed as a unit.
type Chunk struct {
	Index int     `json:"index"`
	Start float64 `json:"start_sec"`
	End   float64 `json:"end_sec"`
}

// Duration returns the chunk length in seconds.
func (c Chunk) Duration() float64 {
	return c.End - c.Start
}

// String returns a human-readable representation for logging.
func (c Chunk) String() string {
	return fmt.Sprintf("chunk %d: %s-%s",
		c.Index, format.Seconds(c.Start), format.Seconds(c.End))
}

// Plan computes the chunk windows for an audio source of the given duration.
//
// Chunks start at k*(chunkSec-overlapSec) and run for chunkSec seconds; the
// last chunk is truncated to the source duration and no chunk is ever
// synthesized past the end. A source shorter than one chunk yields exactly
// one chunk [0, duration].
func Plan(duration, chunkSec, overlapSec float64) ([]Chunk, error) {
	if duration <= 0 {
		return nil, fmt.Errorf("%w: duration %.3fs", ErrEmptyDuration, duration)
	}
	if chunkSec <= 0 {
		return nil, fmt.Errorf("%w: chunk duration %.3fs", ErrInvalidChunking, chunkSec)
	}
	if overlapSec < 0 || overlapSec >= chunkSec {
		return nil, fmt.Errorf("%w: overlap %.3fs with chunk %.3fs",
			ErrInvalidChunking, overlapSec, chunkSec)
	}

	// Short source: a single chunk, no overlap logic.
	if duration <= chunkSec {
		return []Chunk{{Index: 0, Start: 0, End: duration}}, nil
	}

	step := chunkSec - overlapSec
	var chunks []Chunk
	for i := 0; ; i++ {
		start := float64(i) * step
		if start >= duration {
			break
		}
		end := min(start+chunkSec, duration)
		chunks = append(chunks, Chunk{Index: i, Start: start, End: end})
		if end >= duration {
			break
		}
	}

	return chunks, nil
}
