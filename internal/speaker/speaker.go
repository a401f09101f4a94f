// Package speaker attributes transcript segments to speakers.
//
// A Provider turns raw audio into speaker Turns; Label then assigns each
// transcript segment the speaker whose turns cover most of the segment's
// span. Attribution never changes segment timing or text, it only fills
// the Speaker field.
package speaker

import (
	"context"
	"fmt"
	"sort"

	"github.com/tamlil/tamlil/internal/engine"
)

// Fallback is the label used when no turn overlaps a segment, and the
// only label emitted by the Single provider.
const Fallback = "SPEAKER_1"

// Turn is a span of audio attributed to one speaker.
type Turn struct {
	Speaker string  `json:"speaker"`
	Start   float64 `json:"start_sec"`
	End     float64 `json:"end_sec"`
}

// Provider produces speaker turns for a full recording. Implementations
// are not safe for concurrent use unless documented.
type Provider interface {
	// Turns diarizes mono PCM at the given sample rate. Returned turns
	// are sorted by start and non-overlapping per speaker.
	Turns(ctx context.Context, samples []float32, sampleRate int) ([]Turn, error)
}

// Name formats a 1-based speaker label from a cluster index.
func Name(index int) string {
	return fmt.Sprintf("SPEAKER_%d", index+1)
}

// Label assigns each segment the speaker with the largest temporal
// overlap against its span. Ties go to the turn that starts earlier.
// Segments with no overlapping turn get the Fallback label. The input
// slice is modified in place and returned.
func Label(segments []engine.Segment, turns []Turn) []engine.Segment {
	for i := range segments {
		segments[i].Speaker = majority(segments[i].Start, segments[i].End, turns)
	}
	return segments
}

// majority finds the speaker covering the biggest share of [start, end).
func majority(start, end float64, turns []Turn) string {
	overlaps := make(map[string]float64)
	firstSeen := make(map[string]float64)

	for _, turn := range turns {
		lo := max(start, turn.Start)
		hi := min(end, turn.End)
		if hi <= lo {
			continue
		}
		if _, ok := firstSeen[turn.Speaker]; !ok {
			firstSeen[turn.Speaker] = turn.Start
		}
		overlaps[turn.Speaker] += hi - lo
	}
	if len(overlaps) == 0 {
		return Fallback
	}

	best := ""
	for speaker, overlap := range overlaps {
		if best == "" {
			best = speaker
			continue
		}
		switch {
		case overlap > overlaps[best]:
			best = speaker
		case overlap == overlaps[best] && firstSeen[speaker] < firstSeen[best]:
			best = speaker
		}
	}
	return best
}

// Normalize sorts turns, clamps them to [0, duration], drops empty ones
// and merges adjacent same-speaker turns that touch or overlap.
func Normalize(turns []Turn, duration float64) []Turn {
	cleaned := make([]Turn, 0, len(turns))
	for _, turn := range turns {
		if turn.Start < 0 {
			turn.Start = 0
		}
		if duration > 0 && turn.End > duration {
			turn.End = duration
		}
		if turn.End <= turn.Start {
			continue
		}
		cleaned = append(cleaned, turn)
	}

	sort.Slice(cleaned, func(i, j int) bool {
		if cleaned[i].Start != cleaned[j].Start {
			return cleaned[i].Start < cleaned[j].Start
		}
		return cleaned[i].End < cleaned[j].End
	})

	var merged []Turn
	for _, turn := range cleaned {
		if n := len(merged); n > 0 {
			last := &merged[n-1]
			if last.Speaker == turn.Speaker && turn.Start <= last.End {
				if turn.End > last.End {
					last.End = turn.End
				}
				continue
			}
		}
		merged = append(merged, turn)
	}
	return merged
}
