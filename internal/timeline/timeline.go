// Package timeline stitches per-chunk segment streams into one deduplicated
// timeline in absolute source time.
//
// The merge is deterministic: given the same chunk results it always
// produces the same timeline. Overlap regions between adjacent chunks are
// resolved by the midpoint rule (each chunk keeps the half of the overlap
// nearest to it), followed by an optional textual n-gram dedup across the
// seam. Skipped or failed chunks leave a gap; no filler is synthesized.
package timeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tamlil/tamlil/internal/engine"
	"github.com/tamlil/tamlil/internal/store"
)

// Default merge parameters.
const (
	// DefaultNgramDedupMin is the minimum shared word-n-gram length that
	// triggers textual dedup across a chunk seam.
	DefaultNgramDedupMin = 4

	// DefaultTurnGapSec is the silence gap that closes a speaker block.
	DefaultTurnGapSec = 3.0

	// duplicateTextWindowSec: segments with identical text starting within
	// this window are duplicates; the earlier one wins.
	duplicateTextWindowSec = 0.2
)

// Options configures a merge.
type Options struct {
	// Duration is the source duration; no merged segment may extend past it.
	Duration float64

	// NgramDedupMin enables n-gram seam dedup when > 0.
	NgramDedupMin int

	// TurnGapSec is the maximum silence between segments grouped into one
	// speaker block.
	TurnGapSec float64
}

// Timeline is the sealed result of a merge.
type Timeline struct {
	Segments      []engine.Segment
	FullText      string
	SpeakerBlocks []Block
}

// Block is a run of consecutive same-speaker segments.
type Block struct {
	Speaker string  `json:"speaker"`
	Start   float64 `json:"start_sec"`
	End     float64 `json:"end_sec"`
	Text    string  `json:"text"`
}

// taggedSegment carries the originating chunk index through the merge so
// seam dedup only applies across chunk boundaries. overlapTail marks a
// segment from the later chunk that starts in the half of the overlap owned
// by the earlier chunk; it survives only by contributing text the earlier
// chunk did not already cover.
type taggedSegment struct {
	engine.Segment
	chunk       int
	overlapTail bool
}

// Merge builds the timeline from resolved chunk results. Only Completed
// chunks contribute segments; the rest contribute gaps. Results may arrive
// in any order.
func Merge(results []*store.ChunkResult, opts Options) (*Timeline, error) {
	if opts.NgramDedupMin == 0 {
		opts.NgramDedupMin = DefaultNgramDedupMin
	}
	if opts.TurnGapSec == 0 {
		opts.TurnGapSec = DefaultTurnGapSec
	}

	byIndex := make(map[int]*store.ChunkResult, len(results))
	var completed []*store.ChunkResult
	for _, res := range results {
		if !res.Status.Resolved() {
			return nil, fmt.Errorf("%w: chunk %d is %s", ErrUnresolvedChunk, res.Index, res.Status)
		}
		byIndex[res.Index] = res
		if res.Status == store.StatusCompleted {
			completed = append(completed, res)
		}
	}
	sort.Slice(completed, func(i, j int) bool { return completed[i].Index < completed[j].Index })

	var tagged []taggedSegment
	for _, res := range completed {
		tagged = append(tagged, windowed(res, byIndex, opts.Duration)...)
	}

	tagged = sortAndDeduplicate(tagged)
	tagged = dedupSeams(tagged, opts.NgramDedupMin)

	segments := make([]engine.Segment, 0, len(tagged))
	texts := make([]string, 0, len(tagged))
	for _, ts := range tagged {
		segments = append(segments, ts.Segment)
		texts = append(texts, ts.Text)
	}

	tl := &Timeline{
		Segments: segments,
		FullText: collapseWhitespace(strings.Join(texts, " ")),
	}
	if hasSpeakers(segments) {
		tl.SpeakerBlocks = buildBlocks(segments, opts.TurnGapSec)
	}
	return tl, nil
}

// windowed applies the midpoint rule to one completed chunk: keep only the
// segments whose start falls in the half of each overlap region owned by
// this chunk. Overlap exists only toward adjacent-index completed chunks.
func windowed(res *store.ChunkResult, byIndex map[int]*store.ChunkResult, duration float64) []taggedSegment {
	loMid := res.ChunkStart
	if prev, ok := byIndex[res.Index-1]; ok && prev.Status == store.StatusCompleted && prev.ChunkEnd > res.ChunkStart {
		loMid = (res.ChunkStart + prev.ChunkEnd) / 2
	}
	hiMid := res.ChunkEnd
	if next, ok := byIndex[res.Index+1]; ok && next.Status == store.StatusCompleted && res.ChunkEnd > next.ChunkStart {
		hiMid = (next.ChunkStart + res.ChunkEnd) / 2
	}

	var kept []taggedSegment
	for _, seg := range res.Segments {
		overlapTail := false
		switch {
		case seg.Start < res.ChunkStart:
			// The engine placed speech before this chunk's own window.
			// Clip to the window start when something of it survives the
			// clip; drop it otherwise.
			if seg.End <= res.ChunkStart {
				continue
			}
			seg.Start = res.ChunkStart
			overlapTail = loMid > res.ChunkStart

		case seg.Start < loMid:
			// The earlier chunk owns this half of the overlap. The segment
			// is presumed duplicate coverage, but may still carry words the
			// earlier chunk missed; seam dedup makes the final call.
			overlapTail = true

		case seg.Start >= hiMid:
			// Owned by the next chunk's half of the overlap.
			continue
		}

		if duration > 0 && seg.End > duration {
			seg.End = duration
		}
		if duration > 0 && seg.Start >= duration {
			continue
		}
		kept = append(kept, taggedSegment{Segment: seg, chunk: res.Index, overlapTail: overlapTail})
	}
	return kept
}

// sortAndDeduplicate enforces the post-merge global invariants: segments
// sorted by start (shorter first on ties), no identical (start, end, text)
// pairs, and no identical text repeated within 200ms.
func sortAndDeduplicate(segs []taggedSegment) []taggedSegment {
	sort.SliceStable(segs, func(i, j int) bool {
		if segs[i].Start != segs[j].Start {
			return segs[i].Start < segs[j].Start
		}
		di := segs[i].End - segs[i].Start
		dj := segs[j].End - segs[j].Start
		if di != dj {
			return di < dj
		}
		return segs[i].chunk < segs[j].chunk
	})

	out := segs[:0]
	for _, seg := range segs {
		if n := len(out); n > 0 {
			last := out[n-1]
			if last.Start == seg.Start && last.End == seg.End && last.Text == seg.Text {
				continue
			}
			if last.Text == seg.Text && seg.Start-last.Start <= duplicateTextWindowSec {
				continue
			}
		}
		out = append(out, seg)
	}
	return out
}

func hasSpeakers(segs []engine.Segment) bool {
	for _, seg := range segs {
		if seg.Speaker != "" {
			return true
		}
	}
	return false
}

// collapseWhitespace reduces all whitespace runs to single spaces.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
