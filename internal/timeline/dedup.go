package timeline

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// nearDuplicateThreshold is the Jaro-Winkler similarity above which two
// tokens count as the same word during seam dedup. Hebrew transcripts vary
// in matres lectionis and final-letter spelling between decoding passes, so
// exact equality alone misses real duplicates.
const nearDuplicateThreshold = 0.92

// dedupSeams removes duplicated text across chunk seams. Two cases:
//
//   - A segment marked overlapTail starts in the half of the overlap owned
//     by the earlier chunk. It survives only with the duplicated word run
//     stripped from its front; if no words are shared, or nothing remains,
//     it is dropped as redundant coverage.
//   - Any other segment that directly follows one from a different chunk
//     has its leading word-n-gram stripped when the previous segment ends
//     with the same run of at least minNgram words.
//
// Timing is never altered; only text is trimmed.
func dedupSeams(segs []taggedSegment, minNgram int) []taggedSegment {
	out := segs[:0]
	for _, seg := range segs {
		prev := lastFromOtherChunk(out, seg.chunk)

		if seg.overlapTail {
			if prev == nil {
				// Nothing on the earlier side to duplicate; keep whole.
				out = append(out, seg)
				continue
			}
			stripped, matched := stripDuplicatePrefix(prev.Text, seg.Text, 1)
			if !matched || stripped == "" {
				continue
			}
			seg.Text = stripped
			out = append(out, seg)
			continue
		}

		if prev != nil && minNgram > 0 {
			if stripped, matched := stripDuplicatePrefix(prev.Text, seg.Text, minNgram); matched {
				if stripped == "" {
					continue
				}
				seg.Text = stripped
			}
		}
		out = append(out, seg)
	}
	return out
}

// lastFromOtherChunk returns the last kept segment when it originated from
// a different chunk than the current one, else nil.
func lastFromOtherChunk(out []taggedSegment, chunk int) *taggedSegment {
	if n := len(out); n > 0 && out[n-1].chunk != chunk {
		return &out[n-1]
	}
	return nil
}

// stripDuplicatePrefix drops from next's start the longest word sequence of
// length >= minNgram that also ends prev. Reports whether a shared run was
// found; when found, the remaining text (possibly empty) is returned.
func stripDuplicatePrefix(prev, next string, minNgram int) (string, bool) {
	prevWords := strings.Fields(prev)
	nextWords := strings.Fields(next)

	longest := min(len(prevWords), len(nextWords))
	for n := longest; n >= minNgram; n-- {
		if wordsMatch(prevWords[len(prevWords)-n:], nextWords[:n]) {
			return strings.Join(nextWords[n:], " "), true
		}
	}
	return next, false
}

// wordsMatch compares two equal-length word slices, accepting exact matches
// and near-identical spellings.
func wordsMatch(a, b []string) bool {
	for i := range a {
		if a[i] == b[i] {
			continue
		}
		if matchr.JaroWinkler(a[i], b[i], false) < nearDuplicateThreshold {
			return false
		}
	}
	return true
}
