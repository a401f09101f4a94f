package timeline

import (
	"strings"

	"github.com/tamlil/tamlil/internal/engine"
)

// buildBlocks groups consecutive same-speaker segments into blocks. A
// speaker change, or a silence longer than turnGapSec between segments,
// starts a new block.
func buildBlocks(segs []engine.Segment, turnGapSec float64) []Block {
	var blocks []Block
	var cur *Block
	var texts []string

	flush := func() {
		if cur != nil {
			cur.Text = collapseWhitespace(strings.Join(texts, " "))
			blocks = append(blocks, *cur)
			cur = nil
			texts = nil
		}
	}

	for _, seg := range segs {
		speaker := seg.Speaker
		if speaker == "" {
			speaker = "SPEAKER_1"
		}
		if cur != nil && (cur.Speaker != speaker || seg.Start-cur.End > turnGapSec) {
			flush()
		}
		if cur == nil {
			cur = &Block{Speaker: speaker, Start: seg.Start, End: seg.End}
		}
		if seg.End > cur.End {
			cur.End = seg.End
		}
		texts = append(texts, seg.Text)
	}
	flush()

	return blocks
}
