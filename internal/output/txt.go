package output

import (
	"fmt"
	"strings"

	"github.com/tamlil/tamlil/internal/atomicfile"
	"github.com/tamlil/tamlil/internal/format"
)

// writeTXT renders the plain-text transcript. With speaker blocks each
// block becomes a labeled paragraph; without them the full text is
// written as one body.
func writeTXT(path string, doc *Document) error {
	var b strings.Builder

	if len(doc.SpeakerBlocks) > 0 {
		for i, block := range doc.SpeakerBlocks {
			if i > 0 {
				b.WriteString("\n")
			}
			fmt.Fprintf(&b, "%s [%s - %s]:\n%s\n",
				block.Speaker,
				format.Seconds(block.Start),
				format.Seconds(block.End),
				block.Text)
		}
	} else {
		b.WriteString(doc.FullText)
		b.WriteString("\n")
	}

	if err := atomicfile.WriteFile(path, []byte(b.String()), outputFilePerm); err != nil {
		return fmt.Errorf("write transcript.txt: %w", err)
	}
	return nil
}
