package output

import (
	"bytes"
	"fmt"

	"github.com/fumiama/go-docx"

	"github.com/tamlil/tamlil/internal/atomicfile"
	"github.com/tamlil/tamlil/internal/format"
)

// writeDOCX renders the transcript as a Word document. For RTL languages
// paragraphs are right-justified; go-docx exposes no direction property,
// so justification is the portable approximation.
func writeDOCX(path string, doc *Document, rtl bool) error {
	w := docx.New().WithDefaultTheme()

	justify := func(p *docx.Paragraph) {
		if rtl {
			p.Justification("right")
		}
	}

	title := w.AddParagraph()
	title.AddText(fmt.Sprintf("Transcript %s", doc.RunID)).Size("32").Bold()
	justify(title)

	if len(doc.SpeakerBlocks) > 0 {
		for _, block := range doc.SpeakerBlocks {
			head := w.AddParagraph()
			head.AddText(fmt.Sprintf("%s [%s - %s]",
				block.Speaker,
				format.Seconds(block.Start),
				format.Seconds(block.End))).Bold()
			justify(head)

			body := w.AddParagraph()
			body.AddText(block.Text)
			justify(body)
		}
	} else {
		body := w.AddParagraph()
		body.AddText(doc.FullText)
		justify(body)
	}

	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return fmt.Errorf("render docx: %w", err)
	}
	if err := atomicfile.WriteFile(path, buf.Bytes(), outputFilePerm); err != nil {
		return fmt.Errorf("write transcript.docx: %w", err)
	}
	return nil
}
