// Package output writes the sealed timeline to its final artifacts. Each
// enabled format gets the same Document; writers run in parallel and every
// file is produced by temp-file + rename so readers never observe a
// partial artifact.
package output

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/tamlil/tamlil/internal/engine"
	"github.com/tamlil/tamlil/internal/timeline"
)

// ErrUnknownFormat indicates a configured output format has no writer.
var ErrUnknownFormat = errors.New("unknown output format")

// Known format names, as configured in output.formats.
const (
	FormatJSON = "json"
	FormatTXT  = "txt"
	FormatDOCX = "docx"
)

const (
	outputDirPerm  = 0o750
	outputFilePerm = 0o644
)

// Source describes the transcribed input.
type Source struct {
	Path        string  `json:"path"`
	DurationSec float64 `json:"duration_sec"`
}

// Totals summarizes the transcript volume.
type Totals struct {
	Words       int     `json:"words"`
	Chars       int     `json:"chars"`
	DurationSec float64 `json:"duration_sec"`
}

// Document is the final transcript artifact, shared by all writers.
type Document struct {
	RunID          string           `json:"run_id"`
	Source         Source           `json:"source"`
	ConfigSnapshot map[string]any   `json:"config_snapshot"`
	Segments       []engine.Segment `json:"segments"`
	SpeakerBlocks  []timeline.Block `json:"speaker_blocks,omitempty"`
	FullText       string           `json:"full_text"`
	Totals         Totals           `json:"totals"`
}

// NewDocument seals a merged timeline into a Document.
func NewDocument(runID string, source Source, snapshot map[string]any, tl *timeline.Timeline) *Document {
	return &Document{
		RunID:          runID,
		Source:         source,
		ConfigSnapshot: snapshot,
		Segments:       tl.Segments,
		SpeakerBlocks:  tl.SpeakerBlocks,
		FullText:       tl.FullText,
		Totals: Totals{
			Words:       len(strings.Fields(tl.FullText)),
			Chars:       utf8.RuneCountInString(tl.FullText),
			DurationSec: source.DurationSec,
		},
	}
}

// Options configures Write.
type Options struct {
	// Formats selects the writers to run; empty means JSON and TXT.
	Formats []string

	// RTL sets right-to-left paragraph direction in the DOCX writer.
	RTL bool
}

// Write renders doc into dir in every requested format. The directory is
// created if needed. Writers run in parallel; the first failure cancels
// the rest, but files already renamed into place stay.
func Write(dir string, doc *Document, opts Options) error {
	if err := os.MkdirAll(dir, outputDirPerm); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	formats := opts.Formats
	if len(formats) == 0 {
		formats = []string{FormatJSON, FormatTXT}
	}

	var g errgroup.Group
	for _, format := range formats {
		switch format {
		case FormatJSON:
			g.Go(func() error { return writeJSON(filepath.Join(dir, "transcript.json"), doc) })
		case FormatTXT:
			g.Go(func() error { return writeTXT(filepath.Join(dir, "transcript.txt"), doc) })
		case FormatDOCX:
			g.Go(func() error { return writeDOCX(filepath.Join(dir, "transcript.docx"), doc, opts.RTL) })
		default:
			return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
		}
	}
	return g.Wait()
}
