package output_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamlil/tamlil/internal/engine"
	"github.com/tamlil/tamlil/internal/output"
	"github.com/tamlil/tamlil/internal/timeline"
)

func sampleTimeline() *timeline.Timeline {
	return &timeline.Timeline{
		Segments: []engine.Segment{
			{Start: 0.5, End: 4.0, Text: "שלום לכולם", Speaker: "SPEAKER_1"},
			{Start: 5.0, End: 9.0, Text: "ברוכים הבאים", Speaker: "SPEAKER_2"},
		},
		FullText: "שלום לכולם ברוכים הבאים",
		SpeakerBlocks: []timeline.Block{
			{Speaker: "SPEAKER_1", Start: 0.5, End: 4.0, Text: "שלום לכולם"},
			{Speaker: "SPEAKER_2", Start: 5.0, End: 9.0, Text: "ברוכים הבאים"},
		},
	}
}

func sampleDocument() *output.Document {
	return output.NewDocument(
		"20260824_101500_ab12cd34",
		output.Source{Path: "/audio/shiur.wav", DurationSec: 9.5},
		map[string]any{"engine": "whispercpp", "language": "he"},
		sampleTimeline(),
	)
}

func TestNewDocumentTotals(t *testing.T) {
	t.Parallel()

	doc := sampleDocument()
	assert.Equal(t, 4, doc.Totals.Words)
	assert.Equal(t, len([]rune("שלום לכולם ברוכים הבאים")), doc.Totals.Chars)
	assert.Equal(t, 9.5, doc.Totals.DurationSec)
}

func TestWriteJSON(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, output.Write(dir, sampleDocument(), output.Options{Formats: []string{output.FormatJSON}}))

	data, err := os.ReadFile(filepath.Join(dir, "transcript.json"))
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))

	assert.Equal(t, "20260824_101500_ab12cd34", got["run_id"])
	assert.Contains(t, got, "source")
	assert.Contains(t, got, "config_snapshot")
	assert.Contains(t, got, "segments")
	assert.Contains(t, got, "speaker_blocks")
	assert.Contains(t, got, "full_text")
	assert.Contains(t, got, "totals")

	segs := got["segments"].([]any)
	require.Len(t, segs, 2)
	first := segs[0].(map[string]any)
	assert.Equal(t, 0.5, first["start_sec"])
	assert.Equal(t, "שלום לכולם", first["text"])
}

func TestWriteJSONOmitsEmptySpeakerBlocks(t *testing.T) {
	t.Parallel()

	tl := sampleTimeline()
	tl.SpeakerBlocks = nil
	doc := output.NewDocument("run", output.Source{}, nil, tl)

	dir := t.TempDir()
	require.NoError(t, output.Write(dir, doc, output.Options{Formats: []string{output.FormatJSON}}))

	data, err := os.ReadFile(filepath.Join(dir, "transcript.json"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "speaker_blocks")
}

func TestWriteTXTWithSpeakers(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, output.Write(dir, sampleDocument(), output.Options{Formats: []string{output.FormatTXT}}))

	data, err := os.ReadFile(filepath.Join(dir, "transcript.txt"))
	require.NoError(t, err)
	text := string(data)

	assert.Contains(t, text, "SPEAKER_1 [00:00.500 - 00:04.000]:")
	assert.Contains(t, text, "שלום לכולם")
	assert.Contains(t, text, "SPEAKER_2")
}

func TestWriteTXTWithoutSpeakers(t *testing.T) {
	t.Parallel()

	tl := sampleTimeline()
	tl.SpeakerBlocks = nil
	doc := output.NewDocument("run", output.Source{DurationSec: 9.5}, nil, tl)

	dir := t.TempDir()
	require.NoError(t, output.Write(dir, doc, output.Options{Formats: []string{output.FormatTXT}}))

	data, err := os.ReadFile(filepath.Join(dir, "transcript.txt"))
	require.NoError(t, err)
	assert.Equal(t, "שלום לכולם ברוכים הבאים\n", string(data))
}

func TestWriteDOCX(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, output.Write(dir, sampleDocument(), output.Options{
		Formats: []string{output.FormatDOCX},
		RTL:     true,
	}))

	info, err := os.Stat(filepath.Join(dir, "transcript.docx"))
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	// DOCX files are zip containers.
	data, err := os.ReadFile(filepath.Join(dir, "transcript.docx"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "PK"), "not a zip container")
}

func TestWriteAllFormats(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, output.Write(dir, sampleDocument(), output.Options{
		Formats: []string{output.FormatJSON, output.FormatTXT, output.FormatDOCX},
		RTL:     true,
	}))

	for _, name := range []string{"transcript.json", "transcript.txt", "transcript.docx"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
}

func TestWriteUnknownFormat(t *testing.T) {
	t.Parallel()

	err := output.Write(t.TempDir(), sampleDocument(), output.Options{Formats: []string{"pdf"}})
	assert.True(t, errors.Is(err, output.ErrUnknownFormat))
}

func TestWriteDefaultsToJSONAndTXT(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, output.Write(dir, sampleDocument(), output.Options{}))

	_, err := os.Stat(filepath.Join(dir, "transcript.json"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "transcript.txt"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "transcript.docx"))
	assert.True(t, os.IsNotExist(err))
}
