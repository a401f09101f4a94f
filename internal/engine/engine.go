// Package engine defines the uniform capability all speech-recognition
// back-ends provide: transcribe a PCM slice into timestamped segments.
//
// Segment times returned by an engine are relative to the start of the
// slice it was given; the scheduler shifts them to absolute source time
// before persisting. Concrete engines live in subpackages and are chosen
// by configuration, never by type inspection. An engine that holds native
// resources additionally implements io.Closer.
package engine

import "context"

// Word is a single recognized word with its timing and probability.
type Word struct {
	Start       float64 `json:"start_sec"`
	End         float64 `json:"end_sec"`
	Word        string  `json:"word"`
	Probability float64 `json:"probability"`
}

// Segment is a timestamped text span produced by a recognizer.
type Segment struct {
	Start      float64 `json:"start_sec"`
	End        float64 `json:"end_sec"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence,omitempty"`
	Words      []Word  `json:"words,omitempty"`
	Speaker    string  `json:"speaker,omitempty"`
}

// Result is the outcome of transcribing one PCM slice.
type Result struct {
	Segments         []Segment
	Text             string
	LanguageDetected string
	Diagnostics      map[string]string
}

// Options carries the recognized engine options. Every engine documents
// which subset it honors; unrecognized options are silently ignored so
// that the caller never branches on the engine variant.
type Options struct {
	// Language is the ISO 639-1 code of the expected speech language.
	Language string

	// BeamSize sets the decoder beam width. Zero means engine default.
	BeamSize int

	// VADEnabled asks the engine to skip non-speech regions.
	VADEnabled bool

	// WordTimestamps asks for per-word timings in the returned segments.
	WordTimestamps bool

	// InitialPrompt seeds the decoder with domain vocabulary or context.
	InitialPrompt string

	// Temperature controls decoder sampling. Zero means greedy/default.
	Temperature float64

	// SuppressTokens lists token ids the decoder must never emit.
	SuppressTokens []int
}

// Engine transcribes PCM audio slices.
//
// Implementations are not assumed to be safe for concurrent use unless
// they document it; the scheduler serializes calls per engine instance
// when the engine does not declare concurrency.
type Engine interface {
	// ID returns the configured engine identifier (for manifests and logs).
	ID() string

	// ModelID returns the identifier of the loaded model.
	ModelID() string

	// Concurrent reports whether Transcribe may be called from multiple
	// workers at once.
	Concurrent() bool

	// Transcribe converts a mono PCM slice at the given sample rate into
	// segments with slice-relative times. An empty result with no error
	// means the slice contained no recognizable speech.
	Transcribe(ctx context.Context, pcm []float32, sampleRate int, opts Options) (Result, error)
}
