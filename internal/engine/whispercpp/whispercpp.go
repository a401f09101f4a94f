// Package whispercpp implements engine.Engine on the whisper.cpp CGO
// bindings. The whisper.cpp static library (libwhisper.a) and headers
// (whisper.h) must be available at link time via LIBRARY_PATH and
// C_INCLUDE_PATH.
//
// The model is loaded once and shared; each Transcribe call creates its
// own whisper context, so calls may run concurrently.
package whispercpp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/tamlil/tamlil/internal/engine"
)

var _ engine.Engine = (*Engine)(nil)

// Engine transcribes locally through a loaded whisper.cpp model.
//
// Honored options: Language, BeamSize, InitialPrompt, Temperature,
// WordTimestamps. VADEnabled and SuppressTokens are ignored because the
// bindings expose no equivalent.
type Engine struct {
	model   whisperlib.Model
	modelID string
	threads uint
}

// Option configures an Engine.
type Option func(*Engine)

// WithThreads sets the number of decoder threads per inference. Zero
// leaves the whisper.cpp default.
func WithThreads(n uint) Option {
	return func(e *Engine) { e.threads = n }
}

// New loads the whisper.cpp model at modelPath. The caller must Close
// the engine to release native memory.
func New(modelPath string, opts ...Option) (*Engine, error) {
	if modelPath == "" {
		return nil, fmt.Errorf("whispercpp: %w: empty model path", engine.ErrModelNotLoaded)
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whispercpp: load %q: %w: %v", modelPath, engine.ErrModelNotLoaded, err)
	}

	e := &Engine{
		model:   model,
		modelID: strings.TrimSuffix(filepath.Base(modelPath), filepath.Ext(modelPath)),
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

func (e *Engine) ID() string      { return "whispercpp" }
func (e *Engine) ModelID() string { return e.modelID }

// Concurrent reports true: whisper contexts are per-call, only the model
// weights are shared.
func (e *Engine) Concurrent() bool { return true }

// Close releases the model.
func (e *Engine) Close() error {
	if e.model == nil {
		return nil
	}
	err := e.model.Close()
	e.model = nil
	return err
}

// Transcribe runs one batch inference over the slice. Times in the
// returned segments are relative to the slice start.
func (e *Engine) Transcribe(ctx context.Context, pcm []float32, sampleRate int, opts engine.Options) (engine.Result, error) {
	if e.model == nil {
		return engine.Result{}, fmt.Errorf("whispercpp: %w", engine.ErrModelNotLoaded)
	}
	if sampleRate != whisperlib.SampleRate {
		return engine.Result{}, fmt.Errorf("whispercpp: %w: sample rate %d, want %d",
			engine.ErrInputRejected, sampleRate, whisperlib.SampleRate)
	}
	if err := ctx.Err(); err != nil {
		return engine.Result{}, err
	}

	wctx, err := e.model.NewContext()
	if err != nil {
		return engine.Result{}, fmt.Errorf("whispercpp: create context: %w: %v", engine.ErrCrash, err)
	}

	if opts.Language != "" {
		if err := wctx.SetLanguage(opts.Language); err != nil {
			return engine.Result{}, fmt.Errorf("whispercpp: language %q: %w: %v",
				opts.Language, engine.ErrInputRejected, err)
		}
	}
	if e.threads > 0 {
		wctx.SetThreads(e.threads)
	}
	if opts.BeamSize > 0 {
		wctx.SetBeamSize(opts.BeamSize)
	}
	if opts.InitialPrompt != "" {
		wctx.SetInitialPrompt(opts.InitialPrompt)
	}
	if opts.Temperature > 0 {
		wctx.SetTemperature(float32(opts.Temperature))
	}
	wctx.SetTokenTimestamps(opts.WordTimestamps)

	if err := wctx.Process(pcm, nil, nil, nil); err != nil {
		return engine.Result{}, fmt.Errorf("whispercpp: process: %w: %v", engine.ErrCrash, err)
	}

	var res engine.Result
	res.LanguageDetected = wctx.DetectedLanguage()
	var texts []string
	for {
		seg, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return engine.Result{}, fmt.Errorf("whispercpp: read segment: %w: %v", engine.ErrCrash, err)
		}
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		out := engine.Segment{
			Start: seg.Start.Seconds(),
			End:   seg.End.Seconds(),
			Text:  text,
		}
		if opts.WordTimestamps {
			out.Words = convertTokens(seg.Tokens)
		}
		if c, ok := tokenConfidence(seg.Tokens); ok {
			out.Confidence = c
		}
		res.Segments = append(res.Segments, out)
		texts = append(texts, text)
	}
	res.Text = strings.Join(texts, " ")
	return res, nil
}

// convertTokens turns whisper tokens into word timings, skipping special
// tokens such as [_BEG_].
func convertTokens(tokens []whisperlib.Token) []engine.Word {
	var words []engine.Word
	for _, tok := range tokens {
		text := strings.TrimSpace(tok.Text)
		if text == "" || strings.HasPrefix(text, "[_") {
			continue
		}
		words = append(words, engine.Word{
			Start:       tok.Start.Seconds(),
			End:         tok.End.Seconds(),
			Word:        text,
			Probability: float64(tok.P),
		})
	}
	return words
}

// tokenConfidence averages token probabilities over a segment.
func tokenConfidence(tokens []whisperlib.Token) (float64, bool) {
	if len(tokens) == 0 {
		return 0, false
	}
	var sum float64
	for _, tok := range tokens {
		sum += float64(tok.P)
	}
	return sum / float64(len(tokens)), true
}
