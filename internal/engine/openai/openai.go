// Package openai implements engine.Engine on the OpenAI audio
// transcription API. Slices are encoded as WAV and submitted with
// verbose_json so segment (and optionally word) timings come back.
//
// The engine performs a single attempt per call; retry policy belongs to
// the scheduler, which classifies the sentinel the error wraps.
package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/tamlil/tamlil/internal/engine"
	"github.com/tamlil/tamlil/internal/pcm"
)

var _ engine.Engine = (*Engine)(nil)

// DefaultModel is the transcription model used when none is configured.
const DefaultModel = openai.Whisper1

// audioTranscriber is the slice of the OpenAI client the engine needs.
// Injected in tests.
type audioTranscriber interface {
	CreateTranscription(ctx context.Context, req openai.AudioRequest) (openai.AudioResponse, error)
}

// Engine submits slices to the OpenAI transcription endpoint.
//
// Honored options: Language, InitialPrompt, Temperature, WordTimestamps.
// BeamSize, VADEnabled and SuppressTokens have no API equivalent.
type Engine struct {
	client audioTranscriber
	model  string
}

// Option configures an Engine.
type Option func(*Engine)

// WithModel overrides the transcription model.
func WithModel(model string) Option {
	return func(e *Engine) {
		if model != "" {
			e.model = model
		}
	}
}

// withClient replaces the API client (for tests).
func withClient(c audioTranscriber) Option {
	return func(e *Engine) { e.client = c }
}

// New creates an Engine authenticated with apiKey.
func New(apiKey string, opts ...Option) (*Engine, error) {
	if apiKey == "" {
		return nil, errors.New("openai: api key must not be empty")
	}
	e := &Engine{
		client: openai.NewClient(apiKey),
		model:  DefaultModel,
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

func (e *Engine) ID() string      { return "openai" }
func (e *Engine) ModelID() string { return e.model }

// Concurrent reports true; the API serves parallel requests.
func (e *Engine) Concurrent() bool { return true }

// Transcribe encodes the slice as WAV and performs one API request.
func (e *Engine) Transcribe(ctx context.Context, samples []float32, sampleRate int, opts engine.Options) (engine.Result, error) {
	wav := pcm.EncodeWAV(samples, sampleRate)

	req := openai.AudioRequest{
		Model:    e.model,
		Reader:   bytes.NewReader(wav),
		FilePath: "chunk.wav",
		Format:   openai.AudioResponseFormatVerboseJSON,
		Language: opts.Language,
		Prompt:   opts.InitialPrompt,
	}
	if opts.Temperature > 0 {
		req.Temperature = float32(opts.Temperature)
	}
	if opts.WordTimestamps {
		req.TimestampGranularities = []openai.TranscriptionTimestampGranularity{
			openai.TranscriptionTimestampGranularitySegment,
			openai.TranscriptionTimestampGranularityWord,
		}
	}

	resp, err := e.client.CreateTranscription(ctx, req)
	if err != nil {
		return engine.Result{}, classifyError(err)
	}
	return convertResponse(resp), nil
}

// convertResponse maps the verbose_json payload onto engine types. Word
// timings arrive flat at the response level; they are attached to the
// segment whose span contains them.
func convertResponse(resp openai.AudioResponse) engine.Result {
	res := engine.Result{
		Text:             strings.TrimSpace(resp.Text),
		LanguageDetected: resp.Language,
	}
	for _, seg := range resp.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		out := engine.Segment{
			Start: seg.Start,
			End:   seg.End,
			Text:  text,
		}
		for _, w := range resp.Words {
			if w.Start >= seg.Start && w.Start < seg.End {
				out.Words = append(out.Words, engine.Word{
					Start: w.Start,
					End:   w.End,
					Word:  strings.TrimSpace(w.Word),
				})
			}
		}
		res.Segments = append(res.Segments, out)
	}
	return res
}

// classifyError maps API failures onto the engine sentinels so the
// scheduler can pick a retry policy.
func classifyError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests:
			// Quota exhaustion needs user action; plain rate limits pass.
			if strings.Contains(msg, "quota") || strings.Contains(msg, "billing") {
				return fmt.Errorf("openai: %s: %w", msg, engine.ErrInputRejected)
			}
			return fmt.Errorf("openai: %s: %w", msg, engine.ErrBusy)
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("openai: %s: %w", msg, engine.ErrModelNotLoaded)
		case http.StatusBadRequest, http.StatusNotFound, http.StatusRequestEntityTooLarge:
			return fmt.Errorf("openai: %s: %w", msg, engine.ErrInputRejected)
		case http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return fmt.Errorf("openai: %s: %w", msg, engine.ErrCrash)
		}
		return fmt.Errorf("openai: HTTP %d: %s: %w", apiErr.HTTPStatusCode, msg, engine.ErrCrash)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	// Network-level failure; the API may come back.
	return fmt.Errorf("openai: %w: %v", engine.ErrBusy, err)
}
