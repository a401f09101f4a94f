// Package whisperserver implements engine.Engine against a running
// whisper-server binary (the whisper.cpp example server), which exposes a
// batch REST API at POST /inference. Each slice is wrapped in a WAV
// container and submitted as multipart/form-data with
// response_format=verbose_json so segment timings come back.
package whisperserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tamlil/tamlil/internal/engine"
	"github.com/tamlil/tamlil/internal/pcm"
)

var _ engine.Engine = (*Engine)(nil)

// defaultRequestTimeout bounds a single inference round-trip. Long chunks
// on slow hardware can take minutes.
const defaultRequestTimeout = 5 * time.Minute

// Engine submits slices to a whisper-server instance.
//
// Honored options: Language, Temperature. BeamSize, VADEnabled,
// WordTimestamps, InitialPrompt and SuppressTokens are decided by the
// flags the server was started with.
type Engine struct {
	serverURL  string
	model      string
	httpClient *http.Client
}

// Option configures an Engine.
type Option func(*Engine)

// WithModel sets the model identifier forwarded to the server. When empty
// the server uses whichever model it was started with.
func WithModel(model string) Option {
	return func(e *Engine) { e.model = model }
}

// WithHTTPClient replaces the default client (for tests).
func WithHTTPClient(c *http.Client) Option {
	return func(e *Engine) { e.httpClient = c }
}

// New creates an Engine for the server at serverURL, e.g.
// "http://localhost:8080".
func New(serverURL string, opts ...Option) (*Engine, error) {
	if serverURL == "" {
		return nil, errors.New("whisperserver: serverURL must not be empty")
	}
	e := &Engine{
		serverURL:  strings.TrimRight(serverURL, "/"),
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

func (e *Engine) ID() string { return "whisperserver" }

// ModelID returns the configured model name, or "server-default" when the
// server decides.
func (e *Engine) ModelID() string {
	if e.model == "" {
		return "server-default"
	}
	return e.model
}

// Concurrent reports true; the server queues requests itself.
func (e *Engine) Concurrent() bool { return true }

// Transcribe encodes the slice as WAV and POSTs it to /inference.
func (e *Engine) Transcribe(ctx context.Context, samples []float32, sampleRate int, opts engine.Options) (engine.Result, error) {
	wav := pcm.EncodeWAV(samples, sampleRate)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "chunk.wav")
	if err != nil {
		return engine.Result{}, fmt.Errorf("whisperserver: create form file: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return engine.Result{}, fmt.Errorf("whisperserver: write wav: %w", err)
	}

	fields := map[string]string{
		"response_format": "verbose_json",
	}
	if opts.Language != "" {
		fields["language"] = opts.Language
	}
	if e.model != "" {
		fields["model"] = e.model
	}
	if opts.Temperature > 0 {
		fields["temperature"] = strconv.FormatFloat(opts.Temperature, 'f', -1, 64)
	}
	for name, value := range fields {
		if err := mw.WriteField(name, value); err != nil {
			return engine.Result{}, fmt.Errorf("whisperserver: write field %s: %w", name, err)
		}
	}
	if err := mw.Close(); err != nil {
		return engine.Result{}, fmt.Errorf("whisperserver: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.serverURL+"/inference", &body)
	if err != nil {
		return engine.Result{}, fmt.Errorf("whisperserver: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := e.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return engine.Result{}, ctx.Err()
		}
		// Connection refused, reset, DNS: the server may come back.
		return engine.Result{}, fmt.Errorf("whisperserver: %w: %v", engine.ErrBusy, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return engine.Result{}, fmt.Errorf("whisperserver: read response: %w: %v", engine.ErrCrash, err)
	}
	if resp.StatusCode != http.StatusOK {
		return engine.Result{}, classifyStatus(resp.StatusCode, data)
	}

	return parseVerboseJSON(data)
}

// classifyStatus maps server HTTP errors onto the engine sentinels.
func classifyStatus(code int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	switch {
	case code == http.StatusTooManyRequests || code == http.StatusServiceUnavailable:
		return fmt.Errorf("whisperserver: HTTP %d: %s: %w", code, msg, engine.ErrBusy)
	case code >= 500:
		return fmt.Errorf("whisperserver: HTTP %d: %s: %w", code, msg, engine.ErrCrash)
	default:
		return fmt.Errorf("whisperserver: HTTP %d: %s: %w", code, msg, engine.ErrInputRejected)
	}
}

// verboseResponse is the verbose_json shape whisper-server returns.
type verboseResponse struct {
	Language string `json:"language"`
	Text     string `json:"text"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

func parseVerboseJSON(data []byte) (engine.Result, error) {
	var vr verboseResponse
	if err := json.Unmarshal(data, &vr); err != nil {
		return engine.Result{}, fmt.Errorf("whisperserver: parse response: %w: %v", engine.ErrCrash, err)
	}

	res := engine.Result{
		Text:             strings.TrimSpace(vr.Text),
		LanguageDetected: vr.Language,
	}
	for _, seg := range vr.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		res.Segments = append(res.Segments, engine.Segment{
			Start: seg.Start,
			End:   seg.End,
			Text:  text,
		})
	}
	return res, nil
}
