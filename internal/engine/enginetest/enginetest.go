// Package enginetest provides a scripted in-memory engine for exercising
// the scheduler and run coordinator without native models or networks.
package enginetest

import (
	"context"
	"sync"

	"github.com/tamlil/tamlil/internal/engine"
)

var _ engine.Engine = (*Fake)(nil)

// Call records one Transcribe invocation.
type Call struct {
	Samples    int
	SampleRate int
	Opts       engine.Options
}

// Fake is a scripted engine. The zero value succeeds every call with an
// empty result. Configure Transcriber, or use FailTimes, to shape
// behavior. Safe for concurrent use.
type Fake struct {
	// IDName and ModelName default to "fake" / "fake-model" when empty.
	IDName    string
	ModelName string

	// Parallel is returned by Concurrent.
	Parallel bool

	// Transcriber, when set, handles every call. The attempt counter is
	// 1-based and global across all calls.
	Transcriber func(ctx context.Context, attempt int, pcm []float32, sampleRate int, opts engine.Options) (engine.Result, error)

	mu    sync.Mutex
	calls []Call
}

func (f *Fake) ID() string {
	if f.IDName == "" {
		return "fake"
	}
	return f.IDName
}

func (f *Fake) ModelID() string {
	if f.ModelName == "" {
		return "fake-model"
	}
	return f.ModelName
}

func (f *Fake) Concurrent() bool { return f.Parallel }

func (f *Fake) Transcribe(ctx context.Context, pcm []float32, sampleRate int, opts engine.Options) (engine.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Samples: len(pcm), SampleRate: sampleRate, Opts: opts})
	attempt := len(f.calls)
	fn := f.Transcriber
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return engine.Result{}, err
	}
	if fn == nil {
		return engine.Result{}, nil
	}
	return fn(ctx, attempt, pcm, sampleRate, opts)
}

// Calls returns a copy of all recorded invocations.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallCount returns the number of Transcribe invocations so far.
func (f *Fake) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// FailTimes returns a Transcriber that fails the first n calls with err,
// then succeeds with result.
func FailTimes(n int, err error, result engine.Result) func(context.Context, int, []float32, int, engine.Options) (engine.Result, error) {
	return func(_ context.Context, attempt int, _ []float32, _ int, _ engine.Options) (engine.Result, error) {
		if attempt <= n {
			return engine.Result{}, err
		}
		return result, nil
	}
}

// Speak returns a Transcriber that yields one segment spanning the whole
// slice with the given text, regardless of input.
func Speak(text string) func(context.Context, int, []float32, int, engine.Options) (engine.Result, error) {
	return func(_ context.Context, _ int, pcm []float32, sampleRate int, _ engine.Options) (engine.Result, error) {
		end := 0.0
		if sampleRate > 0 {
			end = float64(len(pcm)) / float64(sampleRate)
		}
		return engine.Result{
			Segments: []engine.Segment{{Start: 0, End: end, Text: text}},
			Text:     text,
		}, nil
	}
}
