// Package schedule drives the worker pool that transcribes planned chunks.
//
// Chunks are fed to W workers in index order through a bounded queue.
// Every status transition is persisted through the chunk store before and
// after each attempt, so a crash at any point is recoverable from disk
// alone. Failures are classified and retried per the fault policy; when
// too many chunks fail, or a fatal failure kind appears, the whole run
// aborts.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tamlil/tamlil/internal/engine"
	"github.com/tamlil/tamlil/internal/faults"
	"github.com/tamlil/tamlil/internal/pcm"
	"github.com/tamlil/tamlil/internal/plan"
	"github.com/tamlil/tamlil/internal/store"
)

// Defaults for Config fields left zero.
const (
	DefaultWorkers     = 4
	DefaultCancelGrace = 30 * time.Second
)

// Sink receives scheduling progress events. Implementations must be safe
// for concurrent use.
type Sink interface {
	ChunkStarted(index, attempt int)
	ChunkResolved(res *store.ChunkResult)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) ChunkStarted(int, int)            {}
func (NopSink) ChunkResolved(*store.ChunkResult) {}

// Config parameterizes a Scheduler.
type Config struct {
	// Workers is the pool size. Zero means DefaultWorkers.
	Workers int

	// ChunkTimeout bounds one engine attempt. Zero disables the bound.
	ChunkTimeout time.Duration

	// CancelGrace is how long in-flight engine calls may keep running
	// after the run is canceled. Zero means DefaultCancelGrace.
	CancelGrace time.Duration

	// FailThreshold is the failed-chunk fraction beyond which the run
	// aborts. Zero means faults.DefaultFailThresholdFraction.
	FailThreshold float64

	// Policy decides retry, skip, or abort per failure. Zero value is
	// replaced by faults.DefaultPolicy.
	Policy faults.Policy

	// EngineOpts is passed to every Transcribe call.
	EngineOpts engine.Options
}

func (c *Config) fillDefaults() {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.CancelGrace <= 0 {
		c.CancelGrace = DefaultCancelGrace
	}
	if c.FailThreshold <= 0 {
		c.FailThreshold = faults.DefaultFailThresholdFraction
	}
	if c.Policy == (faults.Policy{}) {
		c.Policy = faults.DefaultPolicy()
	}
}

// Scheduler runs one audio source through one engine.
type Scheduler struct {
	eng    engine.Engine
	audio  *pcm.Buffer
	chunks *store.Store
	sink   Sink
	log    *slog.Logger
	cfg    Config

	// serial guards Transcribe when the engine is not concurrent.
	serial sync.Mutex

	failed atomic.Int64
}

// New builds a Scheduler. A nil sink or logger is replaced by a no-op.
func New(eng engine.Engine, audio *pcm.Buffer, chunks *store.Store, sink Sink, log *slog.Logger, cfg Config) *Scheduler {
	if sink == nil {
		sink = NopSink{}
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	cfg.fillDefaults()
	return &Scheduler{
		eng:    eng,
		audio:  audio,
		chunks: chunks,
		sink:   sink,
		log:    log,
		cfg:    cfg,
	}
}

// Run processes all chunks and sends every resolved result (including
// ones already resolved by a previous run) to out. Workers start chunks
// in index order; completion order is arbitrary. Run closes out before
// returning. A nil error means every chunk resolved; the results may
// still include Skipped chunks.
func (s *Scheduler) Run(ctx context.Context, chunks []plan.Chunk, out chan<- *store.ChunkResult) error {
	defer close(out)
	if len(chunks) == 0 {
		return nil
	}

	total := len(chunks)
	maxFailed := int64(float64(total) * s.cfg.FailThreshold)

	g, gctx := errgroup.WithContext(ctx)
	queue := make(chan plan.Chunk, 2*s.cfg.Workers)

	g.Go(func() error {
		defer close(queue)
		for _, chunk := range chunks {
			select {
			case queue <- chunk:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for w := 0; w < s.cfg.Workers; w++ {
		g.Go(func() error {
			for chunk := range queue {
				res, err := s.process(gctx, chunk)
				if err != nil {
					return err
				}

				if res.Status != store.StatusCompleted {
					if failed := s.failed.Add(1); failed > maxFailed {
						s.log.Error("aborting run",
							"failed_chunks", failed,
							"total_chunks", total,
							"threshold", s.cfg.FailThreshold)
						return fmt.Errorf("%w: %d of %d chunks", ErrTooManyFailures, failed, total)
					}
				}

				s.sink.ChunkResolved(res)
				select {
				case out <- res:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}

	return g.Wait()
}

// process resolves one chunk: reuse a prior resolution, or run the
// attempt loop until the chunk is Completed, Skipped, or the run aborts.
func (s *Scheduler) process(ctx context.Context, chunk plan.Chunk) (*store.ChunkResult, error) {
	res, err := s.chunks.Read(chunk.Index)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		res = &store.ChunkResult{
			Index:      chunk.Index,
			ChunkStart: chunk.Start,
			ChunkEnd:   chunk.End,
			Status:     store.StatusPending,
		}
	case err != nil:
		return nil, err
	case res.Status == store.StatusCompleted || res.Status == store.StatusSkipped:
		// Resolved by a previous run.
		return res, nil
	}

	for {
		res.Attempts++
		res.Status = store.StatusProcessing
		now := time.Now().UTC()
		res.StartedAt = now
		res.FinishedAt = nil
		res.ErrorKind = ""
		if err := s.chunks.Write(res); err != nil {
			return nil, err
		}
		s.sink.ChunkStarted(res.Index, res.Attempts)

		attemptErr := s.attempt(ctx, chunk, res)
		if attemptErr == nil {
			res.Status = store.StatusCompleted
			finished := time.Now().UTC()
			res.FinishedAt = &finished
			if err := s.chunks.Write(res); err != nil {
				return nil, err
			}
			return res, nil
		}

		// Run-level cancellation: leave the chunk Processing on disk;
		// the resume scan resets it to Pending.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		kind := faults.Classify(attemptErr)
		decision := s.cfg.Policy.Decide(kind, res.Attempts)
		s.log.Warn("chunk attempt failed",
			"chunk", res.Index,
			"attempt", res.Attempts,
			"kind", kind.String(),
			"decision", decision.String(),
			"error", attemptErr)

		switch decision {
		case faults.Retry:
			delay := s.cfg.Policy.Backoff(res.Attempts)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}

		case faults.Skip:
			res.Status = store.StatusSkipped
			res.ErrorKind = kind.String()
			finished := time.Now().UTC()
			res.FinishedAt = &finished
			if err := s.chunks.Write(res); err != nil {
				return nil, err
			}
			return res, nil

		default: // faults.Abort
			res.Status = store.StatusFailed
			res.ErrorKind = kind.String()
			finished := time.Now().UTC()
			res.FinishedAt = &finished
			if err := s.chunks.Write(res); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("chunk %d: %s: %w", res.Index, kind, attemptErr)
		}
	}
}

// attempt performs one engine call and, on success, stores the segments
// shifted to absolute source time on res.
func (s *Scheduler) attempt(ctx context.Context, chunk plan.Chunk, res *store.ChunkResult) error {
	slice := s.audio.Slice(chunk.Start, chunk.End)

	result, err := s.transcribe(ctx, slice)
	if err != nil {
		return err
	}

	res.EngineID = s.eng.ID()
	res.ModelID = s.eng.ModelID()
	res.Segments = shiftSegments(result.Segments, chunk.Start)
	return nil
}

// transcribe runs one engine attempt. The engine context is detached from
// run cancellation: when the run is canceled, the in-flight call gets
// CancelGrace to finish before it is cut off, so a nearly-done chunk can
// still be persisted Completed.
func (s *Scheduler) transcribe(ctx context.Context, slice []float32) (engine.Result, error) {
	engCtx := context.WithoutCancel(ctx)
	var cancel context.CancelFunc
	if s.cfg.ChunkTimeout > 0 {
		engCtx, cancel = context.WithTimeout(engCtx, s.cfg.ChunkTimeout)
	} else {
		engCtx, cancel = context.WithCancel(engCtx)
	}
	defer cancel()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			timer := time.NewTimer(s.cfg.CancelGrace)
			defer timer.Stop()
			select {
			case <-timer.C:
				cancel()
			case <-done:
			}
		case <-done:
		}
	}()

	if !s.eng.Concurrent() {
		s.serial.Lock()
		defer s.serial.Unlock()
	}
	return s.eng.Transcribe(engCtx, slice, s.audio.SampleRate(), s.cfg.EngineOpts)
}

// shiftSegments rebases slice-relative times onto absolute source time.
func shiftSegments(segs []engine.Segment, offset float64) []engine.Segment {
	out := make([]engine.Segment, len(segs))
	for i, seg := range segs {
		seg.Start += offset
		seg.End += offset
		if len(seg.Words) > 0 {
			words := make([]engine.Word, len(seg.Words))
			for j, w := range seg.Words {
				w.Start += offset
				w.End += offset
				words[j] = w
			}
			seg.Words = words
		}
		out[i] = seg
	}
	return out
}
