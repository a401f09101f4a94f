// Package run coordinates one transcription run end to end: plan the
// chunks, drive the scheduler, enrich completed chunks with speakers,
// merge the timeline and write the final artifacts. Every run owns a
// directory under the configured root holding its manifest, chunk store,
// logs and output; that directory alone is enough to resume or inspect
// the run.
package run

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tamlil/tamlil/internal/config"
	"github.com/tamlil/tamlil/internal/engine"
	"github.com/tamlil/tamlil/internal/faults"
	"github.com/tamlil/tamlil/internal/ffmpeg"
	"github.com/tamlil/tamlil/internal/lang"
	"github.com/tamlil/tamlil/internal/logging"
	"github.com/tamlil/tamlil/internal/output"
	"github.com/tamlil/tamlil/internal/pcm"
	"github.com/tamlil/tamlil/internal/plan"
	"github.com/tamlil/tamlil/internal/schedule"
	"github.com/tamlil/tamlil/internal/speaker"
	"github.com/tamlil/tamlil/internal/store"
	"github.com/tamlil/tamlil/internal/timeline"
)

const (
	runDirPerm = 0o750

	// convertedName is the WAV produced from non-WAV input, kept inside
	// the run directory so resume never re-converts.
	convertedName = "source.wav"
)

// ExitStatus is the process exit code a finished run maps to.
type ExitStatus int

const (
	ExitSuccess  ExitStatus = 0
	ExitFailed   ExitStatus = 1
	ExitPartial  ExitStatus = 2
	ExitCanceled ExitStatus = 130
)

// Report is the outcome of a run, successful or not.
type Report struct {
	RunID     string
	RunDir    string
	OutputDir string
	Status    ExitStatus
	Counts    Counts
}

// Coordinator wires the pipeline stages together for one or more runs.
type Coordinator struct {
	cfg      *config.Config
	eng      engine.Engine
	diarizer speaker.Provider
	bridge   *ffmpeg.Bridge
	log      *slog.Logger
}

// New builds a Coordinator. diarizer may be nil when speaker attribution
// is disabled; a nil bridge gets a production ffmpeg bridge.
func New(cfg *config.Config, eng engine.Engine, diarizer speaker.Provider, log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Coordinator{
		cfg:      cfg,
		eng:      eng,
		diarizer: diarizer,
		bridge:   ffmpeg.New(),
		log:      log,
	}
}

// Diarizer builds the speaker provider named by the configuration preset.
func Diarizer(cfg config.Speaker) (speaker.Provider, error) {
	switch cfg.Preset {
	case "", "single":
		return speaker.Single{}, nil
	case "energy":
		return &speaker.Energy{}, nil
	case "sherpa":
		return speaker.NewSherpa(speaker.SherpaConfig{
			SegmentationModel: cfg.SegmentationModel,
			EmbeddingModel:    cfg.EmbeddingModel,
		})
	default:
		return nil, fmt.Errorf("unknown speaker preset %q", cfg.Preset)
	}
}

// newRunID mints a sortable, collision-safe run identifier.
func newRunID(now time.Time) string {
	return now.UTC().Format("20060102-150405") + "-" + uuid.NewString()[:8]
}

// Run transcribes source from scratch in a fresh run directory.
func (c *Coordinator) Run(ctx context.Context, source string) (*Report, error) {
	runID := newRunID(time.Now())
	runDir := filepath.Join(c.cfg.Output.RunDirRoot, runID)
	if err := os.MkdirAll(runDir, runDirPerm); err != nil {
		return nil, fmt.Errorf("create run directory: %w", err)
	}

	log, closeLog, err := logging.WithRunFile(c.log, filepath.Join(runDir, "logs", "run.log"), c.cfg.Debug)
	if err != nil {
		return nil, err
	}
	defer func() { _ = closeLog() }()

	audio, err := c.loadAudio(ctx, source, runDir)
	if err != nil {
		return nil, err
	}

	chunks, err := plan.Plan(audio.Duration(), c.cfg.Chunking.ChunkSeconds, c.cfg.Chunking.OverlapSeconds)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(source)
	if err != nil {
		return nil, fmt.Errorf("stat source: %w", err)
	}
	manifest := &Manifest{
		RunID:     runID,
		State:     StateRunning,
		CreatedAt: time.Now().UTC(),
		Source: SourceInfo{
			Path:        source,
			SizeBytes:   info.Size(),
			DurationSec: audio.Duration(),
		},
		EngineID:       c.eng.ID(),
		ModelID:        c.eng.ModelID(),
		Language:       c.cfg.Transcription.Language,
		ChunkSeconds:   c.cfg.Chunking.ChunkSeconds,
		OverlapSeconds: c.cfg.Chunking.OverlapSeconds,
		TotalChunks:    len(chunks),
		Counts:         Counts{Total: len(chunks), Pending: len(chunks)},
		ConfigSnapshot: c.cfg.Snapshot(),
	}
	if err := writeManifest(runDir, manifest); err != nil {
		return nil, err
	}

	st, err := store.New(runDir)
	if err != nil {
		return nil, err
	}

	log.Info("run started",
		"run_id", runID,
		"source", source,
		"duration_sec", audio.Duration(),
		"chunks", len(chunks),
		"engine", c.eng.ID(),
		"model", c.eng.ModelID())

	return c.execute(ctx, log, runDir, manifest, audio, chunks, st)
}

// Resume continues an interrupted run from its directory. Chunks already
// Completed or Skipped are reused as-is; Processing and Failed ones are
// reset and re-scheduled.
func (c *Coordinator) Resume(ctx context.Context, runDir string) (*Report, error) {
	manifest, err := ReadManifest(runDir)
	if err != nil {
		return nil, err
	}

	log, closeLog, err := logging.WithRunFile(c.log, filepath.Join(runDir, "logs", "run.log"), c.cfg.Debug)
	if err != nil {
		return nil, err
	}
	defer func() { _ = closeLog() }()

	audio, err := c.loadAudio(ctx, manifest.Source.Path, runDir)
	if err != nil {
		return nil, err
	}

	// The chunk plan is a pure function of duration and the recorded
	// chunking parameters, so the resumed plan matches the original.
	chunks, err := plan.Plan(audio.Duration(), manifest.ChunkSeconds, manifest.OverlapSeconds)
	if err != nil {
		return nil, err
	}
	if len(chunks) != manifest.TotalChunks {
		return nil, fmt.Errorf("%w: plan has %d chunks, manifest recorded %d",
			ErrManifestMismatch, len(chunks), manifest.TotalChunks)
	}

	st, err := store.New(runDir)
	if err != nil {
		return nil, err
	}
	prior, err := st.Scan()
	if err != nil {
		return nil, err
	}

	resolved := 0
	for _, res := range prior {
		if res.Status.Resolved() {
			resolved++
		}
	}
	log.Info("run resumed",
		"run_id", manifest.RunID,
		"chunks", len(chunks),
		"already_resolved", resolved)

	manifest.State = StateRunning
	if err := writeManifest(runDir, manifest); err != nil {
		return nil, err
	}

	return c.execute(ctx, log, runDir, manifest, audio, chunks, st)
}

// execute drives scheduling through finalization and seals the manifest.
func (c *Coordinator) execute(ctx context.Context, log *slog.Logger, runDir string,
	manifest *Manifest, audio *pcm.Buffer, chunks []plan.Chunk, st *store.Store) (*Report, error) {

	track := newTracker(log, len(chunks))
	stopProgress := make(chan struct{})
	go track.logPeriodically(ctx, stopProgress)
	defer close(stopProgress)

	sched := schedule.New(c.eng, audio, st, track, log, schedule.Config{
		Workers:       c.cfg.Scheduler.MaxWorkers,
		ChunkTimeout:  c.cfg.ChunkTimeout(),
		CancelGrace:   c.cfg.CancelGrace(),
		FailThreshold: c.cfg.Scheduler.FailThresholdFraction,
		Policy: faults.Policy{
			MaxAttempts:       c.cfg.Scheduler.MaxAttempts,
			UnknownMaxRetries: faults.DefaultUnknownMaxRetries,
			BackoffBase:       faults.DefaultBackoffBase,
			BackoffMax:        faults.DefaultBackoffMax,
		},
		EngineOpts: engine.Options{
			Language: lang.BaseCode(c.cfg.Transcription.Language),
		},
	})

	out := make(chan *store.ChunkResult, c.cfg.Scheduler.MaxWorkers)
	coll := newCollector(func(res *store.ChunkResult) {
		log.Debug("chunk sealed", "chunk", res.Index, "status", string(res.Status))
	})
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		coll.drain(out)
	}()

	runErr := sched.Run(ctx, chunks, out)
	<-drained

	results := coll.results()
	manifest.Counts = countResults(results, len(chunks))

	if runErr != nil {
		state, status := StateFailed, ExitFailed
		if ctx.Err() != nil || errors.Is(runErr, context.Canceled) {
			state, status = StateCanceled, ExitCanceled
			log.Info("run canceled", "run_id", manifest.RunID)
		} else {
			log.Error("run failed", "run_id", manifest.RunID, "error", runErr)
		}
		manifest.State = state
		if err := writeManifest(runDir, manifest); err != nil {
			log.Error("manifest write failed", "error", err)
		}
		return &Report{
			RunID:  manifest.RunID,
			RunDir: runDir,
			Status: status,
			Counts: manifest.Counts,
		}, runErr
	}

	if c.cfg.Speaker.Enabled {
		c.attributeSpeakers(ctx, log, audio, results, st)
	}

	tl, err := timeline.Merge(results, timeline.Options{
		Duration:   audio.Duration(),
		TurnGapSec: c.cfg.Speaker.TurnGapSec,
	})
	if err != nil {
		return nil, err
	}

	doc := output.NewDocument(manifest.RunID, output.Source{
		Path:        manifest.Source.Path,
		DurationSec: audio.Duration(),
	}, c.cfg.Snapshot(), tl)

	outputDir := filepath.Join(runDir, "output")
	if err := output.Write(outputDir, doc, output.Options{
		Formats: c.cfg.Output.Formats,
		RTL:     lang.IsRTL(c.cfg.Transcription.Language),
	}); err != nil {
		return nil, err
	}

	if !c.cfg.Output.RetainChunks {
		if err := os.RemoveAll(st.Dir()); err != nil {
			log.Warn("chunk cleanup failed", "error", err)
		}
	}

	state, status := StateCompleted, ExitSuccess
	if manifest.Counts.Skipped > 0 {
		state, status = StatePartial, ExitPartial
	}
	manifest.State = state
	if err := writeManifest(runDir, manifest); err != nil {
		return nil, err
	}

	log.Info("run finished",
		"run_id", manifest.RunID,
		"state", state,
		"completed", manifest.Counts.Completed,
		"skipped", manifest.Counts.Skipped,
		"output", outputDir)

	return &Report{
		RunID:     manifest.RunID,
		RunDir:    runDir,
		OutputDir: outputDir,
		Status:    status,
		Counts:    manifest.Counts,
	}, nil
}

// attributeSpeakers diarizes the full recording and labels the segments
// of every completed chunk, persisting the enriched records. Attribution
// failure degrades to an unattributed transcript, never a failed run.
func (c *Coordinator) attributeSpeakers(ctx context.Context, log *slog.Logger,
	audio *pcm.Buffer, results []*store.ChunkResult, st *store.Store) {

	diarizer := c.diarizer
	if diarizer == nil {
		diarizer = speaker.Single{}
	}

	turns, err := diarizer.Turns(ctx, audio.Slice(0, audio.Duration()), audio.SampleRate())
	if err != nil {
		log.Warn("speaker attribution failed, transcript left unattributed", "error", err)
		return
	}
	turns = speaker.Normalize(turns, audio.Duration())

	for _, res := range results {
		if res.Status != store.StatusCompleted || len(res.Segments) == 0 {
			continue
		}
		res.Segments = speaker.Label(res.Segments, turns)
		if err := st.Write(res); err != nil {
			log.Warn("persisting speaker labels failed", "chunk", res.Index, "error", err)
		}
	}
}

// StatusReport is a read-only view of a run directory.
type StatusReport struct {
	Manifest *Manifest
	Counts   Counts
}

// Status inspects a run directory without mutating it. Chunks found
// Processing on disk are reported as pending work.
func Status(runDir string) (*StatusReport, error) {
	manifest, err := ReadManifest(runDir)
	if err != nil {
		return nil, err
	}

	st, err := store.New(runDir)
	if err != nil {
		return nil, err
	}
	indices, err := st.List()
	if err != nil {
		return nil, err
	}

	counts := Counts{Total: manifest.TotalChunks}
	for _, idx := range indices {
		res, err := st.Read(idx)
		if err != nil {
			return nil, err
		}
		switch res.Status {
		case store.StatusCompleted:
			counts.Completed++
		case store.StatusSkipped:
			counts.Skipped++
		case store.StatusFailed:
			counts.Failed++
		}
	}
	counts.Pending = counts.Total - counts.Completed - counts.Skipped - counts.Failed

	return &StatusReport{Manifest: manifest, Counts: counts}, nil
}

// loadAudio decodes the source into the shared PCM buffer, converting
// non-WAV input through ffmpeg into the run directory first.
func (c *Coordinator) loadAudio(ctx context.Context, source, runDir string) (*pcm.Buffer, error) {
	ext := strings.ToLower(filepath.Ext(source))
	if ext == ".wav" || ext == ".wave" {
		return pcm.Load(source, pcm.TargetSampleRate)
	}

	converted := filepath.Join(runDir, convertedName)
	if _, err := os.Stat(converted); err != nil {
		if err := c.bridge.Convert(ctx, source, converted, pcm.TargetSampleRate); err != nil {
			return nil, err
		}
	}
	return pcm.Load(converted, pcm.TargetSampleRate)
}

// countResults tallies resolutions; chunks the run never resolved count
// as pending.
func countResults(results []*store.ChunkResult, total int) Counts {
	counts := Counts{Total: total}
	for _, res := range results {
		switch res.Status {
		case store.StatusCompleted:
			counts.Completed++
		case store.StatusSkipped:
			counts.Skipped++
		case store.StatusFailed:
			counts.Failed++
		}
	}
	counts.Pending = total - counts.Completed - counts.Skipped - counts.Failed
	return counts
}
