package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tamlil/tamlil/internal/config"
	"github.com/tamlil/tamlil/internal/engine"
	"github.com/tamlil/tamlil/internal/engine/factory"
	"github.com/tamlil/tamlil/internal/lang"
	"github.com/tamlil/tamlil/internal/logging"
	"github.com/tamlil/tamlil/internal/run"
	"github.com/tamlil/tamlil/internal/speaker"
)

// transcribeFlags holds the flag values that overlay the configuration.
type transcribeFlags struct {
	engineID     string
	model        string
	serverURL    string
	language     string
	chunkSec     float64
	overlapSec   float64
	workers      int
	attempts     int
	runDir       string
	speaker      string
	retainChunks bool
	formats      []string
}

// TranscribeCmd creates the transcribe command.
func TranscribeCmd(env *Env) *cobra.Command {
	var f transcribeFlags

	cmd := &cobra.Command{
		Use:   "transcribe <audio-file>",
		Short: "Transcribe an audio file",
		Long: `Transcribe an audio file into a timestamped transcript.

The audio is split into fixed-length overlapping chunks, transcribed
through the configured engine with retries, merged into one timeline and
written under a fresh run directory. Non-WAV input is converted through
ffmpeg first.

Engines: whispercpp (local model), whisperserver (whisper.cpp server),
openai (hosted API, needs OPENAI_API_KEY).

For right-to-left languages the DOCX output right-aligns paragraphs; it
does not set the Word bidi paragraph property, so character ordering is
left to the viewing application.`,
		Example: `  tamlil transcribe lecture.wav
  tamlil transcribe interview.mp3 --engine whispercpp --model ggml-large-v3.bin
  tamlil transcribe panel.wav --speaker energy --formats json,txt,docx
  tamlil transcribe meeting.m4a --engine openai -l he -w 2`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranscribe(cmd, env, args[0], &f)
		},
	}

	cmd.Flags().StringVar(&f.engineID, "engine", "", "Engine: whispercpp, whisperserver, openai")
	cmd.Flags().StringVarP(&f.model, "model", "m", "", "Model path (whispercpp) or name (whisperserver, openai)")
	cmd.Flags().StringVar(&f.serverURL, "server-url", "", "whisper-server base URL (whisperserver engine)")
	cmd.Flags().StringVarP(&f.language, "language", "l", "", "Audio language (ISO 639-1 code, e.g. he, en)")
	cmd.Flags().Float64Var(&f.chunkSec, "chunk-sec", 0, "Chunk length in seconds")
	cmd.Flags().Float64Var(&f.overlapSec, "overlap-sec", 0, "Overlap between chunks in seconds")
	cmd.Flags().IntVarP(&f.workers, "workers", "w", 0, "Worker pool size")
	cmd.Flags().IntVar(&f.attempts, "max-attempts", 0, "Attempts per chunk before skipping")
	cmd.Flags().StringVar(&f.runDir, "run-dir", "", "Root directory for run directories")
	cmd.Flags().StringVar(&f.speaker, "speaker", "", "Speaker attribution: off, single, energy, sherpa")
	cmd.Flags().BoolVar(&f.retainChunks, "retain-chunks", true, "Keep per-chunk JSON files after the run")
	cmd.Flags().StringSliceVar(&f.formats, "formats", nil, "Output formats: json, txt, docx")

	return cmd
}

func runTranscribe(cmd *cobra.Command, env *Env, source string, f *transcribeFlags) error {
	ctx := cmd.Context()

	if _, err := os.Stat(source); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, source)
		}
		return fmt.Errorf("cannot access input file: %w", err)
	}

	cfg, err := loadConfig(cmd, env)
	if err != nil {
		return err
	}
	applyOverrides(cmd, cfg, f)
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := lang.Validate(cfg.Transcription.Language); err != nil {
		return err
	}

	eng, err := openEngine(env, cfg)
	if err != nil {
		return err
	}
	defer closeQuiet(eng)

	var diarizer speaker.Provider
	if cfg.Speaker.Enabled {
		diarizer, err = env.NewDiarizer(cfg.Speaker)
		if err != nil {
			return err
		}
		defer closeQuiet(diarizer)
	}

	log := logging.Setup(cfg.Debug)
	report, runErr := env.NewRunner(cfg, eng, diarizer, log).Run(ctx, source)
	return finishReport(env, report, runErr)
}

// applyOverrides overlays changed flags onto the loaded configuration.
// Unset flags leave file and environment values intact.
func applyOverrides(cmd *cobra.Command, cfg *config.Config, f *transcribeFlags) {
	set := cmd.Flags().Changed
	if set("engine") {
		cfg.Transcription.DefaultEngine = f.engineID
	}
	if set("model") {
		cfg.Transcription.DefaultModel = f.model
	}
	if set("server-url") {
		cfg.Transcription.ServerURL = f.serverURL
	}
	if set("language") {
		cfg.Transcription.Language = f.language
	}
	if set("chunk-sec") {
		cfg.Chunking.ChunkSeconds = f.chunkSec
	}
	if set("overlap-sec") {
		cfg.Chunking.OverlapSeconds = f.overlapSec
	}
	if set("workers") {
		cfg.Scheduler.MaxWorkers = f.workers
	}
	if set("max-attempts") {
		cfg.Scheduler.MaxAttempts = f.attempts
	}
	if set("run-dir") {
		cfg.Output.RunDirRoot = f.runDir
	}
	if set("retain-chunks") {
		cfg.Output.RetainChunks = f.retainChunks
	}
	if set("formats") {
		cfg.Output.Formats = f.formats
	}
	if set("speaker") {
		if f.speaker == "off" {
			cfg.Speaker.Enabled = false
		} else {
			cfg.Speaker.Enabled = true
			cfg.Speaker.Preset = f.speaker
		}
	}
}

// openEngine builds the configured engine variant.
func openEngine(env *Env, cfg *config.Config) (engine.Engine, error) {
	apiKey := env.Getenv(EnvOpenAIAPIKey)
	if cfg.Transcription.DefaultEngine == "openai" && apiKey == "" {
		return nil, fmt.Errorf("%w (set it with: export %s=sk-...)", ErrAPIKeyMissing, EnvOpenAIAPIKey)
	}
	return env.OpenEngine(factory.Config{
		ID:        cfg.Transcription.DefaultEngine,
		Model:     cfg.Transcription.DefaultModel,
		ServerURL: cfg.Transcription.ServerURL,
		APIKey:    apiKey,
	})
}

// closeQuiet releases native resources held by engines and diarizers.
func closeQuiet(v any) {
	if c, ok := v.(io.Closer); ok {
		_ = c.Close()
	}
}

// finishReport prints the run outcome and converts non-success statuses
// into exit codes.
func finishReport(env *Env, report *run.Report, runErr error) error {
	if report == nil {
		return runErr
	}

	switch report.Status {
	case run.ExitSuccess:
		fmt.Fprintf(env.Stdout, "Run %s completed: %d chunks, output in %s\n",
			report.RunID, report.Counts.Completed, report.OutputDir)
		return nil

	case run.ExitPartial:
		fmt.Fprintf(env.Stdout, "Run %s completed with gaps: %d transcribed, %d skipped, output in %s\n",
			report.RunID, report.Counts.Completed, report.Counts.Skipped, report.OutputDir)
		return &StatusError{
			Code: int(run.ExitPartial),
			Err:  fmt.Errorf("%d of %d chunks skipped", report.Counts.Skipped, report.Counts.Total),
		}

	case run.ExitCanceled:
		fmt.Fprintf(env.Stdout, "Run %s canceled; resume it with: tamlil resume %s\n",
			report.RunID, report.RunDir)
		return &StatusError{Code: int(run.ExitCanceled), Err: runErr}

	default:
		return &StatusError{Code: int(report.Status), Err: runErr}
	}
}
