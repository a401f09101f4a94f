package cli_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamlil/tamlil/internal/cli"
	"github.com/tamlil/tamlil/internal/config"
	"github.com/tamlil/tamlil/internal/engine"
	"github.com/tamlil/tamlil/internal/engine/enginetest"
	"github.com/tamlil/tamlil/internal/engine/factory"
	"github.com/tamlil/tamlil/internal/run"
	"github.com/tamlil/tamlil/internal/speaker"
)

// stubRunner records the coordinator inputs and returns a scripted report.
type stubRunner struct {
	report *run.Report
	err    error

	gotSource string
	gotRunDir string
}

func (s *stubRunner) Run(_ context.Context, source string) (*run.Report, error) {
	s.gotSource = source
	return s.report, s.err
}

func (s *stubRunner) Resume(_ context.Context, runDir string) (*run.Report, error) {
	s.gotRunDir = runDir
	return s.report, s.err
}

func baseConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Transcription: config.Transcription{DefaultEngine: "whispercpp", DefaultModel: "model.bin", Language: "he"},
		Chunking:      config.Chunking{ChunkSeconds: 30, OverlapSeconds: 5},
		Scheduler: config.Scheduler{
			MaxWorkers:            4,
			MaxAttempts:           3,
			FailThresholdFraction: 0.25,
		},
		Speaker: config.Speaker{Preset: "single", TurnGapSec: 3},
		Output: config.Output{
			Formats:      []string{"json", "txt"},
			RetainChunks: true,
			RunDirRoot:   t.TempDir(),
		},
	}
}

// testEnv wires an Env whose runner is a stub and whose engine is a fake.
func testEnv(t *testing.T, cfg *config.Config, runner *stubRunner) (*cli.Env, *config.Config) {
	t.Helper()
	env := cli.NewEnv(
		cli.WithStdout(&bytes.Buffer{}),
		cli.WithStderr(&bytes.Buffer{}),
		cli.WithGetenv(func(string) string { return "" }),
		cli.WithConfigLoader(func(string) (*config.Config, error) { return cfg, nil }),
		cli.WithEngineOpener(func(factory.Config) (engine.Engine, error) {
			return &enginetest.Fake{}, nil
		}),
		cli.WithRunnerFactory(func(_ *config.Config, _ engine.Engine, _ speaker.Provider, _ *slog.Logger) cli.Runner {
			return runner
		}),
	)
	return env, cfg
}

func wavFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFF"), 0o644))
	return path
}

func TestTranscribe_Success(t *testing.T) {
	cfg := baseConfig(t)
	runner := &stubRunner{report: &run.Report{
		RunID:     "r1",
		Status:    run.ExitSuccess,
		OutputDir: "runs/r1/output",
		Counts:    run.Counts{Total: 3, Completed: 3},
	}}
	env, _ := testEnv(t, cfg, runner)

	source := wavFixture(t)
	root := cli.RootCmd(env, "test")
	root.SetArgs([]string{"transcribe", source})

	require.NoError(t, root.Execute())
	assert.Equal(t, source, runner.gotSource)
}

func TestTranscribe_FlagOverlay(t *testing.T) {
	cfg := baseConfig(t)
	runner := &stubRunner{report: &run.Report{Status: run.ExitSuccess}}

	var effective *config.Config
	env := cli.NewEnv(
		cli.WithStdout(&bytes.Buffer{}),
		cli.WithStderr(&bytes.Buffer{}),
		cli.WithGetenv(func(string) string { return "" }),
		cli.WithConfigLoader(func(string) (*config.Config, error) { return cfg, nil }),
		cli.WithEngineOpener(func(factory.Config) (engine.Engine, error) { return &enginetest.Fake{}, nil }),
		cli.WithRunnerFactory(func(c *config.Config, _ engine.Engine, _ speaker.Provider, _ *slog.Logger) cli.Runner {
			effective = c
			return runner
		}),
	)

	root := cli.RootCmd(env, "test")
	root.SetArgs([]string{"transcribe", wavFixture(t),
		"--workers", "8",
		"--chunk-sec", "60",
		"--overlap-sec", "10",
		"--speaker", "energy",
		"--language", "en",
		"--formats", "json,docx",
	})
	require.NoError(t, root.Execute())

	require.NotNil(t, effective)
	assert.Equal(t, 8, effective.Scheduler.MaxWorkers)
	assert.Equal(t, 60.0, effective.Chunking.ChunkSeconds)
	assert.Equal(t, 10.0, effective.Chunking.OverlapSeconds)
	assert.True(t, effective.Speaker.Enabled)
	assert.Equal(t, "energy", effective.Speaker.Preset)
	assert.Equal(t, "en", effective.Transcription.Language)
	assert.Equal(t, []string{"json", "docx"}, effective.Output.Formats)
	// Untouched values survive the overlay.
	assert.Equal(t, 3, effective.Scheduler.MaxAttempts)
}

func TestTranscribe_SpeakerOff(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Speaker.Enabled = true
	runner := &stubRunner{report: &run.Report{Status: run.ExitSuccess}}

	var effective *config.Config
	env := cli.NewEnv(
		cli.WithStdout(&bytes.Buffer{}),
		cli.WithStderr(&bytes.Buffer{}),
		cli.WithGetenv(func(string) string { return "" }),
		cli.WithConfigLoader(func(string) (*config.Config, error) { return cfg, nil }),
		cli.WithEngineOpener(func(factory.Config) (engine.Engine, error) { return &enginetest.Fake{}, nil }),
		cli.WithRunnerFactory(func(c *config.Config, _ engine.Engine, _ speaker.Provider, _ *slog.Logger) cli.Runner {
			effective = c
			return runner
		}),
	)

	root := cli.RootCmd(env, "test")
	root.SetArgs([]string{"transcribe", wavFixture(t), "--speaker", "off"})
	require.NoError(t, root.Execute())
	assert.False(t, effective.Speaker.Enabled)
}

func TestTranscribe_MissingFile(t *testing.T) {
	env, _ := testEnv(t, baseConfig(t), &stubRunner{})

	root := cli.RootCmd(env, "test")
	root.SetArgs([]string{"transcribe", "/no/such/audio.wav"})

	err := root.Execute()
	assert.ErrorIs(t, err, cli.ErrFileNotFound)
}

func TestTranscribe_OpenAIRequiresKey(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Transcription.DefaultEngine = "openai"
	env, _ := testEnv(t, cfg, &stubRunner{})

	root := cli.RootCmd(env, "test")
	root.SetArgs([]string{"transcribe", wavFixture(t)})

	err := root.Execute()
	assert.ErrorIs(t, err, cli.ErrAPIKeyMissing)
}

func TestTranscribe_PartialMapsToExitCode(t *testing.T) {
	cfg := baseConfig(t)
	runner := &stubRunner{report: &run.Report{
		RunID:  "r2",
		Status: run.ExitPartial,
		Counts: run.Counts{Total: 4, Completed: 3, Skipped: 1},
	}}
	env, _ := testEnv(t, cfg, runner)

	root := cli.RootCmd(env, "test")
	root.SetArgs([]string{"transcribe", wavFixture(t)})

	err := root.Execute()
	var statusErr *cli.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, int(run.ExitPartial), statusErr.Code)
}

func TestTranscribe_InvalidConfigRejected(t *testing.T) {
	cfg := baseConfig(t)
	env, _ := testEnv(t, cfg, &stubRunner{})

	root := cli.RootCmd(env, "test")
	root.SetArgs([]string{"transcribe", wavFixture(t), "--overlap-sec", "40"})

	err := root.Execute()
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestResume_ResolvesRunID(t *testing.T) {
	cfg := baseConfig(t)
	runDir := filepath.Join(cfg.Output.RunDirRoot, "20260824-101502-ab12cd34")
	require.NoError(t, os.MkdirAll(runDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(runDir, "manifest.json"), []byte("{}"), 0o644))

	runner := &stubRunner{report: &run.Report{Status: run.ExitSuccess}}
	env, _ := testEnv(t, cfg, runner)

	root := cli.RootCmd(env, "test")
	root.SetArgs([]string{"resume", "20260824-101502-ab12cd34"})
	require.NoError(t, root.Execute())
	assert.Equal(t, runDir, runner.gotRunDir)
}

func TestResume_UnknownRun(t *testing.T) {
	env, _ := testEnv(t, baseConfig(t), &stubRunner{})

	root := cli.RootCmd(env, "test")
	root.SetArgs([]string{"resume", "nope"})

	err := root.Execute()
	assert.ErrorIs(t, err, cli.ErrRunNotFound)
}

func TestStatus_PrintsCounts(t *testing.T) {
	cfg := baseConfig(t)
	runDir := filepath.Join(cfg.Output.RunDirRoot, "r3")
	require.NoError(t, os.MkdirAll(runDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(runDir, "manifest.json"), []byte("{}"), 0o644))

	var stdout bytes.Buffer
	env := cli.NewEnv(
		cli.WithStdout(&stdout),
		cli.WithStderr(&bytes.Buffer{}),
		cli.WithConfigLoader(func(string) (*config.Config, error) { return cfg, nil }),
		cli.WithStatusReader(func(dir string) (*run.StatusReport, error) {
			assert.Equal(t, runDir, dir)
			created := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
			return &run.StatusReport{
				Manifest: &run.Manifest{
					RunID:     "r3",
					State:     run.StatePartial,
					EngineID:  "whispercpp",
					ModelID:   "ggml-large-v3",
					Language:  "he",
					CreatedAt: created,
					UpdatedAt: created.Add(42*time.Minute + 30*time.Second),
					Source: run.SourceInfo{
						Path:        "lecture.wav",
						SizeBytes:   50 * 1024 * 1024,
						DurationSec: 3600,
					},
				},
				Counts: run.Counts{Total: 120, Completed: 118, Skipped: 2},
			}, nil
		}),
	)

	root := cli.RootCmd(env, "test")
	root.SetArgs([]string{"status", "r3"})
	require.NoError(t, root.Execute())

	out := stdout.String()
	assert.Contains(t, out, "r3")
	assert.Contains(t, out, "partial")
	assert.Contains(t, out, "50 MB")
	assert.Contains(t, out, "Elapsed:  42:30")
	assert.Contains(t, out, "118 completed")
	assert.Contains(t, out, "2 skipped")
}

func TestConfig_PrintsSnapshot(t *testing.T) {
	var stdout bytes.Buffer
	env := cli.NewEnv(
		cli.WithStdout(&stdout),
		cli.WithStderr(&bytes.Buffer{}),
		cli.WithConfigLoader(func(string) (*config.Config, error) { return baseConfig(t), nil }),
	)

	root := cli.RootCmd(env, "test")
	root.SetArgs([]string{"config"})
	require.NoError(t, root.Execute())

	out := stdout.String()
	assert.Contains(t, out, "chunking.chunk_seconds = 30")
	assert.Contains(t, out, "scheduler.max_workers = 4")
	assert.NotContains(t, out, "api_key")
}

func TestConfigLoadFailurePropagates(t *testing.T) {
	env := cli.NewEnv(
		cli.WithStdout(&bytes.Buffer{}),
		cli.WithStderr(&bytes.Buffer{}),
		cli.WithConfigLoader(func(string) (*config.Config, error) {
			return nil, errors.New("broken config")
		}),
	)

	root := cli.RootCmd(env, "test")
	root.SetArgs([]string{"config"})
	assert.Error(t, root.Execute())
}
