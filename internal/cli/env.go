// Package cli implements the tamlil command surface: transcribe, resume,
// status and config. Commands are thin: they validate input, overlay flag
// values on the loaded configuration and hand off to the run coordinator.
package cli

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/tamlil/tamlil/internal/config"
	"github.com/tamlil/tamlil/internal/engine"
	"github.com/tamlil/tamlil/internal/engine/factory"
	"github.com/tamlil/tamlil/internal/run"
	"github.com/tamlil/tamlil/internal/speaker"
)

// Runner is the slice of the run coordinator the commands use.
type Runner interface {
	Run(ctx context.Context, source string) (*run.Report, error)
	Resume(ctx context.Context, runDir string) (*run.Report, error)
}

// Env holds injectable dependencies for CLI commands. Tests replace
// individual fields to run commands without engines, audio or disk.
type Env struct {
	Stdout io.Writer
	Stderr io.Writer
	Getenv func(string) string

	LoadConfig  func(file string) (*config.Config, error)
	OpenEngine  func(cfg factory.Config) (engine.Engine, error)
	NewDiarizer func(cfg config.Speaker) (speaker.Provider, error)
	NewRunner   func(cfg *config.Config, eng engine.Engine, diarizer speaker.Provider, log *slog.Logger) Runner
	ReadStatus  func(runDir string) (*run.StatusReport, error)
}

// EnvOption configures an Env.
type EnvOption func(*Env)

// WithStdout sets the stdout writer.
func WithStdout(w io.Writer) EnvOption {
	return func(e *Env) { e.Stdout = w }
}

// WithStderr sets the stderr writer.
func WithStderr(w io.Writer) EnvOption {
	return func(e *Env) { e.Stderr = w }
}

// WithGetenv sets the environment variable getter.
func WithGetenv(fn func(string) string) EnvOption {
	return func(e *Env) { e.Getenv = fn }
}

// WithConfigLoader sets the configuration loader.
func WithConfigLoader(fn func(string) (*config.Config, error)) EnvOption {
	return func(e *Env) { e.LoadConfig = fn }
}

// WithEngineOpener sets the engine constructor.
func WithEngineOpener(fn func(factory.Config) (engine.Engine, error)) EnvOption {
	return func(e *Env) { e.OpenEngine = fn }
}

// WithDiarizerFactory sets the speaker provider constructor.
func WithDiarizerFactory(fn func(config.Speaker) (speaker.Provider, error)) EnvOption {
	return func(e *Env) { e.NewDiarizer = fn }
}

// WithRunnerFactory sets the coordinator constructor.
func WithRunnerFactory(fn func(*config.Config, engine.Engine, speaker.Provider, *slog.Logger) Runner) EnvOption {
	return func(e *Env) { e.NewRunner = fn }
}

// WithStatusReader sets the run directory inspector.
func WithStatusReader(fn func(string) (*run.StatusReport, error)) EnvOption {
	return func(e *Env) { e.ReadStatus = fn }
}

// DefaultEnv returns an Env with production defaults.
func DefaultEnv() *Env {
	return &Env{
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
		Getenv:      os.Getenv,
		LoadConfig:  config.Load,
		OpenEngine:  factory.Open,
		NewDiarizer: run.Diarizer,
		NewRunner: func(cfg *config.Config, eng engine.Engine, diarizer speaker.Provider, log *slog.Logger) Runner {
			return run.New(cfg, eng, diarizer, log)
		},
		ReadStatus: run.Status,
	}
}

// NewEnv creates an Env with the given options applied to defaults.
func NewEnv(opts ...EnvOption) *Env {
	env := DefaultEnv()
	for _, opt := range opts {
		opt(env)
	}
	return env
}
