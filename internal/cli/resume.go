package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tamlil/tamlil/internal/lang"
	"github.com/tamlil/tamlil/internal/logging"
	"github.com/tamlil/tamlil/internal/speaker"
)

// ResumeCmd creates the resume command.
func ResumeCmd(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resume <run-dir | run-id>",
		Short: "Resume an interrupted run",
		Long: `Resume an interrupted or failed run from its run directory.

Chunks already transcribed or skipped are reused; interrupted and failed
chunks are scheduled again. The argument is either a run directory path
or a run id under the configured run directory root.`,
		Example: `  tamlil resume runs/20260824-101502-ab12cd34
  tamlil resume 20260824-101502-ab12cd34`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResume(cmd, env, args[0])
		},
	}
	return cmd
}

func runResume(cmd *cobra.Command, env *Env, target string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd, env)
	if err != nil {
		return err
	}
	if err := lang.Validate(cfg.Transcription.Language); err != nil {
		return err
	}

	runDir, err := resolveRunDir(cfg.Output.RunDirRoot, target)
	if err != nil {
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
	report, runErr := env.NewRunner(cfg, eng, diarizer, log).Resume(ctx, runDir)
	return finishReport(env, report, runErr)
}

// resolveRunDir accepts a run directory path or a bare run id relative to
// the run root. Either must contain a manifest.
func resolveRunDir(root, target string) (string, error) {
	for _, dir := range []string{target, filepath.Join(root, target)} {
		if _, err := os.Stat(filepath.Join(dir, "manifest.json")); err == nil {
			return dir, nil
		}
	}
	return "", fmt.Errorf("%w: %s (looked in %s)", ErrRunNotFound, target, root)
}
