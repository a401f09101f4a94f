package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/tamlil/tamlil/internal/format"
)

// StatusCmd creates the status command.
func StatusCmd(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <run-dir | run-id>",
		Short: "Show the state of a run",
		Long: `Show a run's manifest and per-chunk progress without modifying it.

Chunks found mid-processing (for example after a crash) are reported as
pending; they are only reset when the run is resumed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, env, args[0])
		},
	}
	return cmd
}

func runStatus(cmd *cobra.Command, env *Env, target string) error {
	cfg, err := loadConfig(cmd, env)
	if err != nil {
		return err
	}

	runDir, err := resolveRunDir(cfg.Output.RunDirRoot, target)
	if err != nil {
		return err
	}

	report, err := env.ReadStatus(runDir)
	if err != nil {
		return err
	}

	m := report.Manifest
	c := report.Counts
	fmt.Fprintf(env.Stdout, "Run:      %s\n", m.RunID)
	fmt.Fprintf(env.Stdout, "State:    %s\n", m.State)
	fmt.Fprintf(env.Stdout, "Source:   %s (%s, %s)\n",
		m.Source.Path, format.Seconds(m.Source.DurationSec), format.Size(m.Source.SizeBytes))
	fmt.Fprintf(env.Stdout, "Engine:   %s / %s\n", m.EngineID, m.ModelID)
	fmt.Fprintf(env.Stdout, "Language: %s\n", m.Language)
	fmt.Fprintf(env.Stdout, "Elapsed:  %s\n", format.Duration(m.UpdatedAt.Sub(m.CreatedAt)))
	fmt.Fprintf(env.Stdout, "Chunks:   %d total, %d completed, %d skipped, %d failed, %d pending\n",
		c.Total, c.Completed, c.Skipped, c.Failed, c.Pending)
	return nil
}

// ConfigCmd creates the config command, printing the effective merged
// configuration.
func ConfigCmd(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Long: `Show the effective configuration after merging defaults, the config
file and TAMLIL_* environment variables. Credentials are never shown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfig(cmd, env)
		},
	}
	return cmd
}

func runConfig(cmd *cobra.Command, env *Env) error {
	cfg, err := loadConfig(cmd, env)
	if err != nil {
		return err
	}

	snapshot := cfg.Snapshot()
	keys := make([]string, 0, len(snapshot))
	for key := range snapshot {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		fmt.Fprintf(env.Stdout, "%s = %v\n", key, snapshot[key])
	}
	return nil
}
