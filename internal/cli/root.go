package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tamlil/tamlil/internal/config"
)

// RootCmd builds the tamlil root command with all subcommands attached.
func RootCmd(env *Env, version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tamlil",
		Short:   "Long-form Hebrew audio transcription",
		Version: version,
		Long: `tamlil transcribes long audio recordings into timestamped transcripts.

The source is split into overlapping chunks, transcribed by a local or
remote whisper engine, merged into one deduplicated timeline and written
as JSON, plain text, and optionally DOCX. Every run is durable: an
interrupted run resumes from its run directory without redoing finished
chunks.`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.PersistentFlags().String("config", "", "Config file (default: ./tamlil.yaml, ~/.config/tamlil/tamlil.yaml)")
	cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")

	cmd.AddCommand(TranscribeCmd(env))
	cmd.AddCommand(ResumeCmd(env))
	cmd.AddCommand(StatusCmd(env))
	cmd.AddCommand(ConfigCmd(env))

	return cmd
}

// loadConfig reads the configuration honoring the persistent --config and
// --debug flags.
func loadConfig(cmd *cobra.Command, env *Env) (*config.Config, error) {
	file := ""
	if f := cmd.Flag("config"); f != nil {
		file = f.Value.String()
	}
	cfg, err := env.LoadConfig(file)
	if err != nil {
		return nil, err
	}
	if f := cmd.Flag("debug"); f != nil && f.Value.String() == "true" {
		cfg.Debug = true
	}
	return cfg, nil
}

// version string assembled by main from build metadata.
func Version(version, commit string) string {
	return fmt.Sprintf("%s (commit: %s)", version, commit)
}
