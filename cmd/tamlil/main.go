package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/tamlil/tamlil/internal/cli"
	"github.com/tamlil/tamlil/internal/interrupt"
)

// Injected at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

// Exit codes: 0 success, 1 failure, 2 partial transcript, 130 canceled.
const (
	ExitOK      = 0
	ExitGeneral = 1
)

func main() {
	// Load .env if present; OPENAI_API_KEY commonly lives there.
	_ = godotenv.Load()

	handler, ctx := interrupt.NewHandler(context.Background())
	defer handler.Stop()

	env := cli.DefaultEnv()
	rootCmd := cli.RootCmd(env, cli.Version(version, commit))

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps command errors to process exit codes.
func exitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var statusErr *cli.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code
	}
	if errors.Is(err, context.Canceled) {
		return interrupt.ExitInterrupt
	}
	return ExitGeneral
}
