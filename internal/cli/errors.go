package cli

import (
	"errors"
	"fmt"
)

// CLI-specific sentinel errors for validation failures that belong to no
// domain package.
var (
	// ErrAPIKeyMissing indicates OPENAI_API_KEY is not set but the openai
	// engine was selected.
	ErrAPIKeyMissing = errors.New("OPENAI_API_KEY environment variable not set")

	// ErrFileNotFound indicates the input audio file does not exist.
	ErrFileNotFound = errors.New("file not found")

	// ErrRunNotFound indicates no run directory matches the given id or path.
	ErrRunNotFound = errors.New("run not found")
)

// EnvOpenAIAPIKey names the environment variable holding the OpenAI key.
const EnvOpenAIAPIKey = "OPENAI_API_KEY"

// StatusError carries a specific process exit code out of a command.
// A run that finishes with skipped chunks or is canceled ends the
// process with a non-zero code even though the command itself did not
// malfunction.
type StatusError struct {
	Code int
	Err  error
}

func (e *StatusError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *StatusError) Unwrap() error { return e.Err }
