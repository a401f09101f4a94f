// Package factory builds the configured engine.Engine variant. It is the
// only place that knows every concrete implementation; callers hold the
// interface and never branch on the variant.
package factory

import (
	"fmt"

	"github.com/tamlil/tamlil/internal/engine"
	"github.com/tamlil/tamlil/internal/engine/openai"
	"github.com/tamlil/tamlil/internal/engine/whispercpp"
	"github.com/tamlil/tamlil/internal/engine/whisperserver"
)

// Config selects and parameterizes an engine variant.
type Config struct {
	// ID is one of "whispercpp", "whisperserver", "openai".
	ID string

	// Model is the model path (whispercpp) or model name (whisperserver,
	// openai). Optional for the remote variants.
	Model string

	// ServerURL is the whisper-server base URL (whisperserver only).
	ServerURL string

	// APIKey authenticates remote APIs (openai only).
	APIKey string

	// Threads caps decoder threads per inference (whispercpp only).
	Threads uint
}

// Open constructs the engine named by cfg.ID. The caller must Close the
// returned engine if it implements io.Closer.
func Open(cfg Config) (engine.Engine, error) {
	switch cfg.ID {
	case "whispercpp":
		var opts []whispercpp.Option
		if cfg.Threads > 0 {
			opts = append(opts, whispercpp.WithThreads(cfg.Threads))
		}
		return whispercpp.New(cfg.Model, opts...)

	case "whisperserver":
		var opts []whisperserver.Option
		if cfg.Model != "" {
			opts = append(opts, whisperserver.WithModel(cfg.Model))
		}
		return whisperserver.New(cfg.ServerURL, opts...)

	case "openai":
		var opts []openai.Option
		if cfg.Model != "" {
			opts = append(opts, openai.WithModel(cfg.Model))
		}
		return openai.New(cfg.APIKey, opts...)

	default:
		return nil, fmt.Errorf("%w: %q", engine.ErrUnknownEngine, cfg.ID)
	}
}
