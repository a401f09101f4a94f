// Package ffmpeg bridges to the ffmpeg binary for input conversion.
//
// The pipeline decodes WAV natively; everything else (mp3, m4a, ogg,
// video containers) is converted up front to 16 kHz mono PCM WAV through
// ffmpeg. The binary is resolved from FFMPEG_PATH or the system PATH;
// it is never bundled or downloaded.
package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
)

// ErrNotFound indicates no usable ffmpeg binary could be located.
var ErrNotFound = errors.New("ffmpeg not found")

// ErrConvertFailed indicates ffmpeg exited non-zero during conversion.
var ErrConvertFailed = errors.New("ffmpeg conversion failed")

// EnvPath is the environment variable naming an explicit ffmpeg binary.
const EnvPath = "FFMPEG_PATH"

// runFn executes a command and returns its stderr output.
type runFn func(ctx context.Context, path string, args []string) (string, error)

// lookPathFn resolves a binary name on the system PATH.
type lookPathFn func(file string) (string, error)

// Bridge locates and runs ffmpeg. The zero value is not usable; call New.
type Bridge struct {
	run      runFn
	lookPath lookPathFn
	getenv   func(string) string
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithRunner replaces the command runner (tests).
func WithRunner(fn runFn) Option {
	return func(b *Bridge) { b.run = fn }
}

// WithLookPath replaces PATH resolution (tests).
func WithLookPath(fn lookPathFn) Option {
	return func(b *Bridge) { b.lookPath = fn }
}

// WithGetenv replaces environment lookup (tests).
func WithGetenv(fn func(string) string) Option {
	return func(b *Bridge) { b.getenv = fn }
}

// New builds a Bridge with production defaults.
func New(opts ...Option) *Bridge {
	b := &Bridge{
		run:      defaultRun,
		lookPath: exec.LookPath,
		getenv:   os.Getenv,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Resolve finds the ffmpeg binary: FFMPEG_PATH first (an invalid value is
// an error, not a fallthrough), then the system PATH.
func (b *Bridge) Resolve() (string, error) {
	if envPath := b.getenv(EnvPath); envPath != "" {
		if _, err := os.Stat(envPath); err != nil {
			return "", fmt.Errorf("%w: %s is set to %q but no binary is there",
				ErrNotFound, EnvPath, envPath)
		}
		return envPath, nil
	}
	path, err := b.lookPath("ffmpeg")
	if err != nil {
		return "", fmt.Errorf("%w: install ffmpeg or set %s", ErrNotFound, EnvPath)
	}
	return path, nil
}

// Convert transcodes src into a 16-bit mono PCM WAV at sampleRate Hz,
// written to dst. Existing dst is overwritten.
func (b *Bridge) Convert(ctx context.Context, src, dst string, sampleRate int) error {
	path, err := b.Resolve()
	if err != nil {
		return err
	}

	args := []string{
		"-hide_banner", "-nostdin",
		"-i", src,
		"-ac", "1",
		"-ar", strconv.Itoa(sampleRate),
		"-c:a", "pcm_s16le",
		"-y", dst,
	}
	out, err := b.run(ctx, path, args)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s: %v: %s", ErrConvertFailed, src, err, tail(out))
	}
	return nil
}

// defaultRun executes the command and captures stderr, where ffmpeg
// writes all diagnostics.
func defaultRun(ctx context.Context, path string, args []string) (string, error) {
	cmd := exec.CommandContext(ctx, path, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stderr.String(), err
}

// tail keeps error messages readable: only the last lines of ffmpeg's
// stderr carry the actual failure reason.
func tail(s string) string {
	const keep = 400
	if len(s) <= keep {
		return s
	}
	return "..." + s[len(s)-keep:]
}
