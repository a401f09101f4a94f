// Package interrupt turns SIGINT/SIGTERM into graceful run cancellation.
//
// The first signal cancels the run context; in-flight chunks get their
// grace period and the run shuts down in order. A second signal means the
// user is done waiting: the process exits immediately with code 130.
package interrupt

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// ExitInterrupt is the exit code for a canceled run (128 + SIGINT).
const ExitInterrupt = 130

const (
	cancelMessage = "\nStopping... finishing in-flight chunks (Ctrl+C again to quit now)"
	abortMessage  = "\nAborted."
)

// Handler listens for interrupt signals on behalf of one run.
type Handler struct {
	mu          sync.Mutex
	interrupted bool
	stopped     bool
	cancel      context.CancelFunc
	done        chan struct{}

	// Injected for tests.
	exitFunc func(int)
	stderr   io.Writer
}

// Options holds injectable dependencies for tests.
type Options struct {
	SigCh    <-chan os.Signal
	ExitFunc func(int)
	Stderr   io.Writer
}

// NewHandler installs a SIGINT/SIGTERM listener and returns a context
// that is canceled on the first signal.
func NewHandler(parent context.Context) (*Handler, context.Context) {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	return newHandler(parent, Options{SigCh: sigCh})
}

// NewHandlerWithOptions builds a handler with injected dependencies.
func NewHandlerWithOptions(parent context.Context, opts Options) (*Handler, context.Context) {
	return newHandler(parent, opts)
}

func newHandler(parent context.Context, opts Options) (*Handler, context.Context) {
	ctx, cancel := context.WithCancel(parent)

	exitFunc := opts.ExitFunc
	if exitFunc == nil {
		exitFunc = os.Exit
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	h := &Handler{
		cancel:   cancel,
		done:     make(chan struct{}),
		exitFunc: exitFunc,
		stderr:   stderr,
	}
	if opts.SigCh != nil {
		go h.listen(opts.SigCh)
	}
	return h, ctx
}

func (h *Handler) listen(sigCh <-chan os.Signal) {
	for {
		select {
		case <-h.done:
			return
		case _, ok := <-sigCh:
			if !ok {
				return
			}

			h.mu.Lock()
			if h.stopped {
				h.mu.Unlock()
				return
			}
			if !h.interrupted {
				h.interrupted = true
				h.cancel()
				h.mu.Unlock()
				fmt.Fprintln(h.stderr, cancelMessage)
				continue
			}
			h.mu.Unlock()

			fmt.Fprintln(h.stderr, abortMessage)
			h.exitFunc(ExitInterrupt)
			return // exitFunc may be a test stub
		}
	}
}

// WasInterrupted reports whether at least one signal arrived.
func (h *Handler) WasInterrupted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.interrupted
}

// Stop removes the signal listener. Call once the run has finished.
func (h *Handler) Stop() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.stopped = true
	h.mu.Unlock()

	signal.Reset(syscall.SIGINT, syscall.SIGTERM)
	close(h.done)
}
