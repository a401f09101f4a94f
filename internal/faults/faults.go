// Package faults classifies pipeline failures into a small taxonomy and
// decides, per failure, whether the chunk is retried, skipped, or the whole
// run aborts. All components exchange classified kinds instead of raw errors
// so that recovery decisions live in exactly one place.
package faults

import (
	"context"
	"errors"
	"io/fs"
	"syscall"

	"github.com/tamlil/tamlil/internal/engine"
	"github.com/tamlil/tamlil/internal/pcm"
	"github.com/tamlil/tamlil/internal/plan"
)

// Kind is the failure taxonomy of the pipeline.
type Kind int

const (
	// KindNone means no failure.
	KindNone Kind = iota
	// KindInput is a permanent problem with the source audio. Aborts the run.
	KindInput
	// KindEngineTransient is a temporary engine failure. Retried with backoff.
	KindEngineTransient
	// KindEnginePermanent is a non-recoverable engine failure (model load,
	// version mismatch). Chunks fail without retry.
	KindEnginePermanent
	// KindResource is out-of-memory or disk-full. Aborts immediately.
	KindResource
	// KindCancel is user-initiated cancellation.
	KindCancel
	// KindUnknown is anything unclassified; treated as transient for a
	// limited number of retries.
	KindUnknown
)

// String returns the manifest/JSON name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return ""
	case KindInput:
		return "InputError"
	case KindEngineTransient:
		return "EngineTransient"
	case KindEnginePermanent:
		return "EnginePermanent"
	case KindResource:
		return "Resource"
	case KindCancel:
		return "Cancellation"
	default:
		return "Unknown"
	}
}

// Classify maps an error to its failure kind.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindNone

	case errors.Is(err, context.Canceled):
		return KindCancel

	// Per-chunk deadline expiry is a transient engine failure; the run-wide
	// cancel path surfaces context.Canceled instead.
	case errors.Is(err, context.DeadlineExceeded):
		return KindEngineTransient

	case errors.Is(err, engine.ErrBusy), errors.Is(err, engine.ErrCrash):
		return KindEngineTransient

	case errors.Is(err, engine.ErrInputRejected):
		return KindEnginePermanent

	case errors.Is(err, engine.ErrModelNotLoaded), errors.Is(err, engine.ErrUnknownEngine):
		return KindEnginePermanent

	case errors.Is(err, pcm.ErrUnsupportedFormat),
		errors.Is(err, pcm.ErrCorruptAudio),
		errors.Is(err, pcm.ErrEmptyAudio),
		errors.Is(err, plan.ErrEmptyDuration),
		errors.Is(err, plan.ErrInvalidChunking),
		errors.Is(err, fs.ErrNotExist):
		return KindInput

	case errors.Is(err, syscall.ENOSPC), errors.Is(err, syscall.ENOMEM):
		return KindResource

	default:
		return KindUnknown
	}
}

// Retryable reports whether a failure of this kind may be retried at all.
func (k Kind) Retryable() bool {
	return k == KindEngineTransient || k == KindUnknown
}

// Fatal reports whether a failure of this kind aborts the run immediately,
// regardless of the fail threshold.
func (k Kind) Fatal() bool {
	return k == KindInput || k == KindResource
}
