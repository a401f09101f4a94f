package faults

import (
	"math/rand/v2"
	"time"
)

// Default recovery parameters.
const (
	// DefaultMaxAttempts is the total number of attempts per chunk.
	DefaultMaxAttempts = 3

	// DefaultUnknownMaxRetries caps retries of unclassified failures.
	DefaultUnknownMaxRetries = 2

	// DefaultFailThresholdFraction is the fraction of failed chunks beyond
	// which the run aborts instead of producing partial output.
	DefaultFailThresholdFraction = 0.25

	// DefaultBackoffBase is the first retry delay.
	DefaultBackoffBase = 1 * time.Second

	// DefaultBackoffMax caps the exponential retry delay.
	DefaultBackoffMax = 30 * time.Second

	// backoffJitterFraction is the ± jitter applied to every retry delay to
	// avoid synchronized retries across workers.
	backoffJitterFraction = 0.2
)

// Decision is the per-failure outcome chosen by the policy.
type Decision int

const (
	// Retry means wait for the backoff delay and try the chunk again.
	Retry Decision = iota
	// Skip means mark the chunk Skipped and continue with partial output.
	Skip
	// Abort means terminate the whole run.
	Abort
)

// String returns the decision name for logging.
func (d Decision) String() string {
	switch d {
	case Retry:
		return "retry"
	case Skip:
		return "skip"
	default:
		return "abort"
	}
}

// Policy decides how failures are handled.
// The zero value is unusable; use DefaultPolicy or fill all fields.
type Policy struct {
	MaxAttempts       int
	UnknownMaxRetries int
	BackoffBase       time.Duration
	BackoffMax        time.Duration
}

// DefaultPolicy returns the policy with the default parameters above.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:       DefaultMaxAttempts,
		UnknownMaxRetries: DefaultUnknownMaxRetries,
		BackoffBase:       DefaultBackoffBase,
		BackoffMax:        DefaultBackoffMax,
	}
}

// Decide returns the action for a chunk that just failed with the given kind
// on its attempts-th attempt (1-based).
func (p Policy) Decide(kind Kind, attempts int) Decision {
	if kind.Fatal() || kind == KindCancel {
		return Abort
	}

	limit := p.MaxAttempts
	if kind == KindUnknown {
		// Unknown failures get their own, tighter retry budget.
		limit = min(limit, p.UnknownMaxRetries+1)
	}

	if kind.Retryable() && attempts < limit {
		return Retry
	}
	return Skip
}

// Backoff returns the delay before retry attempt n (1-based):
// min(base * 2^(n-1), max) with ±20% jitter.
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := p.BackoffBase
	if base <= 0 {
		base = DefaultBackoffBase
	}
	maxDelay := p.BackoffMax
	if maxDelay <= 0 {
		maxDelay = DefaultBackoffMax
	}

	delay := base
	for i := 1; i < attempt && delay < maxDelay; i++ {
		delay *= 2
	}
	delay = min(delay, maxDelay)

	jitter := 1 + backoffJitterFraction*(2*rand.Float64()-1)
	return time.Duration(float64(delay) * jitter)
}
