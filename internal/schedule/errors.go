package schedule

import "errors"

// ErrTooManyFailures indicates the fraction of failed chunks crossed the
// abort threshold and the run stopped instead of producing mostly-empty
// output.
var ErrTooManyFailures = errors.New("failed chunk fraction exceeds threshold")
