package plan

import "errors"

// ErrEmptyDuration indicates the audio source has zero or negative duration.
var ErrEmptyDuration = errors.New("audio duration is empty")

// ErrInvalidChunking indicates chunk/overlap parameters that cannot produce a valid plan.
var ErrInvalidChunking = errors.New("invalid chunking parameters")
