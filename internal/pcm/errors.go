package pcm

import "errors"

// ErrUnsupportedFormat indicates the input format is outside the allow-list.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// ErrCorruptAudio indicates the file could not be decoded.
var ErrCorruptAudio = errors.New("corrupt audio file")

// ErrEmptyAudio indicates the file decoded to zero samples.
var ErrEmptyAudio = errors.New("audio file is empty")
