package store

import "errors"

// ErrCorruptChunk indicates a chunk file exists but cannot be parsed.
var ErrCorruptChunk = errors.New("corrupt chunk file")
