package timeline

import "errors"

// ErrUnresolvedChunk indicates a chunk handed to the merger is still
// Pending or Processing; the merger only runs after scheduling drains.
var ErrUnresolvedChunk = errors.New("unresolved chunk in merge input")
