package run

import "errors"

// ErrManifestMismatch indicates a resumed run's chunk plan no longer
// matches the manifest, usually because the source file changed.
var ErrManifestMismatch = errors.New("run manifest does not match replanned chunks")
