package engine

import "errors"

// ErrModelNotLoaded indicates the engine's model failed to load or was released.
var ErrModelNotLoaded = errors.New("model not loaded")

// ErrBusy indicates the engine temporarily cannot accept work (retryable).
var ErrBusy = errors.New("engine busy")

// ErrCrash indicates the engine failed mid-inference (possibly transient).
var ErrCrash = errors.New("engine crashed")

// ErrInputRejected indicates the engine permanently rejected this input.
var ErrInputRejected = errors.New("input rejected by engine")

// ErrUnknownEngine indicates the configured engine id has no implementation.
var ErrUnknownEngine = errors.New("unknown engine id")
