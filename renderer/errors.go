package renderer

import "errors"

// Failure classes returned by Start and the pipeline controls.
var (
	// ErrUnsupportedEnvironment means no usable device or canvas was supplied.
	ErrUnsupportedEnvironment = errors.New("unsupported graphics environment")
	// ErrCompile wraps compile and link failures of a pass.
	ErrCompile = errors.New("shader compile failed")
	// ErrInclude wraps include failures in strict include mode.
	ErrInclude = errors.New("shader include failed")
	// ErrUniform wraps invalid static uniforms in strict uniform mode.
	ErrUniform = errors.New("invalid uniform")
	// ErrSourceLoad wraps failures to obtain a pass's shader source.
	ErrSourceLoad = errors.New("shader source load failed")
	// ErrDisposed is returned by controls of a disposed pipeline.
	ErrDisposed = errors.New("pipeline disposed")
)
