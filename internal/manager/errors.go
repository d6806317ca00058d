package manager

import (
	"errors"

	"streamd/internal/bridge"
)

// noModelLoadedError is returned before any stream starts when no runtime is installed.
type noModelLoadedError struct{}

func (noModelLoadedError) Error() string { return "no model is currently loaded" }

// ErrNoModelLoaded is the sentinel for generation requests without a loaded model.
var ErrNoModelLoaded error = noModelLoadedError{}

// IsNoModelLoaded reports whether err indicates that nothing is loaded (return 400).
func IsNoModelLoaded(err error) bool {
	var e noModelLoadedError
	return errors.As(err, &e)
}

// tooBusyError signals queue timeout/overflow for 429 mapping.
type tooBusyError struct{ modelID string }

func (e tooBusyError) Error() string { return "too busy: " + e.modelID }

// ErrTooBusy constructs a tooBusyError for modelID.
func ErrTooBusy(modelID string) error { return tooBusyError{modelID: modelID} }

// IsTooBusy reports whether err indicates backpressure (return 429).
func IsTooBusy(err error) bool {
	var e tooBusyError
	return errors.As(err, &e)
}

// ErrModelNotFound returns an error when a requested model id is not present in the registry.
type modelNotFoundError struct{ id string }

func (e modelNotFoundError) Error() string { return "model not found: " + e.id }

func ErrModelNotFound(id string) error { return modelNotFoundError{id: id} }

// IsModelNotFound reports whether the error indicates a missing model id.
func IsModelNotFound(err error) bool {
	var e modelNotFoundError
	return errors.As(err, &e)
}

// dependencyUnavailableError signals a missing external dependency (e.g., llama.cpp)
// so the HTTP layer can return 503 Service Unavailable instead of 500.
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return e.msg }

// ErrDependencyUnavailable constructs a dependencyUnavailableError.
func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsDependencyUnavailable reports whether err indicates a missing/failed runtime dependency.
func IsDependencyUnavailable(err error) bool {
	var e dependencyUnavailableError
	return errors.As(err, &e)
}

// invalidRequestError covers bad sampling parameters and unknown options.
type invalidRequestError struct{ msg string }

func (e invalidRequestError) Error() string { return e.msg }

// ErrInvalidRequest constructs an invalidRequestError.
func ErrInvalidRequest(msg string) error { return invalidRequestError{msg: msg} }

// IsInvalidRequest reports whether err should map to 400 Bad Request.
func IsInvalidRequest(err error) bool {
	var e invalidRequestError
	return errors.As(err, &e) || errors.Is(err, bridge.ErrInvalidConfig)
}

// promptFormattingError is reported inside the stream when a chat transcript
// cannot be rendered.
type promptFormattingError struct{ msg string }

func (e promptFormattingError) Error() string { return "prompt formatting: " + e.msg }

// IsPromptFormatting reports whether err came from prompt rendering.
func IsPromptFormatting(err error) bool {
	var e promptFormattingError
	return errors.As(err, &e)
}
