package bridge

import (
	"context"
	"errors"
)

// EmitFunc receives one fragment of newly decoded text. A non-nil error tells
// the backend to stop generating and return.
type EmitFunc func(fragment string) error

// Limits describes backend-specific behavior the session has to honor.
type Limits struct {
	// MaxTokens is a hard ceiling on new tokens; 0 means none beyond MaxTokensCeiling.
	MaxTokens int
	// AnnounceRole asks the formatter to open the stream with a role chunk.
	AnnounceRole bool
}

// Backend is a loaded generation runtime. Generate blocks until the model
// finishes, ctx is cancelled, or stop is set; it must emit only text that has
// not been emitted before and must check stop at least once per decoding step.
type Backend interface {
	Name() string
	Limits() Limits
	Generate(ctx context.Context, prompt string, cfg GenerationConfig, stop *StopSignal, emit EmitFunc) error
}

var (
	// ErrStopped is returned by EmitFunc once the session's StopSignal is set.
	ErrStopped = errors.New("generation stopped")
	// ErrStepTimeout is reported when no fragment arrives within the step timeout.
	ErrStepTimeout = errors.New("generation step timed out")
)
