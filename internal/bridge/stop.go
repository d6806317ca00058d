package bridge

import (
	"context"
	"sync/atomic"
)

// StopSignal is a write-once cancellation flag. Set may be called any number
// of times from any goroutine; IsSet is a cheap non-blocking read. There is no
// way to clear a signal: each session gets a fresh one.
type StopSignal struct {
	ctx    context.Context
	cancel context.CancelFunc
	set    atomic.Bool
}

// NewStopSignal returns an unset signal. Cancelling parent also sets it.
func NewStopSignal(parent context.Context) *StopSignal {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	return &StopSignal{ctx: ctx, cancel: cancel}
}

// Set marks the signal. Only the first call has an effect.
func (s *StopSignal) Set() {
	if s.set.CompareAndSwap(false, true) {
		s.cancel()
	}
}

// IsSet reports whether the signal was set or its parent context ended.
func (s *StopSignal) IsSet() bool {
	return s.set.Load() || s.ctx.Err() != nil
}

// Done is closed once the signal is set.
func (s *StopSignal) Done() <-chan struct{} { return s.ctx.Done() }

// Context is cancelled exactly when the signal is set; backends hand it to
// blocking I/O so an in-flight request is torn down with the session.
func (s *StopSignal) Context() context.Context { return s.ctx }
