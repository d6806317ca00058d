package bridge

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// scriptBackend emits a fixed list of fragments, optionally failing after
// failAfter of them, or loops forever when endless is set.
type scriptBackend struct {
	limits    Limits
	fragments []string
	failAfter int
	err       error
	panicMsg  string
	endless   bool
	stepDelay time.Duration

	calls atomic.Int32
	steps atomic.Int32
	exits atomic.Int32
}

func (b *scriptBackend) Name() string   { return "script" }
func (b *scriptBackend) Limits() Limits { return b.limits }

func (b *scriptBackend) Generate(ctx context.Context, prompt string, cfg GenerationConfig, stop *StopSignal, emit EmitFunc) error {
	b.calls.Add(1)
	defer b.exits.Add(1)
	if b.panicMsg != "" {
		panic(b.panicMsg)
	}
	for i := 0; b.endless || i < len(b.fragments); i++ {
		if b.err != nil && i == b.failAfter {
			return b.err
		}
		if stop.IsSet() {
			return ErrStopped
		}
		if b.stepDelay > 0 {
			select {
			case <-time.After(b.stepDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		b.steps.Add(1)
		frag := "x"
		if !b.endless {
			frag = b.fragments[i]
		}
		if err := emit(frag); err != nil {
			return err
		}
	}
	if b.err != nil && b.failAfter >= len(b.fragments) {
		return b.err
	}
	return nil
}

// blockingBackend waits for its context, e.g. to exercise MaxTime.
type blockingBackend struct{}

func (blockingBackend) Name() string   { return "blocking" }
func (blockingBackend) Limits() Limits { return Limits{} }
func (blockingBackend) Generate(ctx context.Context, _ string, _ GenerationConfig, _ *StopSignal, emit EmitFunc) error {
	if err := emit("first"); err != nil {
		return err
	}
	<-ctx.Done()
	return ctx.Err()
}

func testConfig() GenerationConfig {
	return GenerationConfig{}.WithDefaults()
}

func testLogger() zerolog.Logger { return zerolog.Nop() }

// testCtx returns a context with a short timeout, canceled on test cleanup.
func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return c
}

// parseFrames splits an SSE body into frame payloads (without "data: ").
func parseFrames(t *testing.T, body string) []string {
	t.Helper()
	var out []string
	for _, raw := range strings.Split(body, "\n\n") {
		if raw == "" {
			continue
		}
		if !strings.HasPrefix(raw, "data: ") {
			t.Fatalf("frame without data prefix: %q", raw)
		}
		out = append(out, strings.TrimPrefix(raw, "data: "))
	}
	return out
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", d)
}
