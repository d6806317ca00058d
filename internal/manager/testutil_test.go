package manager

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"streamd/internal/bridge"
	"streamd/internal/registry"
	"streamd/pkg/types"
)

const fakeType = "fake"

// fakeRuntime is a scripted registry.Runtime used for tests.
type fakeRuntime struct {
	limits    bridge.Limits
	fragments []string
	failAfter int
	err       error
	endless   bool
	stepDelay time.Duration
	gate      chan struct{} // when set, Generate waits for it to close
	encodeErr error

	mu      sync.Mutex
	cfgs    []bridge.GenerationConfig
	prompts []string
	special []string
	encoded int

	steps  atomic.Int32
	exits  atomic.Int32
	closed atomic.Int32
}

func (f *fakeRuntime) Name() string          { return fakeType }
func (f *fakeRuntime) Limits() bridge.Limits { return f.limits }

func (f *fakeRuntime) Generate(ctx context.Context, prompt string, cfg bridge.GenerationConfig, stop *bridge.StopSignal, emit bridge.EmitFunc) error {
	defer f.exits.Add(1)
	f.mu.Lock()
	f.cfgs = append(f.cfgs, cfg)
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	for i := 0; f.endless || i < len(f.fragments); i++ {
		if f.err != nil && i == f.failAfter {
			return f.err
		}
		if stop.IsSet() {
			return bridge.ErrStopped
		}
		if f.stepDelay > 0 {
			select {
			case <-time.After(f.stepDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		f.steps.Add(1)
		frag := "x"
		if !f.endless {
			frag = f.fragments[i]
		}
		if err := emit(frag); err != nil {
			return err
		}
	}
	if f.err != nil && f.failAfter >= len(f.fragments) {
		return f.err
	}
	return nil
}

func (f *fakeRuntime) Encode(text string) ([]int, error) {
	f.mu.Lock()
	f.encoded++
	f.mu.Unlock()
	if f.encodeErr != nil {
		return nil, f.encodeErr
	}
	return make([]int, len(strings.Fields(text))), nil
}

func (f *fakeRuntime) AddSpecialTokens(tokens ...string) {
	f.mu.Lock()
	f.special = append(f.special, tokens...)
	f.mu.Unlock()
}

func (f *fakeRuntime) Close() error { f.closed.Add(1); return nil }

func (f *fakeRuntime) lastConfig(t *testing.T) bridge.GenerationConfig {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.cfgs) == 0 {
		t.Fatalf("Generate was not called")
	}
	return f.cfgs[len(f.cfgs)-1]
}

// fakeAdapter hands out runtimes by model id.
type fakeAdapter struct {
	mu       sync.Mutex
	runtimes map[string]*fakeRuntime
	err      error
	loads    int
}

func (a *fakeAdapter) Load(ctx context.Context, mdl types.Model, device string) (registry.Runtime, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.loads++
	if a.err != nil {
		return nil, a.err
	}
	rt := a.runtimes[mdl.ID]
	if rt == nil {
		return nil, errors.New("no runtime for " + mdl.ID)
	}
	return rt, nil
}

// newTestManager builds a manager over models "m" and "n" served by fake
// runtimes; cfg fields left zero take package defaults.
func newTestManager(t *testing.T, cfg ManagerConfig, runtimes map[string]*fakeRuntime) (*Manager, *fakeAdapter) {
	t.Helper()
	ad := &fakeAdapter{runtimes: runtimes}
	cfg.Registry = registry.New([]types.Model{
		{ID: "m", Path: "m.gguf", Type: fakeType},
		{ID: "n", Path: "n.gguf", Type: fakeType},
	})
	cfg.Adapters = map[string]InferenceAdapter{fakeType: ad}
	if cfg.DrainTimeout == 0 {
		cfg.DrainTimeout = 200 * time.Millisecond
	}
	nop := zerolog.Nop()
	cfg.Logger = &nop
	m := NewWithConfig(cfg)
	t.Cleanup(func() { _ = m.Close() })
	return m, ad
}

// loadedManager returns a manager with rt loaded as model "m".
func loadedManager(t *testing.T, cfg ManagerConfig, rt *fakeRuntime) *Manager {
	t.Helper()
	m, _ := newTestManager(t, cfg, map[string]*fakeRuntime{"m": rt})
	if _, err := m.Load(testCtx(t), types.LoadModelRequest{Model: "m"}); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return m
}

// testCtx returns a context with a short timeout, canceled on test cleanup.
func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return c
}

type parsedStream struct {
	chunks []types.StreamChunk
	done   int
}

// content concatenates the delta content of all non-terminal chunks.
func (p parsedStream) content() string {
	var b strings.Builder
	for _, c := range p.chunks {
		if c.Choices[0].FinishReason == nil {
			b.WriteString(c.Choices[0].Delta.Content)
		}
	}
	return b.String()
}

func (p parsedStream) terminals() []types.StreamChunk {
	var out []types.StreamChunk
	for _, c := range p.chunks {
		if c.Choices[0].FinishReason != nil {
			out = append(out, c)
		}
	}
	return out
}

func parseStream(t *testing.T, body string) parsedStream {
	t.Helper()
	var p parsedStream
	for _, raw := range strings.Split(body, "\n\n") {
		if raw == "" {
			continue
		}
		if !strings.HasPrefix(raw, "data: ") {
			t.Fatalf("frame without data prefix: %q", raw)
		}
		data := strings.TrimPrefix(raw, "data: ")
		if data == "[DONE]" {
			p.done++
			continue
		}
		if p.done > 0 {
			t.Fatalf("frame after [DONE]: %q", data)
		}
		var c types.StreamChunk
		if err := json.Unmarshal([]byte(data), &c); err != nil {
			t.Fatalf("decode chunk %q: %v", data, err)
		}
		if len(c.Choices) != 1 {
			t.Fatalf("expected one choice, got %d", len(c.Choices))
		}
		p.chunks = append(p.chunks, c)
	}
	return p
}

// cancelAfterWriter cancels a context once n content chunks were written.
type cancelAfterWriter struct {
	mu     sync.Mutex
	b      strings.Builder
	n      int
	seen   int
	cancel context.CancelFunc
}

func (w *cancelAfterWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if strings.Contains(string(p), `"content"`) {
		w.seen++
		if w.seen == w.n {
			w.cancel()
		}
	}
	return w.b.Write(p)
}

func (w *cancelAfterWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.b.String()
}

func modelAt(path string) types.Model {
	return types.Model{ID: path, Path: path, Type: types.ModelTypeLlamaCPP}
}
