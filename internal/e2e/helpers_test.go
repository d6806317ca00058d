package e2e

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"streamd/internal/bridge"
	"streamd/internal/httpapi"
	"streamd/internal/manager"
	"streamd/internal/registry"
	"streamd/pkg/types"
)

// createTempModelsDir creates a temporary directory populated with empty .gguf files
// and returns the directory path and the list of model IDs (filenames).
func createTempModelsDir(t *testing.T, names ...string) (string, []string) {
	t.Helper()
	dir := t.TempDir()
	for _, n := range names {
		p := filepath.Join(dir, n)
		if err := os.WriteFile(p, []byte(""), 0o644); err != nil {
			t.Fatalf("write temp model %s: %v", p, err)
		}
	}
	return dir, names
}

// scriptedRuntime replays fragments for every prompt. When gate is non-nil
// each generation waits for a value on it before emitting.
type scriptedRuntime struct {
	fragments []string
	gate      chan struct{}
}

func (r *scriptedRuntime) Name() string                   { return "scripted" }
func (r *scriptedRuntime) Limits() bridge.Limits          { return bridge.Limits{} }
func (r *scriptedRuntime) Encode(s string) ([]int, error) { return make([]int, len(strings.Fields(s))), nil }
func (r *scriptedRuntime) AddSpecialTokens(...string)     {}
func (r *scriptedRuntime) Close() error                   { return nil }

func (r *scriptedRuntime) Generate(ctx context.Context, prompt string, cfg bridge.GenerationConfig, stop *bridge.StopSignal, emit bridge.EmitFunc) error {
	if r.gate != nil {
		select {
		case <-r.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	for _, f := range r.fragments {
		if stop.IsSet() {
			return bridge.ErrStopped
		}
		if err := emit(f); err != nil {
			return err
		}
	}
	return nil
}

type scriptedAdapter struct{ rt *scriptedRuntime }

func (a scriptedAdapter) Load(ctx context.Context, mdl types.Model, device string) (registry.Runtime, error) {
	return a.rt, nil
}

// newServer scans modelsDir and serves it through a manager whose llama.cpp
// runtime is replaced by rt.
func newServer(t *testing.T, modelsDir string, cfg manager.ManagerConfig, rt *scriptedRuntime) (*httptest.Server, *manager.Manager) {
	t.Helper()
	models, err := registry.NewGGUFScanner(types.ModelTypeLlamaCPP).Scan(modelsDir)
	if err != nil {
		t.Fatalf("scan models: %v", err)
	}
	cfg.Registry = registry.New(models)
	if rt != nil {
		cfg.Adapters = map[string]manager.InferenceAdapter{types.ModelTypeLlamaCPP: scriptedAdapter{rt: rt}}
	}
	mgr := manager.NewWithConfig(cfg)
	srv := httptest.NewServer(httpapi.NewMux(mgr))
	t.Cleanup(func() {
		srv.Close()
		_ = mgr.Close()
	})
	return srv, mgr
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func httpPostJSON(t *testing.T, url string, payload []byte) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

// sseResult is a parsed event stream.
type sseResult struct {
	chunks []types.StreamChunk
	done   bool
}

func (r sseResult) content() string {
	var b strings.Builder
	for _, c := range r.chunks {
		for _, ch := range c.Choices {
			b.WriteString(ch.Delta.Content)
		}
	}
	return b.String()
}

func (r sseResult) finishReasons() []string {
	var out []string
	for _, c := range r.chunks {
		for _, ch := range c.Choices {
			if ch.FinishReason != nil {
				out = append(out, *ch.FinishReason)
			}
		}
	}
	return out
}

func parseSSE(t *testing.T, body []byte) sseResult {
	t.Helper()
	var res sseResult
	sc := bufio.NewScanner(bytes.NewReader(body))
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		payload, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			t.Fatalf("unexpected line %q", line)
		}
		if res.done {
			t.Fatalf("frame after [DONE]: %q", line)
		}
		if payload == "[DONE]" {
			res.done = true
			continue
		}
		var c types.StreamChunk
		if err := json.Unmarshal([]byte(payload), &c); err != nil {
			t.Fatalf("chunk json: %v (%q)", err, payload)
		}
		res.chunks = append(res.chunks, c)
	}
	return res
}
