//go:build llama

package manager

import (
	"context"
	"errors"
	"strings"
	"sync"

	llama "github.com/go-skynet/go-llama.cpp"

	"streamd/internal/bridge"
	"streamd/internal/registry"
	"streamd/pkg/types"
)

// llamaBuilt indicates this binary was compiled with real llama support.
var llamaBuilt = true

// llamaAdapter holds global config used to initialize a model instance
type llamaAdapter struct {
	ctxSize int
	threads int
}

func NewLlamaAdapter(ctxSize, threads int) InferenceAdapter {
	return &llamaAdapter{ctxSize: ctxSize, threads: threads}
}

func (a *llamaAdapter) Load(ctx context.Context, mdl types.Model, device string) (registry.Runtime, error) {
	if strings.TrimSpace(mdl.Path) == "" {
		return nil, errors.New("model path is empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var mo []llama.ModelOption
	if a.ctxSize > 0 {
		mo = append(mo, llama.SetContext(a.ctxSize))
	}
	if device != "" && device != "cpu" {
		mo = append(mo, llama.SetGPULayers(99))
	}
	m, err := llama.New(mdl.Path, mo...)
	if err != nil {
		return nil, err
	}
	return &llamaRuntime{model: m, threads: a.threads}, nil
}

// llamaRuntime owns the loaded model. go-llama.cpp keeps one token callback
// per model, so generations on the same runtime run one at a time.
type llamaRuntime struct {
	genMu   sync.Mutex
	model   *llama.LLama
	threads int

	mu      sync.RWMutex
	special []string
}

func (r *llamaRuntime) Name() string { return types.ModelTypeInProcess }

func (r *llamaRuntime) Limits() bridge.Limits { return bridge.Limits{AnnounceRole: true} }

// Generate streams one fragment per sampled token. The token callback is the
// decoding step: it checks the StopSignal before handing text on.
func (r *llamaRuntime) Generate(ctx context.Context, prompt string, cfg bridge.GenerationConfig, stop *bridge.StopSignal, emit bridge.EmitFunc) error {
	r.genMu.Lock()
	defer r.genMu.Unlock()
	if r.model == nil {
		return errors.New("llama model not initialized")
	}

	var cursor bridge.TextCursor
	var emitErr error
	r.model.SetTokenCallback(func(tok string) bool {
		if stop.IsSet() || ctx.Err() != nil {
			return false
		}
		if out := cursor.Append(tok); out != "" {
			if err := emit(out); err != nil {
				emitErr = err
				return false
			}
		}
		return true
	})
	_, err := r.model.Predict(prompt, r.predictOptions(cfg)...)
	if emitErr == nil && !stop.IsSet() {
		if tail := cursor.Flush(); tail != "" {
			emitErr = emit(tail)
		}
	}
	switch {
	case emitErr != nil:
		return emitErr
	case ctx.Err() != nil:
		return ctx.Err()
	case stop.IsSet():
		return bridge.ErrStopped
	}
	return err
}

func (r *llamaRuntime) Encode(text string) ([]int, error) {
	r.genMu.Lock()
	defer r.genMu.Unlock()
	if r.model == nil {
		return nil, errors.New("llama model not initialized")
	}
	_, toks, err := r.model.TokenizeString(text, llama.SetThreads(max(1, r.threads)))
	if err != nil {
		return nil, err
	}
	out := make([]int, len(toks))
	for i, t := range toks {
		out[i] = int(t)
	}
	return out, nil
}

// AddSpecialTokens registers tokens that end generation when sampled.
func (r *llamaRuntime) AddSpecialTokens(tokens ...string) {
	r.mu.Lock()
	r.special = append(r.special, tokens...)
	r.mu.Unlock()
}

func (r *llamaRuntime) Close() error {
	r.genMu.Lock()
	defer r.genMu.Unlock()
	if r.model != nil {
		r.model.Free()
		r.model = nil
	}
	return nil
}

// predictOptions converts a GenerationConfig into go-llama.cpp options.
func (r *llamaRuntime) predictOptions(cfg bridge.GenerationConfig) []llama.PredictOption {
	po := []llama.PredictOption{
		llama.SetTokens(max(1, cfg.MaxNewTokens)),
		llama.SetThreads(max(1, r.threads)),
		llama.SetTopP(float32(cfg.TopP)),
		llama.SetTopK(cfg.TopK),
		llama.SetTemperature(float32(cfg.Temperature)),
		llama.SetPenalty(float32(cfg.RepetitionPenalty)),
	}
	if cfg.Seed != 0 {
		po = append(po, llama.SetSeed(cfg.Seed))
	}
	r.mu.RLock()
	stops := append(append([]string(nil), cfg.Stop...), r.special...)
	r.mu.RUnlock()
	if len(stops) > 0 {
		po = append(po, llama.SetStopWords(stops...))
	}
	return po
}
