package registry

import (
	"sync"
	"sync/atomic"

	"streamd/internal/bridge"
	"streamd/pkg/types"
)

// EndToken is registered as a special token on every runtime at load time.
const EndToken = "[END]"

// Tokenizer turns text into token ids and accepts extra special tokens.
type Tokenizer interface {
	Encode(text string) ([]int, error)
	AddSpecialTokens(tokens ...string)
}

// Runtime is a loaded model: a generation backend plus its tokenizer.
type Runtime interface {
	bridge.Backend
	Tokenizer
	Close() error
}

// Loaded is the registry's view of the model currently serving requests.
type Loaded struct {
	Info    types.LoadedModel
	Runtime Runtime
}

type entry struct {
	loaded Loaded
	init   sync.Once
}

// Registry owns the list of known models and the single loaded runtime.
// It replaces process-wide model/tokenizer globals: callers receive it
// explicitly, and the only mutation of a runtime's tokenizer (adding
// EndToken) happens once, inside Install.
type Registry struct {
	mu     sync.RWMutex
	models []types.Model
	cur    *entry
	loads  atomic.Uint64
}

// New returns a registry over models with nothing loaded.
func New(models []types.Model) *Registry {
	return &Registry{models: append([]types.Model(nil), models...)}
}

// Models returns a copy of the known models.
func (r *Registry) Models() []types.Model {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.Model, len(r.models))
	copy(out, r.models)
	return out
}

// SetModels replaces the known models, e.g. after a rescan.
func (r *Registry) SetModels(models []types.Model) {
	r.mu.Lock()
	r.models = append([]types.Model(nil), models...)
	r.mu.Unlock()
}

// Lookup finds a known model by id.
func (r *Registry) Lookup(id string) (types.Model, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.models {
		if m.ID == id {
			return m, true
		}
	}
	return types.Model{}, false
}

// IsModelLoaded reports whether a runtime is installed.
func (r *Registry) IsModelLoaded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cur != nil
}

// Current returns the loaded model, if any.
func (r *Registry) Current() (Loaded, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.cur == nil {
		return Loaded{}, false
	}
	return r.cur.loaded, true
}

// Install makes rt the loaded runtime and returns the one it replaced (the
// caller closes it). Special tokens are registered before rt becomes visible.
func (r *Registry) Install(info types.LoadedModel, rt Runtime) Runtime {
	e := &entry{loaded: Loaded{Info: info, Runtime: rt}}
	e.init.Do(func() { rt.AddSpecialTokens(EndToken) })

	r.mu.Lock()
	prev := r.cur
	r.cur = e
	r.mu.Unlock()
	r.loads.Add(1)
	if prev == nil {
		return nil
	}
	return prev.loaded.Runtime
}

// Remove unloads the current runtime and returns it (nil when none).
func (r *Registry) Remove() Runtime {
	r.mu.Lock()
	prev := r.cur
	r.cur = nil
	r.mu.Unlock()
	if prev == nil {
		return nil
	}
	return prev.loaded.Runtime
}

// LoadsTotal counts successful Install calls.
func (r *Registry) LoadsTotal() uint64 { return r.loads.Load() }
