package manager

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"streamd/internal/registry"
	"streamd/pkg/types"
)

// Manager owns the model registry and turns requests into generation sessions.
type Manager struct {
	cfg ManagerConfig
	reg *registry.Registry

	// loadMu serializes Load/Unload; mu guards the fields below it.
	loadMu sync.Mutex
	mu     sync.RWMutex
	state  State
	err    string
	slot   *slot

	adapters  map[string]InferenceAdapter
	log       zerolog.Logger
	publisher EventPublisher

	active    atomic.Int64
	sessions  atomic.Uint64
	startTime time.Time

	// closing tracks runtimes whose close waits on sessions outliving a drain.
	closing sync.WaitGroup
}

// New builds a Manager over reg with package defaults.
func New(reg *registry.Registry, defaultModel string) *Manager {
	return NewWithConfig(ManagerConfig{Registry: reg, DefaultModel: defaultModel})
}

// Registry exposes the model registry owned by the manager.
func (m *Manager) Registry() *registry.Registry { return m.reg }

// Ready reports whether a model is loaded and accepting work.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state == StateReady && m.reg.IsModelLoaded()
}

// ListModels returns the known models.
func (m *Manager) ListModels() []types.Model { return m.reg.Models() }

// Loaded returns the currently loaded model, or nil.
func (m *Manager) Loaded() *types.LoadedModel {
	cur, ok := m.reg.Current()
	if !ok {
		return nil
	}
	info := cur.Info
	return &info
}

// SetEventPublisher installs an EventPublisher for emitting lifecycle events.
func (m *Manager) SetEventPublisher(p EventPublisher) {
	if p == nil {
		p = noopPublisher{}
	}
	m.mu.Lock()
	m.publisher = p
	m.mu.Unlock()
	if sa, ok := m.adapters[types.ModelTypeLlamaCPP].(*llamaSubprocessAdapter); ok {
		sa.setPublisher(p)
	}
}

func (m *Manager) publish(name, modelID string, fields map[string]any) {
	m.mu.RLock()
	p := m.publisher
	m.mu.RUnlock()
	if fields == nil {
		fields = map[string]any{}
	}
	p.Publish(Event{Name: name, ModelID: modelID, Fields: fields})
	m.log.Debug().Str("event", name).Str("model", modelID).Fields(fields).Msg("event")
}

// setError records a failed load. A runtime that is still installed keeps
// serving, so the state only drops to error when nothing is loaded.
func (m *Manager) setError(err error) {
	m.mu.Lock()
	m.err = err.Error()
	m.state = StateError
	if m.slot != nil && m.reg.IsModelLoaded() {
		m.state = StateReady
	}
	m.mu.Unlock()
}

// Close unloads the current model and stops every external process.
func (m *Manager) Close() error {
	err := m.Unload()
	if err != nil && IsNoModelLoaded(err) {
		err = nil
	}
	m.closing.Wait()
	for _, a := range m.adapters {
		if s, ok := a.(interface{ StopAll() }); ok {
			s.StopAll()
		}
	}
	return err
}

// InProcessBuilt reports whether this binary links the in-process runtime.
func InProcessBuilt() bool { return llamaBuilt }
