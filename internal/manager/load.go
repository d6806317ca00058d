package manager

import (
	"context"
	"fmt"
	"strings"
	"time"

	"streamd/internal/registry"
	"streamd/pkg/types"
)

// Load brings the requested model up through the adapter for its runtime type
// and installs it as the one loaded model. An empty request loads the
// configured default model. Loading the model that is already loaded with the
// same type and device is a no-op. Sessions still running against a replaced
// runtime are drained before it is closed.
func (m *Manager) Load(ctx context.Context, req types.LoadModelRequest) (types.LoadedModel, error) {
	id := strings.TrimSpace(req.Model)
	if id == "" {
		id = m.cfg.DefaultModel
		if id == "" {
			return types.LoadedModel{}, ErrModelNotFound("(unspecified)")
		}
	}
	mdl, ok := m.reg.Lookup(id)
	if !ok {
		return types.LoadedModel{}, ErrModelNotFound(id)
	}
	typ := firstNonEmpty(req.Type, mdl.Type, m.cfg.Backend)
	adapter := m.adapters[typ]
	if adapter == nil {
		return types.LoadedModel{}, ErrInvalidRequest(fmt.Sprintf("unknown model type %q", typ))
	}
	device := firstNonEmpty(req.Device, m.cfg.Device, "cpu")

	m.loadMu.Lock()
	defer m.loadMu.Unlock()

	if cur, ok := m.reg.Current(); ok && cur.Info.ID == id && cur.Info.Type == typ && cur.Info.Device == device {
		return cur.Info, nil
	}

	m.mu.Lock()
	m.state = StateLoading
	m.mu.Unlock()
	m.publish("load_start", id, map[string]any{"type": typ, "device": device})
	start := time.Now()

	rt, err := adapter.Load(ctx, mdl, device)
	if err != nil {
		m.setError(err)
		m.publish("load_error", id, map[string]any{"error": err.Error()})
		return types.LoadedModel{}, fmt.Errorf("load %s: %w", id, err)
	}

	mdl.Type = typ
	info := types.LoadedModel{Model: mdl, Device: device, LoadedAt: time.Now().Unix()}
	m.mu.Lock()
	prevSlot := m.slot
	prev := m.reg.Install(info, rt)
	m.slot = newSlot(id, m.cfg.MaxQueueDepth)
	m.state = StateReady
	m.err = ""
	m.mu.Unlock()

	if prev != nil {
		m.retire(prevSlot, prev)
	}
	m.publish("load_done", id, map[string]any{"type": typ, "device": device, "dur_ms": time.Since(start).Milliseconds()})
	return info, nil
}

// Unload drains and closes the loaded runtime.
func (m *Manager) Unload() error {
	m.loadMu.Lock()
	defer m.loadMu.Unlock()

	m.mu.Lock()
	s := m.slot
	if s == nil || !m.reg.IsModelLoaded() {
		m.mu.Unlock()
		return ErrNoModelLoaded
	}
	m.state = StateDraining
	m.mu.Unlock()
	m.publish("unload_start", s.modelID, nil)

	drained := m.drain(s)

	m.mu.Lock()
	rt := m.reg.Remove()
	m.slot = nil
	m.state = StateEmpty
	m.mu.Unlock()

	if rt != nil {
		m.closeWhenIdle(s, rt, drained)
	}
	m.publish("unload_done", s.modelID, nil)
	return nil
}

// retire drains a replaced slot and closes its runtime.
func (m *Manager) retire(s *slot, rt registry.Runtime) {
	drained := s == nil || m.drain(s)
	m.closeWhenIdle(s, rt, drained)
}

// closeWhenIdle closes rt now if its slot drained, otherwise once the
// sessions still running on it have finished.
func (m *Manager) closeWhenIdle(s *slot, rt registry.Runtime, drained bool) {
	closeRT := func() {
		if err := rt.Close(); err != nil {
			m.log.Warn().Err(err).Msg("close runtime")
		}
	}
	if drained || s == nil {
		closeRT()
		return
	}
	m.log.Warn().Str("model", s.modelID).Int64("inflight", s.active.Load()).
		Msg("drain timed out, runtime closes after its sessions finish")
	m.closing.Add(1)
	go func() {
		defer m.closing.Done()
		for s.active.Load() > 0 || len(s.queueCh) > 0 {
			time.Sleep(10 * time.Millisecond)
		}
		closeRT()
	}()
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
