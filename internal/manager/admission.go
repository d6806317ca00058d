package manager

import (
	"context"
	"time"

	"streamd/internal/registry"
)

// admit resolves the loaded model and reserves capacity on its slot. With
// ParallelSessions only the active count is tracked; otherwise a queue slot
// and then the single in-flight slot are reserved. Returns a release func to
// be deferred.
func (m *Manager) admit(ctx context.Context) (registry.Loaded, func(), error) {
	s, cur, ok := m.current()
	if !ok {
		return registry.Loaded{}, func() {}, ErrNoModelLoaded
	}
	release, err := m.beginGeneration(ctx, s)
	if err != nil {
		return registry.Loaded{}, func() {}, err
	}
	return cur, release, nil
}

// current returns the slot and the loaded model as one pair. Load and Unload
// swap both under mu, so they are read under it too.
func (m *Manager) current() (*slot, registry.Loaded, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cur, ok := m.reg.Current()
	if !ok || m.slot == nil {
		return nil, registry.Loaded{}, false
	}
	return m.slot, cur, true
}

// beginGeneration reserves a queue slot and then the single in-flight slot.
func (m *Manager) beginGeneration(ctx context.Context, s *slot) (func(), error) {
	// If draining, reject new work to allow graceful unload
	if s.draining.Load() {
		return func() {}, tooBusyError{modelID: s.modelID}
	}
	// Fast path: respect an already-canceled context
	if err := ctx.Err(); err != nil {
		return func() {}, err
	}
	track := func() func() {
		s.active.Add(1)
		m.active.Add(1)
		return func() {
			s.active.Add(-1)
			m.active.Add(-1)
		}
	}
	if m.cfg.ParallelSessions {
		return track(), nil
	}

	timer := time.NewTimer(m.cfg.MaxWait)
	defer timer.Stop()
	select {
	case s.queueCh <- struct{}{}:
		// reserved queue slot
	case <-ctx.Done():
		return func() {}, ctx.Err()
	case <-timer.C:
		return func() {}, tooBusyError{modelID: s.modelID}
	}

	// Wait to acquire the single in-flight slot
	acquired := false
	defer func() {
		if !acquired {
			<-s.queueCh
		}
	}()
	if err := ctx.Err(); err != nil {
		return func() {}, err
	}
	timer2 := time.NewTimer(m.cfg.MaxWait)
	defer timer2.Stop()
	select {
	case s.genCh <- struct{}{}:
		acquired = true
		untrack := track()
		return func() { untrack(); <-s.genCh; <-s.queueCh }, nil
	case <-ctx.Done():
		return func() {}, ctx.Err()
	case <-timer2.C:
		return func() {}, tooBusyError{modelID: s.modelID}
	}
}

// drain marks s as draining and waits up to DrainTimeout for its sessions.
// It reports whether the slot emptied in time.
func (m *Manager) drain(s *slot) bool {
	s.draining.Store(true)
	deadline := time.Now().Add(m.cfg.DrainTimeout)
	for {
		inflight := s.active.Load()
		qlen := len(s.queueCh)
		if inflight == 0 && qlen == 0 {
			return true
		}
		if time.Now().After(deadline) {
			m.publish("unload_timeout", s.modelID, map[string]any{"inflight": inflight, "queue": qlen})
			return false
		}
		time.Sleep(10 * time.Millisecond)
	}
}
