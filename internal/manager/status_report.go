package manager

import (
	"time"

	"streamd/pkg/types"
)

// Snapshot is a read-only projection of the manager state.
type Snapshot struct {
	State State
	Err   string
}

// Snapshot returns a read-only view of the manager state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{State: m.state, Err: m.err}
}

// Status builds a detailed status response for /status.
func (m *Manager) Status() types.StatusResponse {
	m.mu.RLock()
	state, lastErr, s := m.state, m.err, m.slot
	m.mu.RUnlock()
	now := time.Now()
	resp := types.StatusResponse{
		State:            string(state),
		Loaded:           m.Loaded(),
		ActiveSessions:   int(m.active.Load()),
		MaxQueueDepth:    m.cfg.MaxQueueDepth,
		ParallelSessions: m.cfg.ParallelSessions,
		LastError:        lastErr,
		UptimeSeconds:    int64(now.Sub(m.startTime).Seconds()),
		ServerTimeUnix:   now.Unix(),
		LoadsTotal:       m.reg.LoadsTotal(),
		SessionsTotal:    m.sessions.Load(),
	}
	if s != nil && !m.cfg.ParallelSessions {
		// queueCh counts the in-flight session too
		if q := len(s.queueCh) - len(s.genCh); q > 0 {
			resp.QueueLen = q
		}
	}
	return resp
}
