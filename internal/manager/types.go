package manager

import (
	"sync/atomic"
	"time"
)

// State represents lifecycle state of the manager.
type State string

const (
	StateEmpty    State = "empty"
	StateLoading  State = "loading"
	StateReady    State = "ready"
	StateDraining State = "draining"
	StateError    State = "error"
)

// slot is the admission state of one loaded model. A new slot is created on
// every load so that sessions admitted against a replaced runtime drain on
// the old slot while new work queues on the new one.
type slot struct {
	modelID  string
	loadedAt time.Time
	// Queueing primitives
	genCh   chan struct{} // size 1: single in-flight generation
	queueCh chan struct{} // buffered: queue slots

	active   atomic.Int64
	draining atomic.Bool
}

func newSlot(modelID string, depth int) *slot {
	return &slot{
		modelID:  modelID,
		loadedAt: time.Now(),
		genCh:    make(chan struct{}, 1),
		queueCh:  make(chan struct{}, depth),
	}
}
