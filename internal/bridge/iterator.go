package bridge

import (
	"context"
	"time"
)

// Iterator pulls a producer's items for one consumer. Next only suspends the
// calling goroutine; it never touches the producer goroutine beyond setting
// the StopSignal when the consumer gives up. It is not restartable.
type Iterator struct {
	items       <-chan Item
	stop        *StopSignal
	stepTimeout time.Duration
	finished    bool
}

// NewIterator reads from items. A positive stepTimeout bounds the wait for
// each item; on expiry the session is stopped and ErrStepTimeout is reported.
func NewIterator(items <-chan Item, stop *StopSignal, stepTimeout time.Duration) *Iterator {
	return &Iterator{items: items, stop: stop, stepTimeout: stepTimeout}
}

// Next returns the next item in production order. The terminal item (ItemDone
// or ItemError) is returned exactly once, after which ok is false. ok is also
// false, with nothing returned, when ctx ends first: that is a disconnect and
// the StopSignal is set so the producer winds down on its next step.
func (it *Iterator) Next(ctx context.Context) (Item, bool) {
	if it.finished {
		return Item{}, false
	}
	if ctx.Err() != nil {
		return it.abandon(), false
	}

	var timeout <-chan time.Time
	if it.stepTimeout > 0 {
		t := time.NewTimer(it.stepTimeout)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case item, open := <-it.items:
		if !open {
			// Producer left without a terminal item: the signal was set
			// elsewhere. Still hand back a terminal so the stream closes cleanly.
			it.finished = true
			if ctx.Err() != nil {
				return Item{}, false
			}
			return Item{Kind: ItemError, Err: ErrStopped}, true
		}
		if item.Terminal() {
			it.finished = true
		}
		return item, true
	case <-ctx.Done():
		return it.abandon(), false
	case <-timeout:
		it.finished = true
		it.stop.Set()
		return Item{Kind: ItemError, Err: ErrStepTimeout}, true
	}
}

func (it *Iterator) abandon() Item {
	it.finished = true
	it.stop.Set()
	return Item{}
}
