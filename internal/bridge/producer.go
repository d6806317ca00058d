package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// DefaultQueueSize is the producer channel capacity when none is configured.
const DefaultQueueSize = 64

// ProducerOptions tune a Producer.
type ProducerOptions struct {
	// QueueSize is the channel capacity; values < 1 use DefaultQueueSize.
	QueueSize int
	// MaxTime caps generation wall-clock time. Hitting it ends the stream
	// normally, like a model reaching its token budget. Zero disables it.
	MaxTime time.Duration
	Logger  zerolog.Logger
}

// Producer runs a backend generation on a dedicated goroutine and publishes
// its fragments, in order, on a bounded channel. The last item is always
// ItemDone or ItemError unless the StopSignal was set first, in which case
// nothing more is written and the channel is simply closed.
type Producer struct {
	out  chan Item
	done chan struct{}
	stop *StopSignal
	log  zerolog.Logger

	emitted atomic.Int64
	stalls  atomic.Int64
	err     error
}

// StartProducer launches b.Generate and returns immediately.
func StartProducer(b Backend, prompt string, cfg GenerationConfig, stop *StopSignal, opts ProducerOptions) *Producer {
	size := opts.QueueSize
	if size < 1 {
		size = DefaultQueueSize
	}
	p := &Producer{
		out:  make(chan Item, size),
		done: make(chan struct{}),
		stop: stop,
		log:  opts.Logger,
	}
	go p.run(b, prompt, cfg, opts.MaxTime)
	return p
}

// Items is the receive side of the queue. It is closed when the producer exits.
func (p *Producer) Items() <-chan Item { return p.out }

// Done is closed once the producer goroutine has exited.
func (p *Producer) Done() <-chan struct{} { return p.done }

// Wait blocks until the producer goroutine has exited and returns the
// backend error, if any. It does not interrupt the backend: set the
// StopSignal first to ask it to finish.
func (p *Producer) Wait() error {
	<-p.done
	return p.err
}

// Emitted is the number of fragments written to the queue.
func (p *Producer) Emitted() int64 { return p.emitted.Load() }

// Stalls counts how often the producer found the queue full.
func (p *Producer) Stalls() int64 { return p.stalls.Load() }

func (p *Producer) run(b Backend, prompt string, cfg GenerationConfig, maxTime time.Duration) {
	defer close(p.done)
	defer close(p.out)

	ctx := p.stop.Context()
	if maxTime > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, maxTime)
		defer cancel()
	}
	err := p.generate(ctx, b, prompt, cfg)
	p.err = err

	switch {
	case p.stop.IsSet():
		p.log.Debug().Int64("fragments", p.Emitted()).Msg("producer stopped")
	case err == nil:
		p.push(Item{Kind: ItemDone})
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		p.log.Info().Dur("max_time", maxTime).Int64("fragments", p.Emitted()).Msg("generation time limit reached")
		p.err = nil
		p.push(Item{Kind: ItemDone})
	default:
		p.log.Warn().Err(err).Int64("fragments", p.Emitted()).Msg("backend generation failed")
		p.push(Item{Kind: ItemError, Err: err})
	}
}

func (p *Producer) generate(ctx context.Context, b Backend, prompt string, cfg GenerationConfig) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("backend panic: %v", r)
		}
	}()
	return b.Generate(ctx, prompt, cfg, p.stop, p.emit)
}

func (p *Producer) emit(fragment string) error {
	if fragment == "" {
		return nil
	}
	if !p.push(Item{Kind: ItemFragment, Text: fragment}) {
		return ErrStopped
	}
	p.emitted.Add(1)
	fragmentsTotal.Inc()
	return nil
}

// push enqueues it, blocking while the queue is full. It returns false
// without writing once the StopSignal is set.
func (p *Producer) push(it Item) bool {
	if p.stop.IsSet() {
		return false
	}
	select {
	case p.out <- it:
		return true
	default:
	}
	p.stalls.Add(1)
	queueFullTotal.Inc()
	select {
	case p.out <- it:
		return true
	case <-p.stop.Done():
		return false
	}
}
