package bridge

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"streamd/pkg/types"
)

// Outcome is how a session ended.
type Outcome string

const (
	OutcomeStop      Outcome = "stop"
	OutcomeError     Outcome = "error"
	OutcomeCancelled Outcome = "cancelled"
)

// SessionOptions configure a Session.
type SessionOptions struct {
	// Model is the name reported in every chunk.
	Model       string
	Granularity Granularity
	QueueSize   int
	StepTimeout time.Duration
	MaxTime     time.Duration
	Logger      zerolog.Logger
}

// Session is the lifecycle state of one generation request: the StopSignal,
// the producer goroutine, the iterator over its queue and the formatter with
// the response id. It serves exactly one consumer, either Stream or
// WriteAggregate, and is closed by them.
type Session struct {
	backend  Backend
	stop     *StopSignal
	producer *Producer
	iter     *Iterator
	format   *Formatter
	log      zerolog.Logger
	started  time.Time

	closeOnce sync.Once
	outcome   Outcome
}

// Result is a fully drained session.
type Result struct {
	Text         string
	FinishReason string
	Err          error
	Fragments    int
}

// NewSession starts generating immediately.
func NewSession(b Backend, prompt string, cfg GenerationConfig, opts SessionOptions) *Session {
	stop := NewStopSignal(context.Background())
	f := NewFormatter(opts.Model, opts.Granularity)
	log := opts.Logger.With().Str("completion_id", f.ID).Str("backend", b.Name()).Logger()
	p := StartProducer(b, prompt, cfg, stop, ProducerOptions{
		QueueSize: opts.QueueSize,
		MaxTime:   opts.MaxTime,
		Logger:    log,
	})
	sessionsActive.Inc()
	log.Debug().Int("max_new_tokens", cfg.MaxNewTokens).Str("granularity", string(f.Granularity)).Msg("session start")
	return &Session{
		backend:  b,
		stop:     stop,
		producer: p,
		iter:     NewIterator(p.Items(), stop, opts.StepTimeout),
		format:   f,
		log:      log,
		started:  time.Now(),
		outcome:  OutcomeCancelled,
	}
}

// ID is the completion id shared by every chunk of the response.
func (s *Session) ID() string { return s.format.ID }

// StopSignal exposes the session's signal, e.g. for shutdown hooks.
func (s *Session) StopSignal() *StopSignal { return s.stop }

// Outcome is valid after Stream or WriteAggregate returned.
func (s *Session) Outcome() Outcome { return s.outcome }

// Fragments is the number of fragments the producer queued.
func (s *Session) Fragments() int64 { return s.producer.Emitted() }

// Stream writes the session as SSE frames: an optional role chunk, content
// chunks in production order, one terminal chunk and [DONE]. The returned
// error is non-nil only when writing to w failed; generation failures travel
// inside the stream as an error chunk.
func (s *Session) Stream(ctx context.Context, w io.Writer, flush func()) (err error) {
	fw := &frameWriter{w: w, flush: flush}
	terminal := false
	defer s.finish(fw, &terminal, &err)

	if s.backend.Limits().AnnounceRole && !fw.frame(s.format.Role()) {
		return
	}
	for {
		item, ok := s.iter.Next(ctx)
		if !ok {
			s.outcome = OutcomeCancelled
			return
		}
		switch item.Kind {
		case ItemFragment:
			for _, c := range s.format.Content(item.Text) {
				if !fw.frame(c) {
					return
				}
			}
		case ItemDone:
			terminal = true
			s.outcome = OutcomeStop
			fw.frame(s.format.Stop())
			return
		case ItemError:
			terminal = true
			s.outcome = OutcomeError
			fw.frame(s.format.Error(item.Err))
			return
		}
	}
}

// Collect drains the session without writing anything. ok is false when ctx
// ended before the terminal item.
func (s *Session) Collect(ctx context.Context) (res Result, ok bool) {
	var b strings.Builder
	for {
		item, more := s.iter.Next(ctx)
		if !more {
			res.Text = b.String()
			return res, false
		}
		switch item.Kind {
		case ItemFragment:
			b.WriteString(item.Text)
			res.Fragments++
		case ItemDone:
			res.Text = b.String()
			res.FinishReason = types.FinishStop
			return res, true
		case ItemError:
			res.Text = b.String()
			res.FinishReason = types.FinishError
			res.Err = item.Err
			return res, true
		}
	}
}

// WriteAggregate drains the session and writes one chat.completion frame with
// finish_reason set, then [DONE].
func (s *Session) WriteAggregate(ctx context.Context, w io.Writer, flush func()) (err error) {
	fw := &frameWriter{w: w, flush: flush}
	terminal := false
	defer s.finish(fw, &terminal, &err)

	res, ok := s.Collect(ctx)
	if !ok {
		s.outcome = OutcomeCancelled
		return
	}
	content := res.Text
	s.outcome = OutcomeStop
	if res.Err != nil {
		content = ErrorContent(res.Err)
		s.outcome = OutcomeError
	}
	terminal = true
	fw.frame(s.format.Aggregate(content, res.FinishReason))
	return
}

// finish runs deferred on every consumer exit path: it converts a panic into
// an error chunk, writes [DONE] after any terminal chunk, and closes the session.
func (s *Session) finish(fw *frameWriter, terminal *bool, err *error) {
	if r := recover(); r != nil {
		s.log.Error().Interface("panic", r).Msg("session panic")
		if !*terminal {
			*terminal = true
			s.outcome = OutcomeError
			fw.frame(s.format.Error(fmt.Errorf("internal error: %v", r)))
		}
	}
	if *terminal {
		fw.done()
	}
	if fw.err != nil {
		s.outcome = OutcomeCancelled
		*err = fw.err
	}
	s.Close()
}

// Close sets the StopSignal and waits for the producer goroutine to exit.
// It is safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.stop.Set()
		_ = s.producer.Wait()
		dur := time.Since(s.started)
		sessionsActive.Dec()
		sessionsTotal.WithLabelValues(s.backend.Name(), string(s.outcome)).Inc()
		sessionDuration.WithLabelValues(s.backend.Name()).Observe(dur.Seconds())
		s.log.Debug().
			Str("outcome", string(s.outcome)).
			Int64("fragments", s.producer.Emitted()).
			Int64("stalls", s.producer.Stalls()).
			Dur("dur", dur).
			Msg("session end")
	})
}

// WriteFailure writes a standalone error chunk and [DONE] for failures that
// happen after a response was accepted but before a session could start.
func WriteFailure(w io.Writer, flush func(), model string, cause error) error {
	fw := &frameWriter{w: w, flush: flush}
	f := NewFormatter(model, GranularityFragment)
	if fw.frame(f.Error(cause)) {
		fw.done()
	}
	return fw.err
}

// frameWriter remembers the first transport error and skips writes after it.
type frameWriter struct {
	w     io.Writer
	flush func()
	err   error
}

func (fw *frameWriter) frame(v any) bool {
	if fw.err != nil {
		return false
	}
	if err := WriteFrame(fw.w, v); err != nil {
		fw.err = err
		return false
	}
	if fw.flush != nil {
		fw.flush()
	}
	return true
}

func (fw *frameWriter) done() bool {
	if fw.err != nil {
		return false
	}
	if err := WriteDone(fw.w); err != nil {
		fw.err = err
		return false
	}
	if fw.flush != nil {
		fw.flush()
	}
	return true
}
