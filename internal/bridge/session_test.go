package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"streamd/pkg/types"
)

func decodeChunks(t *testing.T, frames []string) []types.StreamChunk {
	t.Helper()
	out := make([]types.StreamChunk, 0, len(frames))
	for _, f := range frames {
		var c types.StreamChunk
		if err := json.Unmarshal([]byte(f), &c); err != nil {
			t.Fatalf("frame %q: %v", f, err)
		}
		out = append(out, c)
	}
	return out
}

// checkTail asserts exactly one terminal chunk, immediately followed by [DONE].
func checkTail(t *testing.T, frames []string, finish string) []types.StreamChunk {
	t.Helper()
	if len(frames) < 2 || frames[len(frames)-1] != "[DONE]" {
		t.Fatalf("stream does not end with [DONE]: %q", frames)
	}
	chunks := decodeChunks(t, frames[:len(frames)-1])
	terminals := 0
	for i, c := range chunks {
		if fr := c.Choices[0].FinishReason; fr != nil {
			terminals++
			if i != len(chunks)-1 {
				t.Fatalf("terminal chunk at %d of %d", i, len(chunks))
			}
			if *fr != finish {
				t.Fatalf("finish_reason = %q want %q", *fr, finish)
			}
		}
	}
	if terminals != 1 {
		t.Fatalf("terminal chunks = %d", terminals)
	}
	return chunks
}

func contentOf(chunks []types.StreamChunk) string {
	var b strings.Builder
	for _, c := range chunks {
		if c.Choices[0].FinishReason == nil {
			b.WriteString(c.Choices[0].Delta.Content)
		}
	}
	return b.String()
}

func TestSession_StreamSuccess(t *testing.T) {
	frags := []string{"The", " answer", " is", " 4."}
	for _, g := range []Granularity{GranularityFragment, GranularityChar} {
		b := &scriptBackend{fragments: frags, limits: Limits{AnnounceRole: true}}
		s := NewSession(b, "2+2=", testConfig(), SessionOptions{Model: "local-model", Granularity: g, Logger: testLogger()})
		var buf bytes.Buffer
		if err := s.Stream(testCtx(t), &buf, nil); err != nil {
			t.Fatalf("stream: %v", err)
		}
		chunks := checkTail(t, parseFrames(t, buf.String()), types.FinishStop)
		if chunks[0].Choices[0].Delta.Role != "assistant" {
			t.Fatalf("first chunk should announce the role")
		}
		if got := contentOf(chunks); got != strings.Join(frags, "") {
			t.Fatalf("%s: content = %q", g, got)
		}
		for _, c := range chunks {
			if c.ID != s.ID() {
				t.Fatalf("chunk id %q != session id %q", c.ID, s.ID())
			}
		}
		if s.Outcome() != OutcomeStop {
			t.Fatalf("outcome = %s", s.Outcome())
		}
	}
}

func TestSession_BackendFailsAfterThreeFragments(t *testing.T) {
	b := &scriptBackend{fragments: []string{"a", "b", "c", "d"}, failAfter: 3, err: errors.New("backend exploded")}
	s := NewSession(b, "p", testConfig(), SessionOptions{Model: "m", Logger: testLogger()})
	var buf bytes.Buffer
	if err := s.Stream(testCtx(t), &buf, nil); err != nil {
		t.Fatalf("stream: %v", err)
	}
	chunks := checkTail(t, parseFrames(t, buf.String()), types.FinishError)
	if len(chunks) != 4 {
		t.Fatalf("chunks = %d", len(chunks))
	}
	if got := contentOf(chunks); got != "abc" {
		t.Fatalf("content = %q", got)
	}
	if msg := chunks[3].Choices[0].Delta.Content; !strings.Contains(msg, "backend exploded") {
		t.Fatalf("error chunk content = %q", msg)
	}
	if s.Outcome() != OutcomeError {
		t.Fatalf("outcome = %s", s.Outcome())
	}
}

// notifyWriter reports how many content frames were written.
type notifyWriter struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	frames int
	after  int
	hit    chan struct{}
}

func (w *notifyWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.frames++
	if w.frames == w.after {
		close(w.hit)
	}
	return w.buf.Write(p)
}

func TestSession_DisconnectStopsProducer(t *testing.T) {
	b := &scriptBackend{endless: true, stepDelay: time.Millisecond}
	s := NewSession(b, "p", testConfig(), SessionOptions{Model: "m", QueueSize: 1, Logger: testLogger()})
	w := &notifyWriter{after: 2, hit: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-w.hit
		cancel()
	}()
	if err := s.Stream(ctx, w, nil); err != nil {
		t.Fatalf("stream: %v", err)
	}
	select {
	case <-s.producer.Done():
	case <-time.After(time.Second):
		t.Fatalf("producer still running after disconnect")
	}
	if !s.StopSignal().IsSet() {
		t.Fatalf("stop signal not set")
	}
	emitted := s.Fragments()
	time.Sleep(10 * time.Millisecond)
	if s.Fragments() != emitted {
		t.Fatalf("queue writes after disconnect")
	}
	if strings.Contains(w.buf.String(), "[DONE]") || strings.Contains(w.buf.String(), "finish_reason\":\"") {
		t.Fatalf("no terminal frames expected after disconnect: %q", w.buf.String())
	}
	if s.Outcome() != OutcomeCancelled {
		t.Fatalf("outcome = %s", s.Outcome())
	}
}

type failingWriter struct{ n int }

func (w *failingWriter) Write(p []byte) (int, error) {
	w.n++
	if w.n > 1 {
		return 0, errors.New("broken pipe")
	}
	return len(p), nil
}

func TestSession_TransportErrorReturnsAndStops(t *testing.T) {
	b := &scriptBackend{endless: true}
	s := NewSession(b, "p", testConfig(), SessionOptions{Model: "m", QueueSize: 1, Logger: testLogger()})
	err := s.Stream(testCtx(t), &failingWriter{}, nil)
	if err == nil || !strings.Contains(err.Error(), "broken pipe") {
		t.Fatalf("err = %v", err)
	}
	<-s.producer.Done()
	if s.Outcome() != OutcomeCancelled {
		t.Fatalf("outcome = %s", s.Outcome())
	}
}

func TestSession_AggregateSingleFrame(t *testing.T) {
	b := &scriptBackend{fragments: []string{"4", "."}}
	s := NewSession(b, "2+2=", testConfig(), SessionOptions{Model: "m", Logger: testLogger()})
	var buf bytes.Buffer
	if err := s.WriteAggregate(testCtx(t), &buf, nil); err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	frames := parseFrames(t, buf.String())
	if len(frames) != 2 || frames[1] != "[DONE]" {
		t.Fatalf("frames = %q", frames)
	}
	c := decodeChunks(t, frames[:1])[0]
	if c.Object != types.ObjectCompletion || c.Choices[0].Delta.Content != "4." {
		t.Fatalf("aggregate = %+v", c)
	}
	if fr := c.Choices[0].FinishReason; fr == nil || *fr != types.FinishStop {
		t.Fatalf("finish_reason = %v", fr)
	}
}

func TestSession_AggregateError(t *testing.T) {
	b := &scriptBackend{fragments: []string{"x"}, failAfter: 1, err: errors.New("nope")}
	s := NewSession(b, "p", testConfig(), SessionOptions{Model: "m", Logger: testLogger()})
	var buf bytes.Buffer
	if err := s.WriteAggregate(testCtx(t), &buf, nil); err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	chunks := checkTail(t, parseFrames(t, buf.String()), types.FinishError)
	if chunks[0].Choices[0].Delta.Content != "Error: nope" {
		t.Fatalf("content = %q", chunks[0].Choices[0].Delta.Content)
	}
}

func TestSession_StepTimeoutEndsWithError(t *testing.T) {
	b := &scriptBackend{fragments: []string{"slow"}, stepDelay: 200 * time.Millisecond}
	s := NewSession(b, "p", testConfig(), SessionOptions{Model: "m", StepTimeout: 20 * time.Millisecond, Logger: testLogger()})
	var buf bytes.Buffer
	if err := s.Stream(testCtx(t), &buf, nil); err != nil {
		t.Fatalf("stream: %v", err)
	}
	chunks := checkTail(t, parseFrames(t, buf.String()), types.FinishError)
	if !strings.Contains(chunks[len(chunks)-1].Choices[0].Delta.Content, ErrStepTimeout.Error()) {
		t.Fatalf("unexpected error content: %+v", chunks)
	}
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	b := &scriptBackend{endless: true}
	s := NewSession(b, "p", testConfig(), SessionOptions{Model: "m", QueueSize: 1, Logger: testLogger()})
	s.Close()
	s.Close()
	if b.exits.Load() != 1 {
		t.Fatalf("backend exits = %d", b.exits.Load())
	}
}

func TestWriteFailure(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFailure(&buf, nil, "m", errors.New("bad template")); err != nil {
		t.Fatalf("write: %v", err)
	}
	chunks := checkTail(t, parseFrames(t, buf.String()), types.FinishError)
	if chunks[0].Choices[0].Delta.Content != "Error: bad template" {
		t.Fatalf("content = %q", chunks[0].Choices[0].Delta.Content)
	}
}
