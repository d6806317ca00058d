package bridge

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"streamd/pkg/types"
)

// Granularity selects how content is cut into chunks.
type Granularity string

const (
	// GranularityFragment sends one chunk per backend fragment.
	GranularityFragment Granularity = "fragment"
	// GranularityChar sends one chunk per character for smoother typing.
	GranularityChar Granularity = "char"
)

// ParseGranularity accepts "", "fragment", "token", "char" and "character".
func ParseGranularity(s string) (Granularity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fragment", "token":
		return GranularityFragment, nil
	case "char", "character":
		return GranularityChar, nil
	default:
		return "", fmt.Errorf("unknown granularity %q (want fragment or char)", s)
	}
}

// RoleAssistant is announced by the first chunk when the backend asks for it.
const RoleAssistant = "assistant"

var (
	frameDone   = []byte("data: [DONE]\n\n")
	framePrefix = []byte("data: ")
	frameSuffix = []byte("\n\n")
)

// Formatter builds the chunks of one response. ID and Created are fixed for
// the whole session.
type Formatter struct {
	ID          string
	Model       string
	Created     int64
	Granularity Granularity
}

// NewFormatter assigns a fresh completion id.
func NewFormatter(model string, g Granularity) *Formatter {
	if g == "" {
		g = GranularityFragment
	}
	return &Formatter{
		ID:          NewCompletionID(),
		Model:       model,
		Created:     time.Now().Unix(),
		Granularity: g,
	}
}

// NewCompletionID returns an OpenAI-style completion id.
func NewCompletionID() string { return "chatcmpl-" + uuid.NewString() }

func (f *Formatter) chunk(object string, delta types.Delta, finish string) types.StreamChunk {
	var fr *string
	if finish != "" {
		fr = &finish
	}
	return types.StreamChunk{
		ID:      f.ID,
		Object:  object,
		Created: f.Created,
		Model:   f.Model,
		Choices: []types.ChunkChoice{{Index: 0, Delta: delta, FinishReason: fr}},
	}
}

// Role is the role-announcement chunk with empty content.
func (f *Formatter) Role() types.StreamChunk {
	return f.chunk(types.ObjectChunk, types.Delta{Role: RoleAssistant}, "")
}

// Content returns the chunks carrying text, split per the configured granularity.
func (f *Formatter) Content(text string) []types.StreamChunk {
	if text == "" {
		return nil
	}
	if f.Granularity != GranularityChar {
		return []types.StreamChunk{f.chunk(types.ObjectChunk, types.Delta{Content: text}, "")}
	}
	parts := SplitRunes(text)
	out := make([]types.StreamChunk, 0, len(parts))
	for _, p := range parts {
		out = append(out, f.chunk(types.ObjectChunk, types.Delta{Content: p}, ""))
	}
	return out
}

// Stop is the terminal chunk of a successful stream.
func (f *Formatter) Stop() types.StreamChunk {
	return f.chunk(types.ObjectChunk, types.Delta{}, types.FinishStop)
}

// Error is the terminal chunk of a failed stream; the message travels as content.
func (f *Formatter) Error(err error) types.StreamChunk {
	return f.chunk(types.ObjectChunk, types.Delta{Content: ErrorContent(err)}, types.FinishError)
}

// Aggregate is the single frame of a non-streaming response.
func (f *Formatter) Aggregate(content, finish string) types.StreamChunk {
	return f.chunk(types.ObjectCompletion, types.Delta{Role: RoleAssistant, Content: content}, finish)
}

// ErrorContent renders err the way error chunks carry it.
func ErrorContent(err error) string {
	if err == nil {
		return "Error: unknown error"
	}
	return "Error: " + err.Error()
}

// WriteFrame writes v as one "data: <json>\n\n" frame.
func WriteFrame(w io.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf := make([]byte, 0, len(framePrefix)+len(b)+len(frameSuffix))
	buf = append(buf, framePrefix...)
	buf = append(buf, b...)
	buf = append(buf, frameSuffix...)
	_, err = w.Write(buf)
	return err
}

// WriteDone writes the literal end-of-stream frame.
func WriteDone(w io.Writer) error {
	_, err := w.Write(frameDone)
	return err
}
