package manager

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"streamd/internal/bridge"
	"streamd/pkg/types"
)

// openAICompletionRequest represents the payload for /v1/completions.
type openAICompletionRequest struct {
	Prompt      string   `json:"prompt"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Temperature float64  `json:"temperature,omitempty"`
	TopP        float64  `json:"top_p,omitempty"`
	TopK        int      `json:"top_k,omitempty"`
	Stop        []string `json:"stop,omitempty"`
	Seed        int      `json:"seed,omitempty"`
	Stream      bool     `json:"stream"`
	// Not standard OpenAI; llama-server reads it under this key.
	RepeatPenalty float64 `json:"repeat_penalty,omitempty"`
}

// openAIStreamChoice is a minimal subset of a streamed completion choice.
// llama-server fills Text for /v1/completions; Delta.Content is accepted too.
type openAIStreamChoice struct {
	Text  string `json:"text"`
	Delta struct {
		Content string `json:"content"`
	} `json:"delta"`
	FinishReason string `json:"finish_reason"`
}

type openAIStreamResponse struct {
	Object  string               `json:"object"`
	Choices []openAIStreamChoice `json:"choices"`
	// Native /completion streams carry the piece here.
	Content string `json:"content"`
}

type tokenizeRequest struct {
	Content string `json:"content"`
}

type tokenizeResponse struct {
	Tokens []int `json:"tokens"`
}

// subprocessRuntime generates through one llama-server process.
type subprocessRuntime struct {
	a         *llamaSubprocessAdapter
	modelPath string
	baseURL   string

	mu      sync.RWMutex
	special []string
	closed  sync.Once
}

func (r *subprocessRuntime) Name() string { return types.ModelTypeLlamaCPP }

func (r *subprocessRuntime) Limits() bridge.Limits {
	return bridge.Limits{MaxTokens: subprocessMaxTokens}
}

// Generate streams a completion from llama-server. Each received piece is
// appended to the decoded text; the new suffix is then handed on one
// character at a time, checking the StopSignal before each.
func (r *subprocessRuntime) Generate(ctx context.Context, prompt string, cfg bridge.GenerationConfig, stop *bridge.StopSignal, emit bridge.EmitFunc) error {
	payload := openAICompletionRequest{
		Prompt:        prompt,
		MaxTokens:     min(cfg.MaxNewTokens, subprocessMaxTokens),
		Temperature:   cfg.Temperature,
		TopP:          cfg.TopP,
		TopK:          cfg.TopK,
		Stop:          r.stopWords(cfg.Stop),
		Seed:          cfg.Seed,
		Stream:        true,
		RepeatPenalty: cfg.RepetitionPenalty,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/v1/completions", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	resp, err := r.a.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("llama server http error: %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}

	var cursor bridge.TextCursor
	send := func(text string) error {
		for _, ch := range bridge.SplitRunes(text) {
			if stop.IsSet() {
				return bridge.ErrStopped
			}
			if err := emit(ch); err != nil {
				return err
			}
		}
		return nil
	}
	rd := bufio.NewReader(resp.Body)
	for {
		line, rerr := rd.ReadString('\n')
		if piece, done := parseStreamLine(line); done {
			break
		} else if piece != "" {
			if err := send(cursor.Append(piece)); err != nil {
				return err
			}
		}
		if stop.IsSet() {
			return bridge.ErrStopped
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				break
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return rerr
		}
	}
	return send(cursor.Flush())
}

// parseStreamLine extracts the text piece of one SSE line. done is true on
// the [DONE] terminator.
func parseStreamLine(line string) (piece string, done bool) {
	l := strings.TrimSpace(line)
	if l == "" || !strings.HasPrefix(strings.ToLower(l), "data:") {
		return "", false
	}
	data := strings.TrimSpace(l[len("data:"):])
	if data == "[DONE]" {
		return "", true
	}
	var msg openAIStreamResponse
	if err := json.Unmarshal([]byte(data), &msg); err != nil {
		return "", false
	}
	if len(msg.Choices) > 0 {
		c := msg.Choices[0]
		if c.Text != "" {
			return c.Text, false
		}
		return c.Delta.Content, false
	}
	return msg.Content, false
}

// Encode tokenizes text with the server's tokenizer.
func (r *subprocessRuntime) Encode(text string) ([]int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultReadyTimeout)
	defer cancel()
	body, err := json.Marshal(tokenizeRequest{Content: text})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/tokenize", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := r.a.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("llama server tokenize: %s", resp.Status)
	}
	var out tokenizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode tokenize response: %w", err)
	}
	return out.Tokens, nil
}

// AddSpecialTokens registers tokens sent as stop words with every request.
func (r *subprocessRuntime) AddSpecialTokens(tokens ...string) {
	r.mu.Lock()
	r.special = append(r.special, tokens...)
	r.mu.Unlock()
}

func (r *subprocessRuntime) stopWords(extra []string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(extra) == 0 && len(r.special) == 0 {
		return nil
	}
	return append(append([]string(nil), extra...), r.special...)
}

// Close releases this runtime's reference on the llama-server process.
func (r *subprocessRuntime) Close() error {
	var err error
	r.closed.Do(func() { err = r.a.release(r.modelPath) })
	return err
}
