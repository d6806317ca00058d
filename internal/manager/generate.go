package manager

import (
	"context"
	"fmt"
	"io"
	"strings"

	"streamd/internal/bridge"
	"streamd/pkg/types"
)

// Generate runs a raw prompt against the loaded model and writes the result
// to w as SSE frames. Errors returned before anything was written (no model
// loaded, invalid parameters, backpressure) are meant for a JSON error
// response; once the request is accepted every failure is reported inside
// the stream and the returned error only reflects transport failures.
func (m *Manager) Generate(ctx context.Context, req types.GenerateRequest, w io.Writer, flush func()) error {
	if strings.TrimSpace(req.Prompt) == "" {
		return ErrInvalidRequest("prompt is required")
	}
	cfg, gran, err := m.prepare(req.SamplingParams, bridge.DefaultRepetitionPenalty)
	if err != nil {
		return err
	}
	return m.run(ctx, cfg, gran, func() (string, error) { return req.Prompt, nil }, w, flush)
}

// ChatCompletion renders the transcript with RenderPrompt and streams the
// model's answer like Generate.
func (m *Manager) ChatCompletion(ctx context.Context, req types.ChatCompletionRequest, w io.Writer, flush func()) error {
	cfg, gran, err := m.prepare(req.SamplingParams, chatRepetitionPenalty)
	if err != nil {
		return err
	}
	return m.run(ctx, cfg, gran, func() (string, error) { return RenderPrompt(req.Messages) }, w, flush)
}

// prepare maps request knobs onto a validated GenerationConfig. Zero values
// take the defaults; negative values are rejected.
func (m *Manager) prepare(p types.SamplingParams, penalty float64) (bridge.GenerationConfig, bridge.Granularity, error) {
	if p.MaxTokens < 0 || p.Temperature < 0 || p.TopP < 0 || p.TopK < 0 || p.RepetitionPenalty < 0 {
		return bridge.GenerationConfig{}, "", ErrInvalidRequest("sampling parameters must not be negative")
	}
	cfg := bridge.GenerationConfig{
		MaxNewTokens:      p.MaxTokens,
		Temperature:       p.Temperature,
		TopP:              p.TopP,
		TopK:              p.TopK,
		RepetitionPenalty: p.RepetitionPenalty,
		Stream:            p.Stream,
		Stop:              p.Stop,
		Seed:              p.Seed,
	}
	if cfg.RepetitionPenalty == 0 {
		cfg.RepetitionPenalty = penalty
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return bridge.GenerationConfig{}, "", err
	}
	name := p.Granularity
	if name == "" {
		name = m.cfg.Granularity
	}
	gran, err := bridge.ParseGranularity(name)
	if err != nil {
		return bridge.GenerationConfig{}, "", ErrInvalidRequest(err.Error())
	}
	return cfg, gran, nil
}

// run admits the request and drives one bridge.Session to completion.
func (m *Manager) run(ctx context.Context, cfg bridge.GenerationConfig, gran bridge.Granularity, render func() (string, error), w io.Writer, flush func()) error {
	cur, release, err := m.admit(ctx)
	if err != nil {
		return err
	}
	defer release()
	model := cur.Info.ID
	rt := cur.Runtime
	log := m.log.With().Str("model", model).Str("type", cur.Info.Type).Logger()

	prompt, err := render()
	if err != nil {
		log.Warn().Err(err).Msg("prompt rendering failed")
		return bridge.WriteFailure(w, flush, model, err)
	}
	// In-process runtimes tokenize up front so a broken tokenizer fails
	// before a session starts; llama-server tokenizes on its side.
	promptTokens := -1
	if cur.Info.Type != types.ModelTypeLlamaCPP {
		toks, err := rt.Encode(prompt)
		if err != nil {
			log.Warn().Err(err).Msg("prompt encoding failed")
			return bridge.WriteFailure(w, flush, model, fmt.Errorf("encode prompt: %w", err))
		}
		promptTokens = len(toks)
	}

	ceiling := bridge.MaxTokensCeiling
	if l := rt.Limits().MaxTokens; l > 0 && l < ceiling {
		ceiling = l
	}
	cfg = cfg.Clamp(ceiling)

	sess := bridge.NewSession(rt, prompt, cfg, bridge.SessionOptions{
		Model:       model,
		Granularity: gran,
		QueueSize:   m.cfg.QueueSize,
		StepTimeout: m.cfg.StepTimeout,
		MaxTime:     m.cfg.GenerationTimeout,
		Logger:      log,
	})
	m.sessions.Add(1)
	m.publish("session_start", model, map[string]any{
		"id":             sess.ID(),
		"stream":         cfg.Stream,
		"max_new_tokens": cfg.MaxNewTokens,
		"prompt_tokens":  promptTokens,
	})
	defer func() {
		m.publish("session_end", model, map[string]any{
			"id":        sess.ID(),
			"outcome":   string(sess.Outcome()),
			"fragments": sess.Fragments(),
		})
	}()

	if cfg.Stream {
		return sess.Stream(ctx, w, flush)
	}
	return sess.WriteAggregate(ctx, w, flush)
}
